package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"payment-webhook-engine/internal/core/domain"
	"payment-webhook-engine/internal/core/ports/mocks"
	"payment-webhook-engine/pkg/apperror"
)

func setupEmitter(t *testing.T) (*mocks.MockWebhookManager, *EventEmitterImpl) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mgr := mocks.NewMockWebhookManager(ctrl)
	return mgr, NewEventEmitter(mgr, newTestLogger())
}

func TestEventEmitter_EmitAuthResult(t *testing.T) {
	mgr, emitter := setupEmitter(t)

	want := []*domain.DeliveryAttempt{{ID: "rec-1"}}
	mgr.EXPECT().
		SendEvent(gomock.Any(), domain.EventTypeAuthResult,
			map[string]any{"transaction_id": "tx_1", "decision": "APPROVED", "score": 0.87},
			map[string]any{"region": "eu"}).
		Return(want, nil)

	recs, err := emitter.EmitAuthResult(context.Background(), "tx_1", "APPROVED", 0.87,
		map[string]any{"region": "eu"})
	require.NoError(t, err)
	assert.Equal(t, want, recs)
}

func TestEventEmitter_EmitSettlement(t *testing.T) {
	mgr, emitter := setupEmitter(t)

	mgr.EXPECT().
		SendEvent(gomock.Any(), domain.EventTypeSettlement,
			map[string]any{"transaction_id": "tx_2", "amount": int64(125000), "currency": "EUR", "status": "SETTLED"},
			nil).
		Return([]*domain.DeliveryAttempt{}, nil)

	recs, err := emitter.EmitSettlement(context.Background(), "tx_2", 125000, "EUR", "SETTLED", nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestEventEmitter_EmitChargeback(t *testing.T) {
	mgr, emitter := setupEmitter(t)

	mgr.EXPECT().
		SendEvent(gomock.Any(), domain.EventTypeChargeback,
			map[string]any{"transaction_id": "tx_3", "chargeback_id": "cb_9", "reason": "fraud", "amount": int64(4200)},
			nil).
		Return([]*domain.DeliveryAttempt{{ID: "rec-2"}}, nil)

	recs, err := emitter.EmitChargeback(context.Background(), "tx_3", "cb_9", "fraud", 4200, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestEventEmitter_EmitLoyaltyEvent(t *testing.T) {
	mgr, emitter := setupEmitter(t)

	mgr.EXPECT().
		SendEvent(gomock.Any(), domain.EventTypeLoyaltyEvent,
			map[string]any{"customer_id": "cus_7", "event_type": "POINTS_EARNED", "points_change": int64(250)},
			map[string]any{"campaign": "summer"}).
		Return([]*domain.DeliveryAttempt{{ID: "rec-3"}}, nil)

	recs, err := emitter.EmitLoyaltyEvent(context.Background(), "cus_7", "POINTS_EARNED", 250,
		map[string]any{"campaign": "summer"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestEventEmitter_PropagatesEngineErrors(t *testing.T) {
	mgr, emitter := setupEmitter(t)

	mgr.EXPECT().
		SendEvent(gomock.Any(), domain.EventTypeAuthResult, gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrEngineNotRunning())

	_, err := emitter.EmitAuthResult(context.Background(), "tx_1", "DECLINED", 0.12, nil)
	requireErrCode(t, err, "LCY_001")
}
