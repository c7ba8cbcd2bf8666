package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-webhook-engine/internal/core/domain"
	"payment-webhook-engine/internal/core/ports"
)

func newAttempt(subID, eventID string, status domain.DeliveryStatus, attempt int, createdAt time.Time) *domain.DeliveryAttempt {
	return &domain.DeliveryAttempt{
		ID:             uuid.New().String(),
		SubscriptionID: subID,
		EventID:        eventID,
		URL:            "https://hooks.example.com/" + subID,
		Status:         status,
		Attempt:        attempt,
		CreatedAt:      createdAt,
	}
}

func TestDeliveryHistoryStore_QueryNewestFirst(t *testing.T) {
	store := NewDeliveryHistoryStore()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	first := newAttempt("wh_a", "ev_1", domain.DeliveryStatusFailed, 1, base)
	second := newAttempt("wh_a", "ev_1", domain.DeliveryStatusRetrying, 2, base.Add(time.Minute))
	third := newAttempt("wh_a", "ev_1", domain.DeliveryStatusSent, 2, base.Add(2*time.Minute))
	for _, rec := range []*domain.DeliveryAttempt{first, second, third} {
		require.NoError(t, store.Append(ctx, rec))
	}

	recs, err := store.Query(ctx, ports.DeliveryHistoryFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, third.ID, recs[0].ID)
	assert.Equal(t, second.ID, recs[1].ID)
	assert.Equal(t, first.ID, recs[2].ID)
}

func TestDeliveryHistoryStore_FilterCombination(t *testing.T) {
	store := NewDeliveryHistoryStore()
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Append(ctx, newAttempt("wh_a", "ev_1", domain.DeliveryStatusSent, 1, now)))
	require.NoError(t, store.Append(ctx, newAttempt("wh_a", "ev_2", domain.DeliveryStatusFailed, 1, now)))
	require.NoError(t, store.Append(ctx, newAttempt("wh_b", "ev_1", domain.DeliveryStatusFailed, 1, now)))

	recs, err := store.Query(ctx, ports.DeliveryHistoryFilter{SubscriptionID: "wh_a"})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = store.Query(ctx, ports.DeliveryHistoryFilter{EventID: "ev_1"})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	// Filters combine with AND.
	recs, err = store.Query(ctx, ports.DeliveryHistoryFilter{SubscriptionID: "wh_a", Status: domain.DeliveryStatusFailed})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "ev_2", recs[0].EventID)

	recs, err = store.Query(ctx, ports.DeliveryHistoryFilter{
		SubscriptionID: "wh_b",
		EventID:        "ev_1",
		Status:         domain.DeliveryStatusFailed,
	})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	recs, err = store.Query(ctx, ports.DeliveryHistoryFilter{SubscriptionID: "wh_ghost"})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDeliveryHistoryStore_Limit(t *testing.T) {
	store := NewDeliveryHistoryStore()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	ids := make([]string, 5)
	for i := 0; i < 5; i++ {
		rec := newAttempt("wh_a", "ev_1", domain.DeliveryStatusSent, 1, base.Add(time.Duration(i)*time.Minute))
		ids[i] = rec.ID
		require.NoError(t, store.Append(ctx, rec))
	}

	recs, err := store.Query(ctx, ports.DeliveryHistoryFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, ids[4], recs[0].ID)
	assert.Equal(t, ids[3], recs[1].ID)

	recs, err = store.Query(ctx, ports.DeliveryHistoryFilter{Limit: 0})
	require.NoError(t, err)
	assert.Len(t, recs, 5)

	recs, err = store.Query(ctx, ports.DeliveryHistoryFilter{Limit: 50})
	require.NoError(t, err)
	assert.Len(t, recs, 5)
}

func TestDeliveryHistoryStore_CopiesInAndOut(t *testing.T) {
	store := NewDeliveryHistoryStore()
	ctx := context.Background()

	rec := newAttempt("wh_a", "ev_1", domain.DeliveryStatusFailed, 1, time.Now().UTC())
	require.NoError(t, store.Append(ctx, rec))

	// Caller mutation after Append must not reach the store.
	rec.Status = domain.DeliveryStatusSent

	got, err := store.Query(ctx, ports.DeliveryHistoryFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.DeliveryStatusFailed, got[0].Status)

	// Mutating a query result must not reach the store either.
	got[0].Status = domain.DeliveryStatusRetrying

	again, err := store.Query(ctx, ports.DeliveryHistoryFilter{})
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusFailed, again[0].Status)
}

func TestDeliveryHistoryStore_Prune(t *testing.T) {
	store := NewDeliveryHistoryStore()
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Append(ctx, newAttempt("wh_a", "ev_1", domain.DeliveryStatusSent, 1, now.Add(-72*time.Hour))))
	require.NoError(t, store.Append(ctx, newAttempt("wh_a", "ev_2", domain.DeliveryStatusFailed, 1, now.Add(-48*time.Hour))))
	keep := newAttempt("wh_a", "ev_3", domain.DeliveryStatusSent, 1, now.Add(-time.Hour))
	require.NoError(t, store.Append(ctx, keep))

	removed, err := store.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	recs, err := store.Query(ctx, ports.DeliveryHistoryFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, keep.ID, recs[0].ID)

	// A second prune with the same cutoff removes nothing.
	removed, err = store.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestDeliveryHistoryStore_PruneEverything(t *testing.T) {
	store := NewDeliveryHistoryStore()
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, newAttempt("wh_a", "ev_1", domain.DeliveryStatusSent, 1, now)))
	}

	removed, err := store.Prune(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	recs, err := store.Query(ctx, ports.DeliveryHistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDeliveryHistoryStore_Stats(t *testing.T) {
	store := NewDeliveryHistoryStore()
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	last := base.Add(30 * time.Minute)
	require.NoError(t, store.Append(ctx, newAttempt("wh_a", "ev_1", domain.DeliveryStatusFailed, 1, base)))
	require.NoError(t, store.Append(ctx, newAttempt("wh_a", "ev_1", domain.DeliveryStatusRetrying, 2, base.Add(time.Minute))))
	require.NoError(t, store.Append(ctx, newAttempt("wh_a", "ev_1", domain.DeliveryStatusSent, 2, base.Add(2*time.Minute))))
	require.NoError(t, store.Append(ctx, newAttempt("wh_a", "ev_2", domain.DeliveryStatusSent, 1, last)))
	require.NoError(t, store.Append(ctx, newAttempt("wh_b", "ev_3", domain.DeliveryStatusFailed, 1, base)))

	stats, err := store.Stats(ctx, "wh_a")
	require.NoError(t, err)
	assert.Equal(t, "wh_a", stats.SubscriptionID)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(2), stats.Sent)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Retrying)
	assert.InDelta(t, 0.5, stats.SuccessRate, 1e-9)
	require.NotNil(t, stats.LastAttemptAt)
	assert.True(t, stats.LastAttemptAt.Equal(last))
}

func TestDeliveryHistoryStore_StatsUnknownSubscription(t *testing.T) {
	store := NewDeliveryHistoryStore()

	stats, err := store.Stats(context.Background(), "wh_ghost")
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.SuccessRate)
	assert.Nil(t, stats.LastAttemptAt)
}

func TestDeliveryHistoryStore_ConcurrentAppends(t *testing.T) {
	store := NewDeliveryHistoryStore()
	ctx := context.Background()

	const goroutines = 10
	const perGoroutine = 20

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				_ = store.Append(ctx, newAttempt("wh_a", "ev_1", domain.DeliveryStatusSent, 1, time.Now().UTC()))
			}
		}()
	}
	wg.Wait()

	stats, err := store.Stats(ctx, "wh_a")
	require.NoError(t, err)
	assert.Equal(t, int64(goroutines*perGoroutine), stats.Total)
}
