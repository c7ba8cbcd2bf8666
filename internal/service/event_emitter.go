package service

import (
	"context"

	"github.com/rs/zerolog"

	"payment-webhook-engine/internal/core/domain"
	"payment-webhook-engine/internal/core/ports"
)

// EventEmitterImpl implements ports.EventEmitter. Each method packages one
// platform event into the opaque data map subscribers receive and hands it
// to the manager; delivery semantics live entirely behind SendEvent.
type EventEmitterImpl struct {
	manager ports.WebhookManager
	log     zerolog.Logger
}

// NewEventEmitter creates a new EventEmitterImpl.
func NewEventEmitter(manager ports.WebhookManager, log zerolog.Logger) *EventEmitterImpl {
	return &EventEmitterImpl{manager: manager, log: log}
}

// EmitAuthResult publishes an authorization decision and its risk score.
func (e *EventEmitterImpl) EmitAuthResult(ctx context.Context, transactionID, decision string, score float64, metadata map[string]any) ([]*domain.DeliveryAttempt, error) {
	e.log.Debug().
		Str("transaction_id", transactionID).
		Str("decision", decision).
		Msg("emitting auth result")

	return e.manager.SendEvent(ctx, domain.EventTypeAuthResult, map[string]any{
		"transaction_id": transactionID,
		"decision":       decision,
		"score":          score,
	}, metadata)
}

// EmitSettlement publishes a settlement outcome. Amount is in minor units.
func (e *EventEmitterImpl) EmitSettlement(ctx context.Context, transactionID string, amount int64, currency, status string, metadata map[string]any) ([]*domain.DeliveryAttempt, error) {
	e.log.Debug().
		Str("transaction_id", transactionID).
		Int64("amount", amount).
		Str("currency", currency).
		Msg("emitting settlement")

	return e.manager.SendEvent(ctx, domain.EventTypeSettlement, map[string]any{
		"transaction_id": transactionID,
		"amount":         amount,
		"currency":       currency,
		"status":         status,
	}, metadata)
}

// EmitChargeback publishes a chargeback raised against a transaction.
func (e *EventEmitterImpl) EmitChargeback(ctx context.Context, transactionID, chargebackID, reason string, amount int64, metadata map[string]any) ([]*domain.DeliveryAttempt, error) {
	e.log.Debug().
		Str("transaction_id", transactionID).
		Str("chargeback_id", chargebackID).
		Msg("emitting chargeback")

	return e.manager.SendEvent(ctx, domain.EventTypeChargeback, map[string]any{
		"transaction_id": transactionID,
		"chargeback_id":  chargebackID,
		"reason":         reason,
		"amount":         amount,
	}, metadata)
}

// EmitLoyaltyEvent publishes a loyalty points change for a customer.
func (e *EventEmitterImpl) EmitLoyaltyEvent(ctx context.Context, customerID, loyaltyEventType string, pointsChange int64, metadata map[string]any) ([]*domain.DeliveryAttempt, error) {
	e.log.Debug().
		Str("customer_id", customerID).
		Str("loyalty_event_type", loyaltyEventType).
		Int64("points_change", pointsChange).
		Msg("emitting loyalty event")

	return e.manager.SendEvent(ctx, domain.EventTypeLoyaltyEvent, map[string]any{
		"customer_id":   customerID,
		"event_type":    loyaltyEventType,
		"points_change": pointsChange,
	}, metadata)
}
