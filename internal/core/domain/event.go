package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the business event carried by a webhook payload.
type EventType string

const (
	EventTypeAuthResult   EventType = "AUTH_RESULT"
	EventTypeSettlement   EventType = "SETTLEMENT"
	EventTypeChargeback   EventType = "CHARGEBACK"
	EventTypeLoyaltyEvent EventType = "LOYALTY_EVENT"
)

// KnownEventTypes lists the event types produced by the platform today.
// The enumeration is open: subscriptions may filter on types that are not
// emitted yet.
func KnownEventTypes() []EventType {
	return []EventType{
		EventTypeAuthResult,
		EventTypeSettlement,
		EventTypeChargeback,
		EventTypeLoyaltyEvent,
	}
}

// EventPayload is the immutable body of one emitted event. The engine never
// interprets Data or Metadata; their schemas belong to the emitting caller.
type EventPayload struct {
	ID        string         `json:"event_id"`
	Type      EventType      `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
	Metadata  map[string]any `json:"metadata"`
}

// NewEventPayload builds a payload with a generated event ID and the current
// UTC timestamp. The maps are shallow-copied so later caller mutation cannot
// change a payload already in flight.
func NewEventPayload(eventType EventType, data, metadata map[string]any) *EventPayload {
	return &EventPayload{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      copyMap(data),
		Metadata:  copyMap(metadata),
	}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
