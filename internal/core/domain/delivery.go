package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the outcome state of one delivery attempt record.
type DeliveryStatus string

const (
	// DeliveryStatusPending marks a record whose attempt has not resolved yet.
	// Pending records exist only inside the dispatcher; history holds resolved
	// records and retry markers.
	DeliveryStatusPending  DeliveryStatus = "PENDING"
	DeliveryStatusSent     DeliveryStatus = "SENT"
	DeliveryStatusFailed   DeliveryStatus = "FAILED"
	DeliveryStatusRetrying DeliveryStatus = "RETRYING"
)

// ParseDeliveryStatus maps a wire string to a status.
func ParseDeliveryStatus(s string) (DeliveryStatus, bool) {
	switch DeliveryStatus(s) {
	case DeliveryStatusPending, DeliveryStatusSent, DeliveryStatusFailed, DeliveryStatusRetrying:
		return DeliveryStatus(s), true
	}
	return "", false
}

// DeliveryAttempt records one concrete try (initial or retry) to deliver an
// event to a subscription. Records are immutable once appended to history;
// every attempt appends a new record, so a logical delivery spans several
// rows grouped by (subscription_id, event_id) and ordered by attempt.
type DeliveryAttempt struct {
	ID             string         `json:"id"`
	SubscriptionID string         `json:"subscription_id"`
	EventID        string         `json:"event_id"`
	URL            string         `json:"url"`
	Status         DeliveryStatus `json:"status"`
	Attempt        int            `json:"attempt"` // 1-based
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	ResponseCode   *int           `json:"response_code,omitempty"`
	ResponseBody   *string        `json:"response_body,omitempty"`
	ErrorMessage   *string        `json:"error_message,omitempty"`
	RetryAfter     *time.Time     `json:"retry_after,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// NewDeliveryAttempt starts a pending record for an attempt about to run.
func NewDeliveryAttempt(sub *Subscription, eventID string, attempt int) DeliveryAttempt {
	return DeliveryAttempt{
		ID:             uuid.New().String(),
		SubscriptionID: sub.ID,
		EventID:        eventID,
		URL:            sub.URL,
		Status:         DeliveryStatusPending,
		Attempt:        attempt,
		CreatedAt:      time.Now().UTC(),
	}
}

// NewDisabledAttempt is the synthetic failure recorded for a disabled,
// filter-matching subscription. No network I/O happens for these.
func NewDisabledAttempt(sub *Subscription, eventID string) DeliveryAttempt {
	rec := NewDeliveryAttempt(sub, eventID, 1)
	msg := "Webhook disabled"
	rec.Status = DeliveryStatusFailed
	rec.ErrorMessage = &msg
	return rec
}

// NewRetryingAttempt is the marker appended as soon as a retry is scheduled,
// so history always reflects that a re-attempt is pending.
func NewRetryingAttempt(sub *Subscription, eventID string, attempt int, retryAfter time.Time) DeliveryAttempt {
	rec := NewDeliveryAttempt(sub, eventID, attempt)
	rec.Status = DeliveryStatusRetrying
	rec.RetryAfter = &retryAfter
	return rec
}

// IsSuccessful reports terminal success.
func (a *DeliveryAttempt) IsSuccessful() bool {
	return a.Status == DeliveryStatusSent
}

// CanRetry reports whether the record represents a retryable outcome.
func (a *DeliveryAttempt) CanRetry() bool {
	return a.Status == DeliveryStatusFailed || a.Status == DeliveryStatusRetrying
}
