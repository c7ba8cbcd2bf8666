package dto

import (
	"time"

	"payment-webhook-engine/internal/core/domain"
	"payment-webhook-engine/internal/core/ports"
)

// TokenRequest is the request body for operator token exchange.
type TokenRequest struct {
	KeyID  string `json:"key_id" binding:"required,safe_id,max=64"`
	APIKey string `json:"api_key" binding:"required,max=256"`
}

// TokenResponse is the response body for a successful token exchange.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"` // Unix timestamp
}

// WebhookRequest is the request body for creating or replacing a webhook
// subscription. Policy fields are pointers so an omitted field falls back to
// the engine defaults while a present-but-invalid one is rejected.
type WebhookRequest struct {
	ID               string   `json:"id" binding:"omitempty,safe_id,max=64"`
	URL              string   `json:"url" binding:"required,safe_url,max=2048"`
	Secret           string   `json:"secret" binding:"required,min=8,max=256"`
	EventTypes       []string `json:"event_types" binding:"omitempty,dive,oneof=AUTH_RESULT SETTLEMENT CHARGEBACK LOYALTY_EVENT"`
	TimeoutMS        *int64   `json:"timeout_ms,omitempty"`
	MaxRetries       *int     `json:"max_retries,omitempty"`
	RetryDelayBaseMS *int64   `json:"retry_delay_base_ms,omitempty"`
	RetryDelayMaxMS  *int64   `json:"retry_delay_max_ms,omitempty"`
	Enabled          *bool    `json:"enabled,omitempty"` // default true
}

// WebhookResponse describes a subscription with its secret redacted.
type WebhookResponse struct {
	ID               string   `json:"id"`
	URL              string   `json:"url"`
	EventTypes       []string `json:"event_types"`
	TimeoutMS        int64    `json:"timeout_ms"`
	MaxRetries       int      `json:"max_retries"`
	RetryDelayBaseMS int64    `json:"retry_delay_base_ms"`
	RetryDelayMaxMS  int64    `json:"retry_delay_max_ms"`
	Enabled          bool     `json:"enabled"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

// NewWebhookResponse maps a domain subscription onto the wire shape.
func NewWebhookResponse(sub *domain.Subscription) WebhookResponse {
	types := make([]string, len(sub.EventTypes))
	for i, et := range sub.EventTypes {
		types[i] = string(et)
	}
	return WebhookResponse{
		ID:               sub.ID,
		URL:              sub.URL,
		EventTypes:       types,
		TimeoutMS:        sub.Timeout.Milliseconds(),
		MaxRetries:       sub.MaxRetries,
		RetryDelayBaseMS: sub.RetryDelayBase.Milliseconds(),
		RetryDelayMaxMS:  sub.RetryDelayMax.Milliseconds(),
		Enabled:          sub.Enabled,
		CreatedAt:        sub.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        sub.UpdatedAt.Format(time.RFC3339),
	}
}

// DeliveryRecordResponse is one delivery attempt on the wire.
type DeliveryRecordResponse struct {
	ID             string  `json:"id"`
	SubscriptionID string  `json:"subscription_id"`
	EventID        string  `json:"event_id"`
	URL            string  `json:"url"`
	Status         string  `json:"status"`
	Attempt        int     `json:"attempt"`
	ResponseCode   *int    `json:"response_code,omitempty"`
	ResponseBody   *string `json:"response_body,omitempty"`
	ErrorMessage   *string `json:"error_message,omitempty"`
	SentAt         *string `json:"sent_at,omitempty"`
	RetryAfter     *string `json:"retry_after,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

// NewDeliveryRecordResponse maps a domain attempt onto the wire shape.
func NewDeliveryRecordResponse(rec *domain.DeliveryAttempt) DeliveryRecordResponse {
	out := DeliveryRecordResponse{
		ID:             rec.ID,
		SubscriptionID: rec.SubscriptionID,
		EventID:        rec.EventID,
		URL:            rec.URL,
		Status:         string(rec.Status),
		Attempt:        rec.Attempt,
		ResponseCode:   rec.ResponseCode,
		ResponseBody:   rec.ResponseBody,
		ErrorMessage:   rec.ErrorMessage,
		CreatedAt:      rec.CreatedAt.Format(time.RFC3339Nano),
	}
	if rec.SentAt != nil {
		s := rec.SentAt.Format(time.RFC3339Nano)
		out.SentAt = &s
	}
	if rec.RetryAfter != nil {
		s := rec.RetryAfter.Format(time.RFC3339Nano)
		out.RetryAfter = &s
	}
	return out
}

// NewDeliveryRecordResponses maps a slice of attempts.
func NewDeliveryRecordResponses(recs []*domain.DeliveryAttempt) []DeliveryRecordResponse {
	out := make([]DeliveryRecordResponse, len(recs))
	for i, rec := range recs {
		out[i] = NewDeliveryRecordResponse(rec)
	}
	return out
}

// StatsResponse is the per-subscription delivery aggregate on the wire.
type StatsResponse struct {
	SubscriptionID string  `json:"subscription_id"`
	Total          int64   `json:"total"`
	Sent           int64   `json:"sent"`
	Failed         int64   `json:"failed"`
	Retrying       int64   `json:"retrying"`
	SuccessRate    float64 `json:"success_rate"`
	LastAttemptAt  *string `json:"last_attempt_at,omitempty"`
}

// NewStatsResponse maps delivery stats onto the wire shape.
func NewStatsResponse(stats *ports.DeliveryStats) StatsResponse {
	out := StatsResponse{
		SubscriptionID: stats.SubscriptionID,
		Total:          stats.Total,
		Sent:           stats.Sent,
		Failed:         stats.Failed,
		Retrying:       stats.Retrying,
		SuccessRate:    stats.SuccessRate,
	}
	if stats.LastAttemptAt != nil {
		s := stats.LastAttemptAt.Format(time.RFC3339Nano)
		out.LastAttemptAt = &s
	}
	return out
}

// PruneRequest is the request body for delivery-history pruning.
// OlderThanDays is a pointer so an explicit 0 (remove everything) passes
// required validation.
type PruneRequest struct {
	OlderThanDays *int `json:"older_than_days" binding:"required,gte=0"`
}

// PruneResponse reports how many records pruning removed.
type PruneResponse struct {
	Removed int `json:"removed"`
}

// AuthResultEventRequest is the emission body for authorization outcomes.
type AuthResultEventRequest struct {
	TransactionID string         `json:"transaction_id" binding:"required,safe_id,max=100"`
	Decision      string         `json:"decision" binding:"required,max=50"`
	Score         *float64       `json:"score" binding:"required"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// SettlementEventRequest is the emission body for settlement results.
type SettlementEventRequest struct {
	TransactionID string         `json:"transaction_id" binding:"required,safe_id,max=100"`
	Amount        int64          `json:"amount" binding:"required,gt=0"`
	Currency      string         `json:"currency" binding:"required,len=3"`
	Status        string         `json:"status" binding:"required,max=50"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// ChargebackEventRequest is the emission body for chargeback notices.
type ChargebackEventRequest struct {
	TransactionID string         `json:"transaction_id" binding:"required,safe_id,max=100"`
	ChargebackID  string         `json:"chargeback_id" binding:"required,safe_id,max=100"`
	Reason        string         `json:"reason" binding:"required,max=500"`
	Amount        int64          `json:"amount" binding:"required,gt=0"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// LoyaltyEventRequest is the emission body for loyalty point changes.
// PointsChange is a pointer so negative and zero deltas survive validation.
type LoyaltyEventRequest struct {
	CustomerID   string         `json:"customer_id" binding:"required,safe_id,max=100"`
	EventType    string         `json:"event_type" binding:"required,max=100"`
	PointsChange *int64         `json:"points_change" binding:"required"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// EmissionResponse wraps the first-attempt records produced by one emission.
type EmissionResponse struct {
	Records []DeliveryRecordResponse `json:"records"`
}
