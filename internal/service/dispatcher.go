package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"payment-webhook-engine/internal/core/domain"
	"payment-webhook-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

// userAgent identifies the engine to subscriber endpoints.
const userAgent = "payment-webhook-engine/1.0"

// DeliveryDispatcher performs single webhook delivery attempts. Every
// outcome, including transport errors, is captured in the returned record;
// Attempt itself never fails.
type DeliveryDispatcher struct {
	sigSvc    ports.SignatureService
	bodyLimit int64
	log       zerolog.Logger
}

// NewDeliveryDispatcher creates a dispatcher. bodyLimit caps how many bytes
// of a subscriber response are retained in attempt records.
func NewDeliveryDispatcher(sigSvc ports.SignatureService, bodyLimit int64, log zerolog.Logger) *DeliveryDispatcher {
	return &DeliveryDispatcher{
		sigSvc:    sigSvc,
		bodyLimit: bodyLimit,
		log:       log,
	}
}

// Attempt POSTs the serialized event to the subscription endpoint once,
// enforcing the subscription timeout. The body must be the exact bytes the
// signature covers; it is serialized once per event by the caller.
func (d *DeliveryDispatcher) Attempt(ctx context.Context, client *http.Client, sub *domain.Subscription, event *domain.EventPayload, body []byte, attempt int) *domain.DeliveryAttempt {
	rec := domain.NewDeliveryAttempt(sub, event.ID, attempt)

	reqCtx, cancel := context.WithTimeout(ctx, sub.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return d.failed(&rec, fmt.Sprintf("building request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Webhook-Signature", d.sigSvc.SignPayload(sub.Secret, body))
	req.Header.Set("X-Webhook-Event", string(event.Type))
	req.Header.Set("X-Webhook-Delivery", rec.ID)

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return d.failed(&rec, "Request timeout")
		}
		return d.failed(&rec, err.Error())
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, d.bodyLimit))
	snippet := string(respBody)

	code := resp.StatusCode
	rec.ResponseCode = &code
	rec.ResponseBody = &snippet

	if code >= 200 && code < 300 {
		now := time.Now().UTC()
		rec.Status = domain.DeliveryStatusSent
		rec.SentAt = &now
		d.log.Debug().
			Str("subscription_id", sub.ID).
			Str("event_id", event.ID).
			Int("attempt", attempt).
			Int("status", code).
			Msg("webhook delivered")
		return &rec
	}

	msg := fmt.Sprintf("HTTP %d: %s", code, snippet)
	rec.Status = domain.DeliveryStatusFailed
	rec.ErrorMessage = &msg
	d.log.Warn().
		Str("subscription_id", sub.ID).
		Str("event_id", event.ID).
		Int("attempt", attempt).
		Int("status", code).
		Msg("webhook delivery rejected")
	return &rec
}

// failed finalizes a record for an attempt that produced no HTTP response.
func (d *DeliveryDispatcher) failed(rec *domain.DeliveryAttempt, msg string) *domain.DeliveryAttempt {
	rec.Status = domain.DeliveryStatusFailed
	rec.ErrorMessage = &msg
	d.log.Warn().
		Str("subscription_id", rec.SubscriptionID).
		Str("event_id", rec.EventID).
		Int("attempt", rec.Attempt).
		Str("error", msg).
		Msg("webhook delivery failed")
	return rec
}
