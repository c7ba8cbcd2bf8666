package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-webhook-engine/internal/core/domain"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := TokenRequest{
		KeyID:  "  op_admin  ",
		APIKey: "  whsec-operator-key  ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "op_admin", req.KeyID)
	assert.Equal(t, "whsec-operator-key", req.APIKey)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := ChargebackEventRequest{
		TransactionID: "txn-001",
		ChargebackID:  "cb-001",
		Reason:        "fraud <script>alert('x')</script> claim",
		Amount:        2599,
	}
	SanitizeStruct(&req)

	assert.Contains(t, req.Reason, "&lt;script&gt;")
	assert.NotContains(t, req.Reason, "<script>")
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

func TestSanitizeStruct_AuthResultRequest(t *testing.T) {
	score := 0.92
	req := AuthResultEventRequest{
		TransactionID: "  txn-001  ",
		Decision:      " APPROVE ",
		Score:         &score,
	}
	SanitizeStruct(&req)

	assert.Equal(t, "txn-001", req.TransactionID)
	assert.Equal(t, "APPROVE", req.Decision)
	assert.Equal(t, 0.92, *req.Score)
}

// --- Custom Validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"wh_1a2b3c4d",
		"TXN_002",
		"a.b.c",
		"simple123",
		"ABC-def_GHI.123",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"wh 001",      // space
		"wh<001>",     // angle brackets
		"wh;DROP",     // semicolon
		"",            // empty
		"hello world", // space
		"wh\n001",     // newline
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

// --- Mapping tests ---

func TestNewWebhookResponse_RedactsSecret(t *testing.T) {
	sub := &domain.Subscription{
		ID:             "wh_pay",
		URL:            "https://hooks.example.com/pay",
		Secret:         "whsec_super_secret",
		EventTypes:     []domain.EventType{domain.EventTypeSettlement},
		Timeout:        5 * time.Second,
		MaxRetries:     3,
		RetryDelayBase: time.Second,
		RetryDelayMax:  time.Minute,
		Enabled:        true,
		CreatedAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:      time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
	}

	resp := NewWebhookResponse(sub)

	assert.Equal(t, "wh_pay", resp.ID)
	assert.Equal(t, []string{"SETTLEMENT"}, resp.EventTypes)
	assert.Equal(t, int64(5000), resp.TimeoutMS)
	assert.Equal(t, int64(1000), resp.RetryDelayBaseMS)
	assert.Equal(t, int64(60000), resp.RetryDelayMaxMS)
	assert.Equal(t, "2025-06-01T12:00:00Z", resp.CreatedAt)
}

func TestNewDeliveryRecordResponse(t *testing.T) {
	code := 200
	sentAt := time.Date(2025, 6, 1, 12, 0, 1, 0, time.UTC)
	rec := &domain.DeliveryAttempt{
		ID:             "rec-1",
		SubscriptionID: "wh_pay",
		EventID:        "ev-1",
		URL:            "https://hooks.example.com/pay",
		Status:         domain.DeliveryStatusSent,
		Attempt:        2,
		ResponseCode:   &code,
		SentAt:         &sentAt,
		CreatedAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	resp := NewDeliveryRecordResponse(rec)

	assert.Equal(t, "SENT", resp.Status)
	assert.Equal(t, 2, resp.Attempt)
	require.NotNil(t, resp.ResponseCode)
	assert.Equal(t, 200, *resp.ResponseCode)
	require.NotNil(t, resp.SentAt)
	assert.Nil(t, resp.ErrorMessage)
	assert.Nil(t, resp.RetryAfter)
}
