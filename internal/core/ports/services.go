package ports

import (
	"context"
	"time"

	"payment-webhook-engine/internal/core/domain"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing for outbound webhook
// deliveries and inbound emission requests.
type SignatureService interface {
	// SignPayload computes the X-Webhook-Signature header value for a raw
	// body: "sha256=<lowercase hex>".
	SignPayload(secret string, body []byte) string
	// VerifyPayload checks a signature header value against the raw body.
	// Uses constant-time comparison to prevent timing attacks.
	VerifyPayload(secret string, body []byte, signature string) bool
	// SignRequest computes the hex HMAC digest of a canonical request string.
	SignRequest(secret string, canonical string) string
	// VerifyRequest checks an inbound request signature in constant time.
	VerifyRequest(secret string, canonical string, signature string) bool
	// BuildCanonicalString constructs the canonical request representation.
	// Format: METHOD|PATH|TIMESTAMP|NONCE|BODY
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// HashService handles API key hashing (Argon2id).
type HashService interface {
	Hash(apiKey string) (string, error)
	Verify(apiKey string, hash string) (bool, error)
}

// TokenService handles JWT token operations for operator sessions.
type TokenService interface {
	Generate(keyID string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	KeyID string
}

// IdempotencyCache is the Redis-layer emission replay check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, accessKey string, nonce string, ttl time.Duration) (bool, error)
}

// --- Service Ports (Business Logic) ---

// WebhookManager orchestrates subscription management and event delivery.
// It owns the shared HTTP client and the retry scheduler lifecycle.
type WebhookManager interface {
	// Start prepares the delivery client and retry scheduler. Idempotent.
	Start(ctx context.Context) error
	// Stop cancels pending retries, waits for in-flight deliveries, and
	// releases the client. Idempotent.
	Stop(ctx context.Context) error
	// Running reports whether the engine currently accepts events.
	Running() bool
	// SendEvent fans the event out to every enabled, type-matching
	// subscription and returns one first-attempt record per subscription.
	// Retries continue asynchronously after it returns.
	SendEvent(ctx context.Context, eventType domain.EventType, data, metadata map[string]any) ([]*domain.DeliveryAttempt, error)

	// Administrative operations.
	AddWebhook(ctx context.Context, cfg domain.SubscriptionConfig) (*domain.Subscription, bool, error) // sub, created, error
	RemoveWebhook(ctx context.Context, id string) (bool, error)
	GetWebhook(ctx context.Context, id string) (*domain.Subscription, error)
	ListWebhooks(ctx context.Context) ([]*domain.Subscription, error)
	SetWebhookEnabled(ctx context.Context, id string, enabled bool) (*domain.Subscription, error)
	GetDeliveryHistory(ctx context.Context, filter DeliveryHistoryFilter) ([]*domain.DeliveryAttempt, error)
	ClearDeliveryHistory(ctx context.Context, olderThanDays int) (int, error)
	GetWebhookStats(ctx context.Context, id string) (*DeliveryStats, error)
}

// EventEmitter packages typed domain events into webhook deliveries.
type EventEmitter interface {
	EmitAuthResult(ctx context.Context, transactionID, decision string, score float64, metadata map[string]any) ([]*domain.DeliveryAttempt, error)
	EmitSettlement(ctx context.Context, transactionID string, amount int64, currency, status string, metadata map[string]any) ([]*domain.DeliveryAttempt, error)
	EmitChargeback(ctx context.Context, transactionID, chargebackID, reason string, amount int64, metadata map[string]any) ([]*domain.DeliveryAttempt, error)
	EmitLoyaltyEvent(ctx context.Context, customerID, loyaltyEventType string, pointsChange int64, metadata map[string]any) ([]*domain.DeliveryAttempt, error)
}

// AuthService defines operator authentication.
type AuthService interface {
	// IssueToken verifies an operator API key and returns a signed JWT
	// with its expiry.
	IssueToken(ctx context.Context, keyID, apiKey string) (string, time.Time, error)
}

// AuditService records administrative actions.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
