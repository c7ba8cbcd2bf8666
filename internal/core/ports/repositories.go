package ports

import (
	"context"
	"time"

	"payment-webhook-engine/internal/core/domain"
)

// SubscriptionStore defines the concurrency-safe registry of webhook
// subscriptions. Implementations must tolerate parallel fan-outs reading
// while administrative calls mutate.
type SubscriptionStore interface {
	// Put inserts or replaces the subscription with the same ID.
	// Replacing preserves the original CreatedAt.
	Put(ctx context.Context, sub *domain.Subscription) error
	// Get returns the subscription, or nil when absent.
	Get(ctx context.Context, id string) (*domain.Subscription, error)
	// Remove deletes the subscription. Absent ids are a no-op; the bool
	// reports whether anything was removed.
	Remove(ctx context.Context, id string) (bool, error)
	// List returns a snapshot copy ordered by creation time. Mutating the
	// result must not affect the store.
	List(ctx context.Context) ([]*domain.Subscription, error)
}

// DeliveryHistoryFilter narrows history queries. Zero-valued fields are
// ignored; supplied fields combine with AND semantics.
type DeliveryHistoryFilter struct {
	SubscriptionID string
	EventID        string
	Status         domain.DeliveryStatus
	Limit          int // 0 = unlimited
}

// DeliveryStats holds aggregated delivery outcomes for one subscription.
type DeliveryStats struct {
	SubscriptionID string
	Total          int64
	Sent           int64
	Failed         int64
	Retrying       int64
	SuccessRate    float64 // Sent / Total, 0 when no attempts
	LastAttemptAt  *time.Time
}

// DeliveryHistory is the append-only, queryable log of delivery attempts.
type DeliveryHistory interface {
	// Append records one attempt. Amortized O(1).
	Append(ctx context.Context, rec *domain.DeliveryAttempt) error
	// Query returns records matching every supplied filter field, ordered
	// most-recent-first and truncated to filter.Limit.
	Query(ctx context.Context, filter DeliveryHistoryFilter) ([]*domain.DeliveryAttempt, error)
	// Prune removes records created before the cutoff and returns the count.
	Prune(ctx context.Context, olderThan time.Time) (int, error)
	// Stats aggregates outcomes for one subscription id.
	Stats(ctx context.Context, subscriptionID string) (*DeliveryStats, error)
}

// ClientStore resolves statically provisioned API clients.
type ClientStore interface {
	// EmitterByAccessKey returns the emitter client, or nil when unknown.
	EmitterByAccessKey(ctx context.Context, accessKey string) (*domain.EmitterClient, error)
	// OperatorByKeyID returns the operator, or nil when unknown.
	OperatorByKeyID(ctx context.Context, keyID string) (*domain.Operator, error)
}

// AuditRepository defines persistence for audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}
