package memory

import (
	"context"
	"sync"
	"time"

	"payment-webhook-engine/internal/core/domain"
	"payment-webhook-engine/internal/core/ports"
)

// DeliveryHistoryStore implements ports.DeliveryHistory as an append-only
// slice in insertion order. Records are copied on the way in and out; the
// only way entries leave is an explicit Prune.
type DeliveryHistoryStore struct {
	mu   sync.RWMutex
	recs []*domain.DeliveryAttempt
}

func NewDeliveryHistoryStore() *DeliveryHistoryStore {
	return &DeliveryHistoryStore{}
}

func (s *DeliveryHistoryStore) Append(ctx context.Context, rec *domain.DeliveryAttempt) error {
	cp := *rec

	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, &cp)
	return nil
}

// Query walks the log newest-first, keeping records that match every
// supplied filter field, and stops once filter.Limit matches are collected.
func (s *DeliveryHistoryStore) Query(ctx context.Context, filter ports.DeliveryHistoryFilter) ([]*domain.DeliveryAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.DeliveryAttempt, 0)
	for i := len(s.recs) - 1; i >= 0; i-- {
		rec := s.recs[i]
		if filter.SubscriptionID != "" && rec.SubscriptionID != filter.SubscriptionID {
			continue
		}
		if filter.EventID != "" && rec.EventID != filter.EventID {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		cp := *rec
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// Prune drops records created before the cutoff and reports how many were
// removed.
func (s *DeliveryHistoryStore) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.recs[:0]
	for _, rec := range s.recs {
		if rec.CreatedAt.Before(olderThan) {
			continue
		}
		kept = append(kept, rec)
	}
	removed := len(s.recs) - len(kept)
	for i := len(kept); i < len(s.recs); i++ {
		s.recs[i] = nil // release pruned records
	}
	s.recs = kept
	return removed, nil
}

func (s *DeliveryHistoryStore) Stats(ctx context.Context, subscriptionID string) (*ports.DeliveryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &ports.DeliveryStats{SubscriptionID: subscriptionID}
	for _, rec := range s.recs {
		if rec.SubscriptionID != subscriptionID {
			continue
		}
		stats.Total++
		switch rec.Status {
		case domain.DeliveryStatusSent:
			stats.Sent++
		case domain.DeliveryStatusFailed:
			stats.Failed++
		case domain.DeliveryStatusRetrying:
			stats.Retrying++
		}
		if stats.LastAttemptAt == nil || rec.CreatedAt.After(*stats.LastAttemptAt) {
			t := rec.CreatedAt
			stats.LastAttemptAt = &t
		}
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Sent) / float64(stats.Total)
	}
	return stats, nil
}
