// Package memory provides the in-process storage adapters backing the
// delivery engine. Registry and history are in-memory by design; their
// contents do not survive a process restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"payment-webhook-engine/internal/core/domain"
)

// SubscriptionRegistry implements ports.SubscriptionStore. All reads hand
// out clones, so no caller ever holds a pointer into the registry's state.
type SubscriptionRegistry struct {
	mu   sync.RWMutex
	subs map[string]*domain.Subscription
}

func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{subs: make(map[string]*domain.Subscription)}
}

// Put inserts or replaces the subscription with the same id. Replacing keeps
// the original CreatedAt.
func (r *SubscriptionRegistry) Put(ctx context.Context, sub *domain.Subscription) error {
	stored := sub.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.subs[stored.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	r.subs[stored.ID] = stored
	return nil
}

func (r *SubscriptionRegistry) Get(ctx context.Context, id string) (*domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[id]
	if !ok {
		return nil, nil
	}
	return sub.Clone(), nil
}

func (r *SubscriptionRegistry) Remove(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[id]; !ok {
		return false, nil
	}
	delete(r.subs, id)
	return true, nil
}

// List returns a snapshot ordered by creation time, ids breaking ties.
func (r *SubscriptionRegistry) List(ctx context.Context) ([]*domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
