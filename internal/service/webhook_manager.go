package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"payment-webhook-engine/internal/core/domain"
	"payment-webhook-engine/internal/core/ports"
	"payment-webhook-engine/pkg/apperror"
	"payment-webhook-engine/pkg/metrics"
)

// EngineDefaults supplies the delivery policy applied to subscriptions that
// do not set their own timeout or retry delays.
type EngineDefaults struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryDelayBase time.Duration
	RetryDelayMax  time.Duration
}

// WebhookManagerImpl implements ports.WebhookManager. Between Start and Stop
// it owns a shared HTTP client for outbound deliveries and a scheduler for
// pending retries; SendEvent refuses work outside that window.
type WebhookManagerImpl struct {
	subs       ports.SubscriptionStore
	history    ports.DeliveryHistory
	dispatcher *DeliveryDispatcher
	defaults   EngineDefaults
	metrics    *metrics.Metrics // nil disables instrumentation
	log        zerolog.Logger

	mu        sync.RWMutex
	running   bool
	client    *http.Client
	scheduler *RetryScheduler
	inflight  sync.WaitGroup
}

// NewWebhookManager creates a stopped manager. Call Start before sending.
func NewWebhookManager(
	subs ports.SubscriptionStore,
	history ports.DeliveryHistory,
	dispatcher *DeliveryDispatcher,
	defaults EngineDefaults,
	m *metrics.Metrics,
	log zerolog.Logger,
) *WebhookManagerImpl {
	return &WebhookManagerImpl{
		subs:       subs,
		history:    history,
		dispatcher: dispatcher,
		defaults:   defaults,
		metrics:    m,
		log:        log,
	}
}

// Start allocates the delivery client and retry scheduler. Calling Start on
// a running manager is a no-op.
func (m *WebhookManagerImpl) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	// Per-attempt timeouts come from each subscription, so the client itself
	// carries none.
	m.client = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	m.scheduler = NewRetryScheduler(m.log)
	m.running = true

	m.log.Info().Msg("webhook engine started")
	return nil
}

// Stop closes the sending window, cancels retries that have not fired, waits
// for in-flight deliveries to record their outcome, and releases the client.
// Calling Stop on a stopped manager is a no-op.
func (m *WebhookManagerImpl) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	scheduler := m.scheduler
	client := m.client
	m.scheduler = nil
	m.client = nil
	m.mu.Unlock()

	// Retry callbacks acquire the read lock, so the scheduler must be stopped
	// without holding the write lock.
	scheduler.Stop()
	m.inflight.Wait()
	client.CloseIdleConnections()

	m.log.Info().Msg("webhook engine stopped")
	return nil
}

// Running reports whether the manager currently accepts events.
func (m *WebhookManagerImpl) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// admit registers one unit of delivery work while the engine is running.
// Callers that receive ok must release the unit with m.inflight.Done.
func (m *WebhookManagerImpl) admit() (*http.Client, *RetryScheduler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.running {
		return nil, nil, false
	}
	m.inflight.Add(1)
	return m.client, m.scheduler, true
}

// SendEvent builds the event payload, fans it out to every type-matching
// subscription in parallel, and returns one first-attempt record per
// subscription. Disabled subscriptions get a synthetic failure without any
// network call. Retries for failed attempts run asynchronously afterwards.
func (m *WebhookManagerImpl) SendEvent(ctx context.Context, eventType domain.EventType, data, metadata map[string]any) ([]*domain.DeliveryAttempt, error) {
	if eventType == "" {
		return nil, apperror.Validation("event type must not be empty")
	}

	client, scheduler, ok := m.admit()
	if !ok {
		return nil, apperror.ErrEngineNotRunning()
	}
	defer m.inflight.Done()

	event := domain.NewEventPayload(eventType, data, metadata)
	body, err := json.Marshal(event)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal event: %w", err))
	}

	subs, err := m.subs.List(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list subscriptions: %w", err))
	}

	targets := make([]*domain.Subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.Matches(eventType) {
			targets = append(targets, sub)
		}
	}

	if m.metrics != nil {
		m.metrics.EventsEmittedTotal.WithLabelValues(string(eventType)).Inc()
	}
	m.log.Info().
		Str("event_id", event.ID).
		Str("event_type", string(eventType)).
		Int("subscriptions", len(targets)).
		Msg("event emitted")

	records := make([]*domain.DeliveryAttempt, len(targets))
	var wg sync.WaitGroup
	for i, sub := range targets {
		if !sub.Enabled {
			rec := domain.NewDisabledAttempt(sub, event.ID)
			m.record(&rec)
			records[i] = &rec
			continue
		}
		wg.Add(1)
		go func(i int, sub *domain.Subscription) {
			defer wg.Done()
			records[i] = m.deliver(ctx, client, scheduler, sub, event, body, 1)
		}(i, sub)
	}
	wg.Wait()

	return records, nil
}

// deliver runs one attempt, records its outcome, and chains a retry when the
// attempt failed and the subscription has attempts left.
func (m *WebhookManagerImpl) deliver(ctx context.Context, client *http.Client, scheduler *RetryScheduler, sub *domain.Subscription, event *domain.EventPayload, body []byte, attempt int) *domain.DeliveryAttempt {
	start := time.Now()
	rec := m.dispatcher.Attempt(ctx, client, sub, event, body, attempt)
	if m.metrics != nil {
		m.metrics.DeliveryDuration.Observe(time.Since(start).Seconds())
	}

	m.record(rec)
	if rec.Status == domain.DeliveryStatusFailed {
		m.scheduleRetry(scheduler, sub, event, body, rec)
	}
	return rec
}

// scheduleRetry appends a RETRYING marker and arms the timer for the next
// attempt. The marker stays in history even when the engine stops before the
// timer fires; history is append-only.
func (m *WebhookManagerImpl) scheduleRetry(scheduler *RetryScheduler, sub *domain.Subscription, event *domain.EventPayload, body []byte, failed *domain.DeliveryAttempt) {
	if failed.Attempt >= sub.MaxRetries {
		m.log.Debug().
			Str("subscription_id", sub.ID).
			Str("event_id", event.ID).
			Int("attempt", failed.Attempt).
			Msg("retries exhausted")
		return
	}

	delay := CalculateDelay(failed.Attempt, sub.RetryDelayBase, sub.RetryDelayMax)
	next := failed.Attempt + 1
	marker := domain.NewRetryingAttempt(sub, event.ID, next, time.Now().UTC().Add(delay))
	m.record(&marker)

	armed := scheduler.Schedule(marker.ID, delay, func() {
		m.runRetry(sub, event, body, next)
	})
	if !armed {
		m.log.Debug().
			Str("subscription_id", sub.ID).
			Str("event_id", event.ID).
			Int("attempt", next).
			Msg("retry dropped, engine stopping")
	}
}

// runRetry is the scheduler callback for one re-attempt. Retries outlive the
// emitting request, so they run on a background context; the per-attempt
// timeout still applies.
func (m *WebhookManagerImpl) runRetry(sub *domain.Subscription, event *domain.EventPayload, body []byte, attempt int) {
	client, scheduler, ok := m.admit()
	if !ok {
		return
	}
	defer m.inflight.Done()

	m.deliver(context.Background(), client, scheduler, sub, event, body, attempt)
}

// record appends one attempt to history. Failures are logged, not raised:
// losing an audit row must never fail a delivery.
func (m *WebhookManagerImpl) record(rec *domain.DeliveryAttempt) {
	if err := m.history.Append(context.Background(), rec); err != nil {
		m.log.Error().Err(err).
			Str("subscription_id", rec.SubscriptionID).
			Str("event_id", rec.EventID).
			Msg("failed to record delivery attempt")
	}
	if m.metrics != nil {
		m.metrics.DeliveryAttemptsTotal.WithLabelValues(string(rec.Status)).Inc()
	}
}

// AddWebhook registers a subscription, or replaces the one sharing its id.
// Zero-valued timeout and retry delays fall back to the engine defaults, and
// an id is generated when cfg.ID is empty. The bool reports creation (true)
// versus replacement (false).
func (m *WebhookManagerImpl) AddWebhook(ctx context.Context, cfg domain.SubscriptionConfig) (*domain.Subscription, bool, error) {
	if cfg.ID == "" {
		id, err := generateKey("wh_", 8)
		if err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("generate subscription id: %w", err))
		}
		cfg.ID = id
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = m.defaults.Timeout
	}
	if cfg.RetryDelayBase == 0 {
		cfg.RetryDelayBase = m.defaults.RetryDelayBase
	}
	if cfg.RetryDelayMax == 0 {
		cfg.RetryDelayMax = m.defaults.RetryDelayMax
	}

	sub, err := domain.NewSubscription(cfg)
	if err != nil {
		return nil, false, err
	}

	existing, err := m.subs.Get(ctx, sub.ID)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("find subscription: %w", err))
	}
	created := existing == nil
	if existing != nil {
		sub.CreatedAt = existing.CreatedAt
	}

	if err := m.subs.Put(ctx, sub); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("store subscription: %w", err))
	}

	m.log.Info().
		Str("subscription_id", sub.ID).
		Str("url", sub.URL).
		Bool("created", created).
		Msg("webhook registered")
	return sub, created, nil
}

// RemoveWebhook deletes a subscription. Unknown ids are a no-op, never an
// error; the bool reports whether anything was removed.
func (m *WebhookManagerImpl) RemoveWebhook(ctx context.Context, id string) (bool, error) {
	removed, err := m.subs.Remove(ctx, id)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("remove subscription: %w", err))
	}
	if removed {
		m.log.Info().Str("subscription_id", id).Msg("webhook removed")
	}
	return removed, nil
}

func (m *WebhookManagerImpl) GetWebhook(ctx context.Context, id string) (*domain.Subscription, error) {
	sub, err := m.subs.Get(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find subscription: %w", err))
	}
	if sub == nil {
		return nil, apperror.ErrNotFound("webhook")
	}
	return sub, nil
}

func (m *WebhookManagerImpl) ListWebhooks(ctx context.Context) ([]*domain.Subscription, error) {
	subs, err := m.subs.List(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list subscriptions: %w", err))
	}
	return subs, nil
}

// SetWebhookEnabled toggles delivery for one subscription without touching
// the rest of its configuration.
func (m *WebhookManagerImpl) SetWebhookEnabled(ctx context.Context, id string, enabled bool) (*domain.Subscription, error) {
	sub, err := m.subs.Get(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find subscription: %w", err))
	}
	if sub == nil {
		return nil, apperror.ErrNotFound("webhook")
	}

	sub.Enabled = enabled
	sub.UpdatedAt = time.Now().UTC()
	if err := m.subs.Put(ctx, sub); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("store subscription: %w", err))
	}

	m.log.Info().Str("subscription_id", id).Bool("enabled", enabled).Msg("webhook toggled")
	return sub, nil
}

func (m *WebhookManagerImpl) GetDeliveryHistory(ctx context.Context, filter ports.DeliveryHistoryFilter) ([]*domain.DeliveryAttempt, error) {
	if filter.Limit < 0 {
		return nil, apperror.Validation("limit must not be negative")
	}
	recs, err := m.history.Query(ctx, filter)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("query history: %w", err))
	}
	return recs, nil
}

// ClearDeliveryHistory prunes records created more than olderThanDays ago
// and returns the removed count. Zero days clears everything.
func (m *WebhookManagerImpl) ClearDeliveryHistory(ctx context.Context, olderThanDays int) (int, error) {
	if olderThanDays < 0 {
		return 0, apperror.Validation("older_than_days must not be negative")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	removed, err := m.history.Prune(ctx, cutoff)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("prune history: %w", err))
	}

	m.log.Info().
		Int("removed", removed).
		Int("older_than_days", olderThanDays).
		Msg("delivery history pruned")
	return removed, nil
}

func (m *WebhookManagerImpl) GetWebhookStats(ctx context.Context, id string) (*ports.DeliveryStats, error) {
	sub, err := m.subs.Get(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find subscription: %w", err))
	}
	if sub == nil {
		return nil, apperror.ErrNotFound("webhook")
	}

	stats, err := m.history.Stats(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("aggregate stats: %w", err))
	}
	return stats, nil
}

func generateKey(prefix string, length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(b), nil
}
