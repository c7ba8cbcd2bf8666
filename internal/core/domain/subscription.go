package domain

import (
	"net/url"
	"time"

	"payment-webhook-engine/pkg/apperror"
)

// Subscription is a registered downstream endpoint plus its delivery policy.
// Instances are created through NewSubscription so every field constraint is
// checked up front; an invalid configuration is rejected, never coerced.
type Subscription struct {
	ID             string        `json:"id"`
	URL            string        `json:"url"`
	Secret         string        `json:"-"` // Shared HMAC secret, never exposed
	EventTypes     []EventType   `json:"event_types"` // Empty = all types
	Timeout        time.Duration `json:"-"`
	MaxRetries     int           `json:"max_retries"`
	RetryDelayBase time.Duration `json:"-"`
	RetryDelayMax  time.Duration `json:"-"`
	Enabled        bool          `json:"enabled"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// SubscriptionConfig holds the raw inputs for NewSubscription.
type SubscriptionConfig struct {
	ID             string
	URL            string
	Secret         string
	EventTypes     []EventType
	Timeout        time.Duration
	MaxRetries     int
	RetryDelayBase time.Duration
	RetryDelayMax  time.Duration
	Enabled        bool
}

// NewSubscription validates cfg and returns a subscription. Every violation
// is a CFG_001 configuration error.
func NewSubscription(cfg SubscriptionConfig) (*Subscription, error) {
	if cfg.ID == "" {
		return nil, apperror.Configuration("subscription id must not be empty")
	}
	if cfg.URL == "" {
		return nil, apperror.Configuration("webhook URL must not be empty")
	}
	u, err := url.ParseRequestURI(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, apperror.Configuration("webhook URL must be a valid http(s) URL")
	}
	if cfg.Secret == "" {
		return nil, apperror.Configuration("webhook secret must not be empty")
	}
	if cfg.Timeout <= 0 {
		return nil, apperror.Configuration("timeout must be positive")
	}
	if cfg.MaxRetries < 0 {
		return nil, apperror.Configuration("max retries must not be negative")
	}
	if cfg.RetryDelayBase <= 0 {
		return nil, apperror.Configuration("retry delay base must be positive")
	}
	if cfg.RetryDelayMax <= 0 {
		return nil, apperror.Configuration("retry delay max must be positive")
	}

	now := time.Now().UTC()
	return &Subscription{
		ID:             cfg.ID,
		URL:            cfg.URL,
		Secret:         cfg.Secret,
		EventTypes:     append([]EventType(nil), cfg.EventTypes...),
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		RetryDelayBase: cfg.RetryDelayBase,
		RetryDelayMax:  cfg.RetryDelayMax,
		Enabled:        cfg.Enabled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Matches reports whether the subscription wants the given event type.
// An empty filter subscribes to everything.
func (s *Subscription) Matches(eventType EventType) bool {
	if len(s.EventTypes) == 0 {
		return true
	}
	for _, et := range s.EventTypes {
		if et == eventType {
			return true
		}
	}
	return false
}

// Clone returns an independent copy. Registry reads hand out clones so
// callers can never mutate shared state.
func (s *Subscription) Clone() *Subscription {
	c := *s
	c.EventTypes = append([]EventType(nil), s.EventTypes...)
	return &c
}
