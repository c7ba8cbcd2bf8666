package service

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CalculateDelay returns the backoff before re-attempting after the given
// failed attempt number (1-based): min(base * 2^(attempt-1), max).
func CalculateDelay(failedAttempt int, base, max time.Duration) time.Duration {
	if failedAttempt < 1 {
		failedAttempt = 1
	}
	delay := base
	for i := 1; i < failedAttempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// RetryScheduler arms deferred re-delivery attempts. A fresh scheduler is
// created on every engine start; Stop cancels every timer that has not fired
// and waits for callbacks already executing.
type RetryScheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	wg      sync.WaitGroup
	stopped bool
	log     zerolog.Logger
}

// NewRetryScheduler creates an empty scheduler.
func NewRetryScheduler(log zerolog.Logger) *RetryScheduler {
	return &RetryScheduler{
		timers: make(map[string]*time.Timer),
		log:    log,
	}
}

// Schedule arms a timer that invokes fn after delay. id must be unique per
// pending retry. Returns false when the scheduler has been stopped, in which
// case fn will never run.
func (s *RetryScheduler) Schedule(id string, delay time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}

	s.wg.Add(1)
	s.timers[id] = time.AfterFunc(delay, func() {
		defer s.wg.Done()

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		delete(s.timers, id)
		s.mu.Unlock()

		fn()
	})

	s.log.Debug().Str("retry_id", id).Dur("delay", delay).Msg("retry scheduled")
	return true
}

// Pending reports how many retries are currently armed.
func (s *RetryScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels all armed timers and waits for callbacks that already fired
// to finish. Idempotent.
func (s *RetryScheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true

	cancelled := 0
	for id, timer := range s.timers {
		// Stop returns false when the timer already fired; its callback
		// owns the matching wg.Done.
		if timer.Stop() {
			s.wg.Done()
			cancelled++
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Debug().Int("cancelled", cancelled).Msg("retry scheduler stopped")
}
