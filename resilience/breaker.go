package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BreakerState is the circuit breaker state machine position.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// ErrBreakerOpen is returned when a call is rejected without being attempted.
var ErrBreakerOpen = errors.New("resilience: circuit breaker open")

// successesToClose is how many consecutive half-open successes close the breaker.
const successesToClose = 2

// CircuitBreaker guards one named dependency. Transitions:
// closed→open at the failure threshold, open→half_open once the reset timeout
// elapses, half_open→closed after consecutive successes, half_open→open on
// any failure. One instance per dependency, living for the process lifetime.
type CircuitBreaker struct {
	name         string
	threshold    int
	resetTimeout time.Duration
	log          *zap.Logger

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewBreaker creates a closed breaker for the named dependency.
func NewBreaker(name string, threshold int, resetTimeout time.Duration, log *zap.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		name:         name,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		log:          log.With(zap.String("breaker", name)),
		state:        StateClosed,
	}
}

// Execute runs fn unless the breaker is open. An open breaker rejects
// immediately with ErrBreakerOpen until the reset timeout has elapsed, at
// which point one trial call is let through in half_open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.allow(); err != nil {
		return fmt.Errorf("%s: %w", cb.name, err)
	}

	err := fn(ctx)
	cb.record(err)
	return err
}

// State returns the current breaker position.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Snapshot reports the breaker's current state for the ops surface.
type Snapshot struct {
	Name        string       `json:"name"`
	State       BreakerState `json:"state"`
	Failures    int          `json:"failures"`
	LastFailure *time.Time   `json:"lastFailure,omitempty"`
}

// Snapshot returns a point-in-time view of the breaker.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	snap := Snapshot{Name: cb.name, State: cb.state, Failures: cb.failures}
	if !cb.lastFailure.IsZero() {
		t := cb.lastFailure
		snap.LastFailure = &t
	}
	return snap
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return nil
	}
	if time.Since(cb.lastFailure) < cb.resetTimeout {
		return ErrBreakerOpen
	}
	cb.state = StateHalfOpen
	cb.successes = 0
	cb.log.Info("breaker half open, allowing trial call")
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		switch cb.state {
		case StateHalfOpen:
			cb.successes++
			if cb.successes >= successesToClose {
				cb.state = StateClosed
				cb.failures = 0
				cb.log.Info("breaker closed after trial successes")
			}
		case StateClosed:
			if cb.failures > 0 {
				cb.failures--
			}
		}
		return
	}

	cb.lastFailure = time.Now()
	switch cb.state {
	case StateHalfOpen:
		cb.state = StateOpen
		cb.log.Warn("breaker reopened after half-open failure", zap.Error(err))
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.threshold {
			cb.state = StateOpen
			cb.log.Warn("breaker tripped",
				zap.Int("consecutive_failures", cb.failures),
				zap.Duration("reset_timeout", cb.resetTimeout),
				zap.Error(err))
		}
	}
}
