package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// RetryPolicy configures the task retry schedule.
type RetryPolicy struct {
	MaxRetries int           // Retries after the first attempt (default 3)
	BaseDelay  time.Duration // Delay before the first retry; doubles each time (default 5s)
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  5 * time.Second,
	}
}

// schedule returns a jitter-free exponential backoff yielding BaseDelay * 2^n
// for the n-th retry. It never stops on its own; callers count attempts.
func (p RetryPolicy) schedule() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         time.Duration(math.MaxInt64),
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BreakerSettings configures per-role circuit breakers.
// A zero ConsecutiveFailures disables them.
type BreakerSettings struct {
	ConsecutiveFailures uint32        // Trip after this many consecutive failures
	OpenTimeout         time.Duration // Stay open this long before probing (default 30s)
}

// CircuitBreakerRegistry manages per-agent-role circuit breakers.
type CircuitBreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	settings BreakerSettings
	logger   *slog.Logger
}

// NewCircuitBreakerRegistry creates a new circuit breaker registry.
func NewCircuitBreakerRegistry(settings BreakerSettings, logger *slog.Logger) *CircuitBreakerRegistry {
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		settings: settings,
		logger:   logger,
	}
}

// Get returns the circuit breaker for the given role.
// Creates a new one if it doesn't exist. Returns nil when breakers are disabled.
func (r *CircuitBreakerRegistry) Get(role string) *gobreaker.CircuitBreaker {
	if r.settings.ConsecutiveFailures == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[role]; ok {
		return cb
	}

	threshold := r.settings.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        role,
		MaxRequests: 3, // Allow 3 test requests in half-open state
		Interval:    0, // Don't clear counts automatically
		Timeout:     r.settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Warn("circuit breaker state change", "agent", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Don't count caller cancellation as an agent failure
			if err == nil {
				return true
			}
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})

	r.breakers[role] = cb
	return cb
}

// State returns the current state of role's breaker, or closed if none exists yet.
func (r *CircuitBreakerRegistry) State(role string) gobreaker.State {
	r.mu.Lock()
	cb, ok := r.breakers[role]
	r.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}

// rejectionWait is how long a call refused by the breaker is held before it asks again.
// An open breaker is half-open once OpenTimeout has passed since the rejection.
func (r *CircuitBreakerRegistry) rejectionWait(err error) time.Duration {
	if errors.Is(err, gobreaker.ErrOpenState) {
		return r.settings.OpenTimeout
	}
	return max(r.settings.OpenTimeout/10, time.Millisecond)
}
