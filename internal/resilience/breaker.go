package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BreakerState is the state of a circuit breaker.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerStats is a snapshot of breaker state for reporting.
type BreakerStats struct {
	State               BreakerState
	ConsecutiveFailures int
	LastFailureAt       time.Time
}

// CircuitBreaker guards a failing dependency. After threshold consecutive
// failures it rejects calls for resetTimeout, then lets exactly one probe
// through; the probe's outcome decides between closed and open.
//
// One instance exists per protected dependency and is shared by all
// in-flight requests; a burst of failures from unrelated requests tripping
// the breaker for everyone is the intended fail-fast behavior.
type CircuitBreaker struct {
	name         string
	threshold    int
	resetTimeout time.Duration
	logger       *logrus.Logger

	mu            sync.Mutex
	state         BreakerState
	failures      int
	lastFailureAt time.Time
	probeInFlight bool
}

// NewCircuitBreaker creates a closed breaker for the named dependency.
func NewCircuitBreaker(name string, threshold int, resetTimeout time.Duration, logger *logrus.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		name:         name,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		logger:       logger,
		state:        StateClosed,
	}
}

// Execute runs op under the breaker. When the breaker is open and the reset
// timeout has not elapsed, it returns ErrCircuitOpen without invoking op.
// Cancellation errors from op count as failures.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	err := op(ctx)
	if err != nil {
		cb.recordFailure()
		return err
	}

	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(cb.lastFailureAt) < cb.resetTimeout {
			return ErrCircuitOpen
		}
		cb.transitionTo(StateHalfOpen)
		cb.probeInFlight = true
		return nil
	case StateHalfOpen:
		// Only the single probe call may run.
		if cb.probeInFlight {
			return ErrCircuitOpen
		}
		cb.probeInFlight = true
		return nil
	default:
		return ErrCircuitOpen
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.probeInFlight = false
		cb.failures = 0
		cb.transitionTo(StateClosed)
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureAt = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.threshold {
			cb.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		cb.probeInFlight = false
		cb.transitionTo(StateOpen)
	}
}

// transitionTo changes state. Must be called with the lock held.
func (cb *CircuitBreaker) transitionTo(state BreakerState) {
	if cb.state == state {
		return
	}
	if cb.logger != nil {
		cb.logger.WithFields(logrus.Fields{
			"breaker":  cb.name,
			"from":     cb.state.String(),
			"to":       state.String(),
			"failures": cb.failures,
		}).Warn("Circuit breaker state change")
	}
	cb.state = state
}

// State returns the current state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot for health reporting.
func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerStats{
		State:               cb.state,
		ConsecutiveFailures: cb.failures,
		LastFailureAt:       cb.lastFailureAt,
	}
}

// Reset forces the breaker back to closed. Intended for tests and manual
// operator intervention.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.lastFailureAt = time.Time{}
	cb.probeInFlight = false
}
