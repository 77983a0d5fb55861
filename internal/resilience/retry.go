package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures retry behavior with exponential backoff and jitter.
type RetryPolicy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterFraction    float64

	// RetryIf decides whether an error is retryable. Nil retries everything.
	RetryIf func(error) bool

	// OnRetry is invoked before each sleep with the failed attempt number,
	// the error, and the computed delay.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryPolicy returns the standard policy for external calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		BaseDelay:         1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.3,
	}
}

// Do executes op with retries under the given policy.
//
// A non-retryable error (per RetryIf) is returned immediately. After the
// final attempt the last error is returned. Context cancellation during a
// backoff sleep aborts the loop with the context error.
func Do[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if policy.RetryIf != nil && !policy.RetryIf(err) {
			return zero, err
		}

		if attempt == policy.MaxAttempts {
			break
		}

		delay := backoffDelay(policy, attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}

// backoffDelay computes min(base * mult^(attempt-1) * (1 + U(0, jitter)), max).
func backoffDelay(policy RetryPolicy, attempt int) time.Duration {
	exp := float64(policy.BaseDelay) * math.Pow(policy.BackoffMultiplier, float64(attempt-1))
	jitter := 1.0 + rand.Float64()*policy.JitterFraction
	delay := time.Duration(exp * jitter)
	if delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}
	return delay
}
