package resilience

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window request limiter keyed by caller identity.
// Timestamps are pruned lazily on each decision.
type RateLimiter struct {
	maxRequests int
	window      time.Duration

	mu       sync.Mutex
	requests map[string][]time.Time
}

// NewRateLimiter creates a limiter allowing maxRequests per window per key.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
	}
}

// Allow records and accepts the request unless the key already has
// maxRequests timestamps inside the window.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	valid := rl.prune(key, now)

	if len(valid) >= rl.maxRequests {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

// Remaining returns how many requests the key has left in the current window.
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	valid := rl.prune(key, time.Now())
	rl.requests[key] = valid

	remaining := rl.maxRequests - len(valid)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// prune drops timestamps outside the window. Must be called with the lock held.
func (rl *RateLimiter) prune(key string, now time.Time) []time.Time {
	timestamps := rl.requests[key]
	valid := timestamps[:0]
	for _, t := range timestamps {
		if now.Sub(t) < rl.window {
			valid = append(valid, t)
		}
	}
	return valid
}
