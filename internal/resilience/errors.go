package resilience

import "errors"

// ErrCircuitOpen is returned when a circuit breaker rejects a call without
// invoking the wrapped operation.
var ErrCircuitOpen = errors.New("circuit breaker is open - service unavailable")

// ErrRateLimited is returned when a caller exceeds its request window.
var ErrRateLimited = errors.New("rate limit exceeded")
