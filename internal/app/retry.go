package app

import (
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy decides how job retries are spaced. It is owned by the
// scheduler and deliberately decoupled from the engine's business logic.
type RetryPolicy struct {
	// MaxAttempts bounds the number of retries after the initial execution.
	MaxAttempts int
	// BaseDelay is the backoff base before jitter.
	BaseDelay time.Duration
	// Multiplier grows the backoff each retry.
	Multiplier float64
}

// DefaultRetryPolicy mirrors the broker defaults: 3 retries, 7s base,
// doubling backoff with full jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 7 * time.Second, Multiplier: 2}
}

// Backoff returns the un-jittered delay before retry number n (1-indexed):
// BaseDelay * Multiplier^(n-1).
func (p RetryPolicy) Backoff(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(retry-1)))
}

// NextDelay applies full jitter to the backoff: a random duration in
// [0, Backoff(retry)]. The expectation still grows with each retry while
// spreading simultaneous retries apart.
func (p RetryPolicy) NextDelay(retry int) time.Duration {
	return time.Duration(rand.Float64() * float64(p.Backoff(retry)))
}
