package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter caps calls against an upstream API at a given capacity per
// rolling window, token-bucket style. Instantiate one per call site and
// inject it; there is no process-wide limiter state.
type Limiter struct {
	bucket *rate.Limiter
}

// New returns a limiter allowing capacity calls per window, smoothing
// bursty arrivals instead of rejecting them.
func New(capacity int, window time.Duration) *Limiter {
	if capacity <= 0 {
		capacity = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		bucket: rate.NewLimiter(rate.Every(window/time.Duration(capacity)), capacity),
	}
}

// Wait blocks until a call slot is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.bucket.Wait(ctx)
}

// Allow reports whether a call slot is immediately available.
func (l *Limiter) Allow() bool {
	return l.bucket.Allow()
}
