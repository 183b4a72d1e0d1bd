package twitter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter throttles browser traffic against Twitter. Reads (timeline,
// single tweets) and writes (replies, posts) get separate budgets: writes are
// what get accounts flagged.
type RateLimiter struct {
	reads  *rate.Limiter
	writes *rate.Limiter
}

// NewRateLimiter creates a limiter with readsPerMinute/writesPerMinute
// budgets.
func NewRateLimiter(readsPerMinute, writesPerMinute float64) *RateLimiter {
	return &RateLimiter{
		reads:  rate.NewLimiter(rate.Limit(readsPerMinute/60), 2),
		writes: rate.NewLimiter(rate.Limit(writesPerMinute/60), 1),
	}
}

// WaitRead blocks until a read slot is available or ctx is done.
func (rl *RateLimiter) WaitRead(ctx context.Context) error {
	return rl.reads.Wait(ctx)
}

// WaitWrite blocks until a write slot is available or ctx is done.
func (rl *RateLimiter) WaitWrite(ctx context.Context) error {
	return rl.writes.Wait(ctx)
}
