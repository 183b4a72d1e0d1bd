package retry

import (
	"context"
	"log"
	"time"

	"birdwatch/internal/models"
)

// Policy controls how Do spaces its attempts.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	CallTimeout time.Duration // per-attempt timeout, 0 means no extra deadline
}

// DefaultPolicy matches the cycle-level discipline: three attempts with
// exponential backoff (1s, 2s, 4s).
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		CallTimeout: 30 * time.Second,
	}
}

// Do runs fn, retrying transient failures with exponential backoff. Rate
// limits, content filtering, auth expiry and not-found are returned
// immediately: retrying those within a run would either spin against a
// limiter or repeat a deterministic refusal.
func Do(ctx context.Context, name string, policy Policy, fn func(ctx context.Context) error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		callCtx := ctx
		var cancel context.CancelFunc
		if policy.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, policy.CallTimeout)
		}
		err = fn(callCtx)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return nil
		}
		if !models.IsRetryable(err) {
			return err
		}
		if attempt == policy.MaxAttempts {
			break
		}

		delay := policy.BaseDelay << (attempt - 1)
		log.Printf("[RETRY] %s attempt %d/%d failed: %v (retrying in %v)",
			name, attempt, policy.MaxAttempts, err, delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return err
}
