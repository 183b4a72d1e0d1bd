package models

import (
	"context"
	"errors"
)

// Error taxonomy for the collaborator boundary. Upstream clients wrap one of
// these sentinels so the core can classify failures without knowing whether
// they came from the browser, the LLM API, or the network.
var (
	// ErrTransient covers network hiccups and timeouts. Retry with backoff.
	ErrTransient = errors.New("transient failure")

	// ErrRateLimited means back off until the next scheduled tick. Never
	// retried within the same cycle run.
	ErrRateLimited = errors.New("rate limited")

	// ErrAuthExpired is fatal to the whole process: the session needs an
	// external re-login, so the scheduler halts instead of spinning.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrNotFound is returned when a previously seen tweet no longer exists.
	ErrNotFound = errors.New("not found")

	// ErrContentFiltered means the generation was refused for this input.
	// Dropped, not retried.
	ErrContentFiltered = errors.New("content filtered")

	// ErrInvariant signals store/tracker inconsistency. Should never happen;
	// logged as a bug signal and the item is skipped.
	ErrInvariant = errors.New("invariant violation")
)

// IsRetryable reports whether err is worth retrying with backoff within the
// same run. Context timeouts count as transient.
func IsRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return errors.Is(err, ErrTransient)
}

// IsFatal reports whether err should halt every cycle, not just the current
// one. Only auth expiry qualifies: it is shared infrastructure.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuthExpired)
}
