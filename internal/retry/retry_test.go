package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"birdwatch/internal/models"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "test", fastPolicy(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("fetch: %w", models.ErrTransient)
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "test", fastPolicy(3), func(ctx context.Context) error {
		calls++
		return models.ErrTransient
	})

	if !errors.Is(err, models.ErrTransient) {
		t.Fatalf("Expected transient error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestDoDoesNotRetryNonRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "rate limited", err: models.ErrRateLimited},
		{name: "content filtered", err: models.ErrContentFiltered},
		{name: "auth expired", err: models.ErrAuthExpired},
		{name: "not found", err: models.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), "test", fastPolicy(3), func(ctx context.Context) error {
				calls++
				return tt.err
			})

			if !errors.Is(err, tt.err) {
				t.Fatalf("Expected %v, got %v", tt.err, err)
			}
			if calls != 1 {
				t.Errorf("Expected exactly 1 call, got %d", calls)
			}
		})
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	policy := Policy{MaxAttempts: 5, BaseDelay: time.Hour}
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, "test", policy, func(ctx context.Context) error {
			calls++
			return models.ErrTransient
		})
	}()

	// First attempt fails, then Do sleeps for an hour; cancellation should
	// cut the wait short.
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}

	if calls != 1 {
		t.Errorf("Expected 1 call before cancellation, got %d", calls)
	}
}

func TestDoTreatsDeadlineAsTransient(t *testing.T) {
	calls := 0
	policy := Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, CallTimeout: 5 * time.Millisecond}
	err := Do(context.Background(), "test", policy, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Expected success on second attempt, got %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
}
