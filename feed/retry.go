package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrAttemptTimeout marks an attempt that exceeded its per-attempt deadline.
var ErrAttemptTimeout = errors.New("attempt timed out")

// RetryConfig controls the bounded retry executor. The interval between
// attempts is constant; adaptive backoff lives in Session, not here.
type RetryConfig struct {
	MaxAttempts int
	Interval    time.Duration
	Timeout     time.Duration // per-attempt deadline, 0 disables it
	Context     string        // human-readable description for log lines
}

// DefaultRetryConfig mirrors the tuning used for feed fetches: three
// attempts, two seconds apart, thirty seconds per attempt.
func DefaultRetryConfig(operation string) RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Interval:    2 * time.Second,
		Timeout:     30 * time.Second,
		Context:     operation,
	}
}

// Retry runs op until it succeeds or cfg.MaxAttempts attempts have failed,
// sleeping cfg.Interval between attempts. Success is silent; every retry is
// logged at WARN and the final failure at ERROR before the last error is
// returned to the caller.
func Retry(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.Interval), uint64(attempts-1)),
		ctx,
	)

	attempt := 0
	err := backoff.RetryNotify(
		func() error {
			attempt++
			return runAttempt(ctx, cfg.Timeout, op)
		},
		b,
		func(err error, _ time.Duration) {
			if errors.Is(err, ErrAttemptTimeout) {
				slog.Warn("operation timed out, retrying",
					"operation", cfg.Context, "attempt", attempt, "max_attempts", attempts, "interval", cfg.Interval)
			} else {
				slog.Warn("operation failed, retrying",
					"operation", cfg.Context, "attempt", attempt, "max_attempts", attempts, "interval", cfg.Interval, "error", err)
			}
		},
	)
	if err != nil {
		if errors.Is(err, ErrAttemptTimeout) {
			slog.Error("operation timed out after all attempts",
				"operation", cfg.Context, "attempts", attempt)
		} else {
			slog.Error("operation failed after all attempts",
				"operation", cfg.Context, "attempts", attempt, "error", err)
		}
	}
	return err
}

// runAttempt bounds a single attempt with a wall-clock deadline. The op
// receives a context carrying the deadline, but a misbehaving op that
// ignores it still fails the attempt once the deadline passes.
func runAttempt(ctx context.Context, timeout time.Duration, op func(ctx context.Context) error) error {
	if timeout <= 0 {
		return op(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(attemptCtx)
	}()

	select {
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrAttemptTimeout, timeout)
		}
		return err
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrAttemptTimeout, timeout)
		}
		return backoff.Permanent(attemptCtx.Err())
	}
}
