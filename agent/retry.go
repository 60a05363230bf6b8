package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig controls the retry wrapper around an agent.
type RetryConfig struct {
	MaxRetries     int           // retries after the initial attempt
	InitialBackoff time.Duration // first backoff interval
	MaxBackoff     time.Duration // backoff cap
	Timeout        time.Duration // budget for all attempts combined
}

// DefaultRetryConfig suits Gemini free-tier quota errors: generous retry
// count, exponential backoff and a 5-minute overall budget per call.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     60 * time.Second,
		Timeout:        5 * time.Minute,
	}
}

// WithRetry wraps an agent so transient failures (quota, rate limits,
// server errors) are retried with exponential backoff. Non-retryable
// errors fail immediately.
func WithRetry(inner Agent, config RetryConfig) Agent {
	return &retryAgent{inner: inner, config: config}
}

type retryAgent struct {
	inner  Agent
	config RetryConfig
}

func (r *retryAgent) Name() string {
	return r.inner.Name()
}

func (r *retryAgent) Process(ctx context.Context, content string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.config.InitialBackoff
	exp.MaxInterval = r.config.MaxBackoff
	exp.MaxElapsedTime = 0 // attempt count and context bound us, not elapsed time

	hinted := &serverHintBackOff{BackOff: exp, maxHint: r.config.MaxBackoff}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(hinted, uint64(r.config.MaxRetries)), ctx)

	attempts := 0
	operation := func() (string, error) {
		attempts++
		result, err := r.inner.Process(ctx, content)
		if err == nil {
			return result, nil
		}
		if !isRetryable(err) {
			return "", backoff.Permanent(fmt.Errorf("non-retryable error from %s agent: %w", r.inner.Name(), err))
		}
		hinted.hint = extractRetryDelay(err)
		return "", err
	}

	notify := func(err error, wait time.Duration) {
		slog.Warn("agent call failed, retrying",
			"agent", r.inner.Name(), "attempt", attempts, "wait", wait, "error", err)
	}

	result, err := backoff.RetryNotifyWithData(operation, policy, notify)
	if err == nil {
		return result, nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "", fmt.Errorf("agent %s timed out after %v: %w", r.inner.Name(), r.config.Timeout, err)
	case errors.Is(err, context.Canceled):
		return "", fmt.Errorf("agent %s cancelled: %w", r.inner.Name(), err)
	case attempts > r.config.MaxRetries:
		return "", fmt.Errorf("agent %s failed after max retries (%d): %w", r.inner.Name(), r.config.MaxRetries, err)
	default:
		return "", err
	}
}

// serverHintBackOff stretches the next interval to honor a retry delay the
// API suggested in its error message. The hint never exceeds the
// configured backoff cap.
type serverHintBackOff struct {
	backoff.BackOff
	hint    time.Duration
	maxHint time.Duration
}

func (b *serverHintBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	hint := b.hint
	b.hint = 0
	if hint > b.maxHint {
		hint = b.maxHint
	}
	if hint > next {
		next = hint
	}
	return next
}

// isRetryable reports whether the error is a transient API failure worth
// retrying (quota exhaustion, rate limiting, server overload).
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"resource_exhausted",
		"quota",
		"429",
		"503",
		"rate limit",
		"overloaded",
		"unavailable",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

var retryDelayRe = regexp.MustCompile(`(?i)(?:retry in |retrydelay:)([0-9]+(?:\.[0-9]+)?)s`)

// extractRetryDelay pulls a suggested retry delay out of an API error
// message, e.g. "Please retry in 12.5s" or "retryDelay:10s". Returns 0
// when no delay is present.
func extractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	match := retryDelayRe.FindStringSubmatch(err.Error())
	if match == nil {
		return 0
	}
	seconds, perr := strconv.ParseFloat(match[1], 64)
	if perr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
