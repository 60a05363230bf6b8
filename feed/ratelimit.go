package feed

import (
	"log/slog"
	"math/rand"
	"time"
)

// RateLimiter enforces a minimum gap between requests and a cap on how many
// requests may be issued within a rolling window. It only ever delays the
// caller; it never fails.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	requests    []time.Time
	lastRequest time.Time

	now   func() time.Time
	sleep func(time.Duration)
	rng   *rand.Rand
}

// NewRateLimiter caps requests at maxRequests per windowMinutes.
func NewRateLimiter(maxRequests, windowMinutes int) *RateLimiter {
	l := &RateLimiter{
		maxRequests: maxRequests,
		window:      time.Duration(windowMinutes) * time.Minute,
		now:         time.Now,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	l.sleep = func(d time.Duration) { time.Sleep(d) }
	return l
}

// WaitIfNeeded blocks until a new request is admissible, then records it.
// Two guarantees hold afterwards: no two recorded requests are less than
// baseDelay apart, and no rolling window holds more than maxRequests.
func (l *RateLimiter) WaitIfNeeded(baseDelay time.Duration) {
	now := l.now()

	// Drop request instants that fell out of the window.
	cutoff := now.Add(-l.window)
	kept := l.requests[:0]
	for _, t := range l.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.requests = kept

	if len(l.requests) >= l.maxRequests {
		oldest := l.requests[0]
		wait := oldest.Add(l.window).Sub(now)
		if wait > 0 {
			jitter := time.Second + time.Duration(l.rng.Int63n(int64(2*time.Second)))
			slog.Warn("rate limit window full, waiting", "wait", wait.Round(100*time.Millisecond))
			l.sleep(wait + jitter)
			now = l.now()
		}
	}

	if !l.lastRequest.IsZero() {
		sinceLast := now.Sub(l.lastRequest)
		if sinceLast < baseDelay {
			l.sleep(baseDelay - sinceLast)
			now = l.now()
		}
	}

	l.requests = append(l.requests, now)
	l.lastRequest = now
}
