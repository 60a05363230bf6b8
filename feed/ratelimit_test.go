package feed

import (
	"math/rand"
	"testing"
	"time"
)

// fakeClock drives a RateLimiter deterministically: sleeping advances the
// clock instead of blocking.
type fakeClock struct {
	now time.Time
}

func newFakeLimiter(maxRequests, windowMinutes int) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := NewRateLimiter(maxRequests, windowMinutes)
	l.now = func() time.Time { return clock.now }
	l.sleep = func(d time.Duration) { clock.now = clock.now.Add(d) }
	l.rng = rand.New(rand.NewSource(1))
	return l, clock
}

func TestRateLimiter_EnforcesBaseDelayGap(t *testing.T) {
	l, _ := newFakeLimiter(1000, 15)
	base := 5 * time.Second

	for i := 0; i < 50; i++ {
		l.WaitIfNeeded(base)
	}

	for i := 1; i < len(l.requests); i++ {
		gap := l.requests[i].Sub(l.requests[i-1])
		if gap < base {
			t.Fatalf("requests %d and %d only %v apart, want >= %v", i-1, i, gap, base)
		}
	}
}

func TestRateLimiter_WindowCapacity(t *testing.T) {
	l, _ := newFakeLimiter(10, 15)
	window := 15 * time.Minute

	for i := 0; i < 30; i++ {
		l.WaitIfNeeded(0)
	}

	// Recheck the invariant over every recorded instant: no rolling window
	// may contain more than maxRequests instants.
	all := append([]time.Time(nil), l.requests...)
	for i := range all {
		count := 0
		for j := range all {
			if !all[j].Before(all[i]) && all[j].Before(all[i].Add(window)) {
				count++
			}
		}
		if count > 10 {
			t.Fatalf("window starting at %v holds %d requests, want <= 10", all[i], count)
		}
	}
}

func TestRateLimiter_NoDelayWhenIdle(t *testing.T) {
	l, clock := newFakeLimiter(100, 15)

	l.WaitIfNeeded(5 * time.Second)
	clock.now = clock.now.Add(time.Minute)

	before := clock.now
	l.WaitIfNeeded(5 * time.Second)
	if !clock.now.Equal(before) {
		t.Errorf("expected no sleep after an idle minute, clock moved %v", clock.now.Sub(before))
	}
}

func TestRateLimiter_PrunesExpiredWindow(t *testing.T) {
	l, clock := newFakeLimiter(5, 15)

	for i := 0; i < 5; i++ {
		l.WaitIfNeeded(0)
		clock.now = clock.now.Add(time.Second)
	}

	// Everything falls out of the window; the next request should not wait.
	clock.now = clock.now.Add(16 * time.Minute)
	before := clock.now
	l.WaitIfNeeded(0)
	if !clock.now.Equal(before) {
		t.Errorf("expected no wait after window expiry, clock moved %v", clock.now.Sub(before))
	}
	if len(l.requests) != 1 {
		t.Errorf("expected pruned window with 1 request, got %d", len(l.requests))
	}
}
