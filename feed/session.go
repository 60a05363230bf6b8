package feed

import (
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"
)

// SessionProfile is a named bundle of delay and backoff constants. Profiles
// are read-only; a Session is the only thing holding one.
type SessionProfile struct {
	BaseDelayMin     time.Duration
	BaseDelayMax     time.Duration
	BatchDelayJitter time.Duration
	RecoveryDelay    time.Duration
	BackoffDelay     time.Duration
	ErrorThreshold   int
	AdaptiveFactor   float64
	MaxAdaptiveDelay time.Duration
}

const (
	ModeConservative = "conservative"
	ModeBalanced     = "balanced"
	ModeAggressive   = "aggressive"
)

var profiles = map[string]SessionProfile{
	ModeConservative: {
		BaseDelayMin:     8 * time.Second,
		BaseDelayMax:     12 * time.Second,
		BatchDelayJitter: 15 * time.Second,
		RecoveryDelay:    90 * time.Second,
		BackoffDelay:     180 * time.Second,
		ErrorThreshold:   2,
		AdaptiveFactor:   2.0,
		MaxAdaptiveDelay: 120 * time.Second,
	},
	ModeBalanced: {
		BaseDelayMin:     5 * time.Second,
		BaseDelayMax:     8 * time.Second,
		BatchDelayJitter: 10 * time.Second,
		RecoveryDelay:    60 * time.Second,
		BackoffDelay:     120 * time.Second,
		ErrorThreshold:   3,
		AdaptiveFactor:   1.5,
		MaxAdaptiveDelay: 60 * time.Second,
	},
	ModeAggressive: {
		BaseDelayMin:     3 * time.Second,
		BaseDelayMax:     5 * time.Second,
		BatchDelayJitter: 5 * time.Second,
		RecoveryDelay:    30 * time.Second,
		BackoffDelay:     60 * time.Second,
		ErrorThreshold:   5,
		AdaptiveFactor:   1.2,
		MaxAdaptiveDelay: 30 * time.Second,
	},
}

// recoveryWindow is how recent the last rate-limit rejection must be for
// session recovery to still apply.
const recoveryWindow = 5 * time.Minute

// Session exposes jittered delays derived from a named profile. It holds no
// mutable state beyond the profile chosen at construction.
type Session struct {
	Mode       string
	profile    SessionProfile
	batchDelay time.Duration
	rng        *rand.Rand
	now        func() time.Time
}

// NewSession selects the named profile. An unrecognized mode falls back to
// conservative with a warning, matching upstream-friendly defaults.
func NewSession(mode string, batchDelay time.Duration) *Session {
	mode = strings.ToLower(mode)
	profile, ok := profiles[mode]
	if !ok {
		slog.Warn("unknown session mode, using conservative", "mode", mode)
		mode = ModeConservative
		profile = profiles[ModeConservative]
	}

	return &Session{
		Mode:       mode,
		profile:    profile,
		batchDelay: batchDelay,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		now:        time.Now,
	}
}

// Profile returns the constants backing this session.
func (s *Session) Profile() SessionProfile {
	return s.profile
}

// BaseDelay returns a uniformly jittered per-request delay in the profile's
// [min, max] range.
func (s *Session) BaseDelay() time.Duration {
	return s.uniform(s.profile.BaseDelayMin, s.profile.BaseDelayMax)
}

// BatchDelay returns the configured inter-batch delay plus uniform jitter up
// to the profile's ceiling.
func (s *Session) BatchDelay() time.Duration {
	return s.batchDelay + s.uniform(0, s.profile.BatchDelayJitter)
}

// AdaptiveDelay grows the base delay by the profile's factor per consecutive
// failure, capped at the profile's ceiling.
func (s *Session) AdaptiveDelay(consecutiveFailures int) time.Duration {
	base := float64(s.BaseDelay())
	adaptive := base * math.Pow(s.profile.AdaptiveFactor, float64(consecutiveFailures))
	if adaptive > float64(s.profile.MaxAdaptiveDelay) {
		return s.profile.MaxAdaptiveDelay
	}
	return time.Duration(adaptive)
}

// RecoveryDelay is the pause applied when session recovery is signaled.
func (s *Session) RecoveryDelay() time.Duration {
	return s.profile.RecoveryDelay
}

// BackoffDelay is the longer pause for an exhausted session.
func (s *Session) BackoffDelay() time.Duration {
	return s.profile.BackoffDelay
}

// ErrorThreshold is the number of consecutive rate-limit rejections that
// marks the session as exhausted.
func (s *Session) ErrorThreshold() int {
	return s.profile.ErrorThreshold
}

// ShouldApplySessionRecovery reports whether consecutive rate-limit
// rejections reached the profile's threshold and the most recent one is
// still fresh.
func (s *Session) ShouldApplySessionRecovery(consecutive429 int, last429 time.Time) bool {
	if consecutive429 < s.profile.ErrorThreshold {
		return false
	}
	return s.now().Sub(last429) < recoveryWindow
}

func (s *Session) uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(s.rng.Int63n(int64(max-min)))
}
