package httpx

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// RetryPolicy configures the executor's retry loop. One policy per executor
// instance; callers may override per call.
type RetryPolicy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	BackoffMultiplier float64
	JitterRatio       float64 // in [0,1]
	Timeout           time.Duration
}

// DefaultRetryPolicy returns the process-wide default: three total attempts,
// 500ms base, doubling, 20% jitter, 30s per-call deadline.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		BaseDelay:         500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterRatio:       0.2,
		Timeout:           30 * time.Second,
	}
}

func (p RetryPolicy) sanitized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.BackoffMultiplier <= 0 {
		p.BackoffMultiplier = 1.0
	}
	if p.JitterRatio < 0 {
		p.JitterRatio = 0
	}
	if p.JitterRatio > 1 {
		p.JitterRatio = 1
	}
	return p
}

// DelayForAttempt computes the pause before attempt n (1-indexed, n>=2):
// base * multiplier^(n-2) * (1 + jitter), jitter in [0, JitterRatio].
// Jitter is derived from a seed hash so the same call site retries on the
// same schedule, which keeps the delay bound exact and testable.
func DelayForAttempt(attempt int, p RetryPolicy, jitterSeed string) time.Duration {
	p = p.sanitized()
	if attempt < 2 || p.BaseDelay <= 0 {
		return 0
	}
	ms := float64(p.BaseDelay.Milliseconds()) * math.Pow(p.BackoffMultiplier, float64(attempt-2))
	if p.JitterRatio > 0 {
		ms *= 1 + p.JitterRatio*jitterUnit(fmt.Sprintf("%s:%d", jitterSeed, attempt))
	}
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// jitterUnit maps a seed to [0,1].
func jitterUnit(seed string) float64 {
	sum := sha256.Sum256([]byte(seed))
	u := binary.BigEndian.Uint64(sum[:8])
	return float64(u) / float64(^uint64(0))
}
