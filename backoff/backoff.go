// Package backoff provides bounded full-jitter exponential delays shared by
// the readiness poller, overlay placement retries, and the remote client.
package backoff

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	mrand "math/rand/v2"
	"time"
)

const maxShift = 62

// Policy describes a bounded retry schedule. The zero value is unusable;
// construct with explicit fields or use a package-level default.
type Policy struct {
	// Base is the delay before the first retry.
	Base time.Duration
	// Cap limits the exponential growth. Zero means uncapped.
	Cap time.Duration
	// MaxAttempts bounds the schedule. Zero means a single attempt.
	MaxAttempts int
}

// Exhausted reports whether attempt (zero-based) is past the schedule.
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}

// Delay returns the full-jitter exponential delay for the given zero-based
// attempt: a random duration in [0, min(Base*2^attempt, Cap)).
func (p Policy) Delay(attempt int) time.Duration {
	exp := Exponential(p.Base, attempt)
	if p.Cap > 0 && exp > p.Cap {
		exp = p.Cap
	}

	return FullJitter(exp)
}

// Exponential calculates base * 2^attempt with overflow protection.
// Negative attempts are treated as 0.
func Exponential(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}

	if attempt < 0 {
		attempt = 0
	} else if attempt > maxShift {
		attempt = maxShift
	}

	multiplier := int64(1 << attempt)

	baseInt := int64(base)
	if baseInt > math.MaxInt64/multiplier {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(baseInt * multiplier)
}

// FullJitter returns a random duration in [0, delay). Retry jitter has no
// security property, so a math/rand fallback is acceptable when crypto/rand
// is unavailable.
func FullJitter(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}

	n, err := rand.Int(rand.Reader, big.NewInt(int64(delay)))
	if err != nil {
		return time.Duration(mrand.Int64N(int64(delay))) // #nosec G404 -- jitter only
	}

	return time.Duration(n.Int64())
}

// Sleep waits for the duration but returns early if the context is done.
// Zero or negative durations return immediately.
func Sleep(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context done: %w", ctx.Err())
	}
}
