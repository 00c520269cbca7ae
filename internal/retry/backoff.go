// Package retry provides the backoff and circuit breaker used around
// calls to the completion backend.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ── Permanent errors ─────────────────────────────────────────────────

// PermanentError wraps an error to signal that retrying will not help.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.  Do returns the inner error
// immediately without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ── Backoff ──────────────────────────────────────────────────────────

// Backoff retries an operation with exponentially growing, jittered
// pauses.  The zero value makes a single attempt.
type Backoff struct {
	// Retries is the number of extra attempts after the first one.
	Retries int
	// InitialDelay is the pause before the first retry (default 250ms).
	InitialDelay time.Duration
	// MaxDelay caps the pause (default 5s).
	MaxDelay time.Duration
	// Multiplier grows the pause each attempt (default 2.0).
	Multiplier float64
	// Jitter spreads each pause by ±25%.
	Jitter bool
	// Retryable decides whether a failed attempt is worth repeating.
	// Nil means every non-permanent error is.
	Retryable func(error) bool
}

// NewBackoff returns a jittered Backoff allowing the given number of
// extra attempts.
func NewBackoff(retries int, retryable func(error) bool) *Backoff {
	return &Backoff{
		Retries:      retries,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		Retryable:    retryable,
	}
}

// Do calls fn until it succeeds, fails permanently, runs out of
// attempts, or ctx is done.  The attempt number passed to fn is 1-based.
// When attempts run out the last error is returned unchanged, so callers
// can still inspect its type.
func (b *Backoff) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	delay := b.InitialDelay
	if delay <= 0 {
		delay = 250 * time.Millisecond
	}
	multiplier := b.Multiplier
	if multiplier <= 1 {
		multiplier = 2.0
	}
	maxDelay := b.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if attempt > b.Retries {
			return err
		}
		if b.Retryable != nil && !b.Retryable(err) {
			return err
		}

		wait := delay
		if b.Jitter {
			wait = jitter(delay)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("retry cancelled after attempt %d: %w", attempt, errors.Join(err, ctx.Err()))
		case <-t.C:
		}

		delay = time.Duration(float64(delay) * multiplier)
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func jitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	out := time.Duration(float64(d) + rand.Float64()*2*quarter - quarter)
	if out < time.Millisecond {
		return time.Millisecond
	}
	return out
}
