// Package retry provides a small bounded-backoff helper used by the payment
// orchestrator's retry loop.
package retry

import (
	"context"
	"time"
)

// Config controls retry behavior.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the delay before the second attempt.
	InitialDelay time.Duration

	// MaxDelay caps the per-attempt delay.
	MaxDelay time.Duration

	// MaxTotalDelay caps the summed sleep across all attempts. Once the
	// budget is spent, remaining retries run back to back. Zero means no cap.
	MaxTotalDelay time.Duration

	// Multiplier scales the delay after each attempt (exponential backoff).
	Multiplier float64

	// Backoff reports whether a retried error should incur the delay.
	// A nil Backoff delays every retried attempt.
	Backoff func(error) bool
}

// WithRetry runs fn up to cfg.MaxAttempts times, sleeping with exponential
// backoff between attempts. A failed attempt is retried only when
// shouldRetry returns true for its error. The delay honors ctx cancellation;
// a canceled context returns the last value alongside ctx.Err().
//
// The last value returned by fn is always returned, even on error, so
// callers can inspect a partial result from the final attempt.
func WithRetry[T any](ctx context.Context, cfg Config, shouldRetry func(error) bool, fn func() (T, error)) (T, error) {
	var (
		value T
		err   error
	)

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := cfg.InitialDelay
	var slept time.Duration
	for attempt := 0; attempt < attempts; attempt++ {
		value, err = fn()
		if err == nil || !shouldRetry(err) {
			return value, err
		}
		if attempt == attempts-1 {
			break
		}

		backoff := cfg.Backoff == nil || cfg.Backoff(err)

		wait := delay
		if !backoff {
			wait = 0
		}
		if cfg.MaxTotalDelay > 0 && slept+wait > cfg.MaxTotalDelay {
			wait = cfg.MaxTotalDelay - slept
		}
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return value, ctx.Err()
			case <-timer.C:
			}
			slept += wait
		} else if ctx.Err() != nil {
			return value, ctx.Err()
		}

		if backoff {
			if cfg.Multiplier > 1 {
				delay = time.Duration(float64(delay) * cfg.Multiplier)
			}
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
	}

	return value, err
}
