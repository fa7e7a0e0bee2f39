// Package retry provides a bounded exponential-backoff loop for transient
// errors.
//
// The loop is an explicit state machine: an attempt counter, the last error
// seen, and the delay computed for the next sleep. It suspends only while
// waiting out that delay.
//
// Usage:
//
//	err := retry.Do(ctx, retry.Config{MaxAttempts: 4, InitialDelay: 900 * time.Millisecond}, func(attempt int) error {
//	    return client.Call()
//	})
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// ErrExhausted is joined with the last attempt's error when every attempt
// allowed by Config.MaxAttempts has failed with a retryable error.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Config controls the retry behaviour.
type Config struct {
	// MaxAttempts is the total number of attempts (including the first).
	// Zero or negative values are treated as 1 (no retries).
	MaxAttempts int
	// InitialDelay is the backoff before the second attempt. Subsequent
	// delays double per attempt up to MaxDelay.
	InitialDelay time.Duration
	// MaxDelay caps every wait, including server-provided hints.
	MaxDelay time.Duration
	// Jitter is the upper bound of a uniform random duration added to the
	// computed backoff. Hinted delays are not jittered.
	Jitter time.Duration
	// ShouldRetry is an optional predicate that lets callers classify errors
	// as retryable. When nil, all non-nil errors are retried.
	ShouldRetry func(err error) bool
	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig provides sensible defaults for short-lived network calls.
var DefaultConfig = Config{
	MaxAttempts:  3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
}

// Hinted is implemented by errors that carry a delay suggested by the remote
// side (for example an HTTP Retry-After header). A positive hint replaces the
// computed exponential backoff.
type Hinted interface {
	RetryAfter() time.Duration
}

// Do calls fn up to cfg.MaxAttempts times, backing off exponentially between
// attempts. fn receives the 1-based attempt number.
//
// Do returns nil on the first success. A non-retryable error is returned
// as-is without further attempts. When all attempts fail the last error is
// returned joined with ErrExhausted. Cancelling ctx stops the loop and
// returns the last error joined with ctx.Err().
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	cfg = withDefaults(cfg)
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = func(err error) bool { return true }
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(lastErr, err)
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if !shouldRetry(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := Backoff(cfg, attempt, lastErr)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr, delay)
		} else {
			slog.Debug("retry: attempt failed, retrying",
				"attempt", attempt, "max", cfg.MaxAttempts,
				"err", lastErr, "delay", delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, cfg.MaxAttempts, lastErr)
}

// Backoff returns the delay to wait after the given failed attempt. A
// positive hint carried by err wins over the exponential schedule; both are
// capped at cfg.MaxDelay.
func Backoff(cfg Config, attempt int, err error) time.Duration {
	cfg = withDefaults(cfg)

	var hinted Hinted
	if errors.As(err, &hinted) {
		if d := hinted.RetryAfter(); d > 0 {
			return min(d, cfg.MaxDelay)
		}
	}

	delay := cfg.InitialDelay
	for i := 1; i < attempt && delay < cfg.MaxDelay; i++ {
		delay *= 2
	}
	if cfg.Jitter > 0 {
		delay += rand.N(cfg.Jitter)
	}
	return min(delay, cfg.MaxDelay)
}

func withDefaults(cfg Config) Config {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultConfig.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig.MaxDelay
	}
	return cfg
}
