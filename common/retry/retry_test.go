package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bdobrica/quickrizz/common/retry"
)

type hintedErr struct{ after time.Duration }

func (e hintedErr) Error() string              { return "throttled" }
func (e hintedErr) RetryAfter() time.Duration { return e.after }

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesOnFailure(t *testing.T) {
	var seen []int
	sentinel := errors.New("transient")
	err := retry.Do(context.Background(), retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(attempt int) error {
		seen = append(seen, attempt)
		if attempt < 3 {
			return sentinel
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil after eventual success, got %v", err)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Fatalf("unexpected attempt numbers %v", seen)
	}
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	sentinel := errors.New("still failing")
	err := retry.Do(context.Background(), retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(int) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if !errors.Is(err, retry.ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ShouldRetryPredicate(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	err := retry.Do(context.Background(), retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		ShouldRetry:  func(err error) bool { return !errors.Is(err, permanent) },
	}, func(int) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if errors.Is(err, retry.ErrExhausted) {
		t.Fatal("a non-retryable error must not be reported as exhaustion")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call (no retries for permanent error), got %d", calls)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retry.Do(ctx, retry.Config{MaxAttempts: 5, InitialDelay: 10 * time.Millisecond}, func(int) error {
		calls++
		return errors.New("fail")
	})
	if calls != 0 {
		t.Fatalf("expected no calls with a cancelled context, got %d", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDo_OnRetryHook(t *testing.T) {
	var delays []time.Duration
	_ = retry.Do(context.Background(), retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Second,
		OnRetry:      func(_ int, _ error, d time.Duration) { delays = append(delays, d) },
	}, func(int) error { return errors.New("x") })

	if len(delays) != 2 {
		t.Fatalf("expected 2 backoff sleeps for 3 attempts, got %d", len(delays))
	}
	if delays[0] != time.Millisecond || delays[1] != 2*time.Millisecond {
		t.Errorf("expected doubling delays, got %v", delays)
	}
}

func TestBackoff(t *testing.T) {
	cfg := retry.Config{InitialDelay: 900 * time.Millisecond, MaxDelay: 8 * time.Second}

	tests := []struct {
		name    string
		attempt int
		err     error
		want    time.Duration
	}{
		{"first retry uses base", 1, errors.New("x"), 900 * time.Millisecond},
		{"doubles per attempt", 3, errors.New("x"), 3600 * time.Millisecond},
		{"capped", 6, errors.New("x"), 8 * time.Second},
		{"hint wins", 1, hintedErr{after: 3 * time.Second}, 3 * time.Second},
		{"hint capped", 1, hintedErr{after: time.Minute}, 8 * time.Second},
		{"zero hint ignored", 2, hintedErr{}, 1800 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retry.Backoff(cfg, tt.attempt, tt.err); got != tt.want {
				t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestBackoff_JitterBounded(t *testing.T) {
	cfg := retry.Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Jitter: 50 * time.Millisecond}
	for i := 0; i < 100; i++ {
		d := retry.Backoff(cfg, 1, errors.New("x"))
		if d < 100*time.Millisecond || d >= 150*time.Millisecond {
			t.Fatalf("jittered delay %v outside [100ms, 150ms)", d)
		}
	}
}
