package apierr_test

// Coverage Notes:
// - Tests verify retry count, shouldRetry filtering, OnRetry hook, context
//   cancellation and config normalization.
// - Exact backoff timing is not tested (implementation detail), only observable behavior.

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alnah/guidematrix/internal/apierr"
)

// ---------------------------------------------------------------------------
// TestRetryWithBackoff - Generic retry utility
// ---------------------------------------------------------------------------

func TestRetryWithBackoff(t *testing.T) {
	t.Parallel()

	fast := apierr.RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	t.Run("success on first try returns immediately", func(t *testing.T) {
		t.Parallel()

		callCount := 0
		result, err := apierr.RetryWithBackoff(context.Background(), fast,
			func() (string, error) {
				callCount++
				return "immediate", nil
			},
			func(error) bool { return true },
		)

		if err != nil {
			t.Errorf("RetryWithBackoff() unexpected error: %v", err)
		}
		if result != "immediate" {
			t.Errorf("got %q, want %q", result, "immediate")
		}
		if callCount != 1 {
			t.Errorf("call count = %d, want 1", callCount)
		}
	})

	t.Run("shouldRetry false stops immediately", func(t *testing.T) {
		t.Parallel()

		callCount := 0
		testErr := errors.New("non-retryable")
		_, err := apierr.RetryWithBackoff(context.Background(), fast,
			func() (string, error) {
				callCount++
				return "", testErr
			},
			func(error) bool { return false },
		)

		if !errors.Is(err, testErr) {
			t.Fatalf("err = %v, want %v", err, testErr)
		}
		if callCount != 1 {
			t.Errorf("call count = %d, want 1 (no retry)", callCount)
		}
	})

	t.Run("MaxRetries 0 returns the error unwrapped", func(t *testing.T) {
		t.Parallel()

		testErr := errors.New("always fails")
		_, err := apierr.RetryWithBackoff(context.Background(),
			apierr.RetryConfig{MaxRetries: 0},
			func() (int, error) { return 0, testErr },
			func(error) bool { return true },
		)

		if err != testErr {
			t.Errorf("err = %v, want the original error", err)
		}
	})

	t.Run("exhausted retries wrap the last error", func(t *testing.T) {
		t.Parallel()

		callCount := 0
		testErr := errors.New("flaky")
		_, err := apierr.RetryWithBackoff(context.Background(), fast,
			func() (int, error) {
				callCount++
				return 0, testErr
			},
			func(error) bool { return true },
		)

		if !errors.Is(err, testErr) {
			t.Errorf("err = %v, want wrapping %v", err, testErr)
		}
		if !strings.Contains(err.Error(), "max retries (3)") {
			t.Errorf("err = %q, want retry count in message", err)
		}
		if callCount != 4 {
			t.Errorf("call count = %d, want 4", callCount)
		}
	})

	t.Run("succeeds after transient failures", func(t *testing.T) {
		t.Parallel()

		callCount := 0
		var retried []int
		cfg := fast
		cfg.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

		got, err := apierr.RetryWithBackoff(context.Background(), cfg,
			func() (string, error) {
				callCount++
				if callCount < 3 {
					return "", apierr.ErrRateLimit
				}
				return "ok", nil
			},
			apierr.IsRetryable,
		)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "ok" {
			t.Errorf("got %q, want ok", got)
		}
		if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
			t.Errorf("OnRetry attempts = %v, want [1 2]", retried)
		}
	})

	t.Run("context cancellation stops waiting", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		callCount := 0
		_, err := apierr.RetryWithBackoff(ctx,
			apierr.RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour},
			func() (int, error) {
				callCount++
				cancel()
				return 0, apierr.ErrTimeout
			},
			func(error) bool { return true },
		)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
		if callCount != 1 {
			t.Errorf("call count = %d, want 1", callCount)
		}
	})

	t.Run("negative config is normalized", func(t *testing.T) {
		t.Parallel()

		callCount := 0
		_, _ = apierr.RetryWithBackoff(context.Background(),
			apierr.RetryConfig{MaxRetries: -1, BaseDelay: -1, MaxDelay: -1},
			func() (int, error) {
				callCount++
				return 0, errors.New("fail")
			},
			func(error) bool { return true },
		)

		if callCount != 1 {
			t.Errorf("call count = %d, want 1", callCount)
		}
	})
}
