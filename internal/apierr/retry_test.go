package apierr_test

// Notes:
// - Exact backoff timing is not asserted, only attempt counts, reported
//   waits and returned errors.

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/polar9527/tag-audio/internal/apierr"
)

func TestDo_Attempts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		backoff       apierr.Backoff
		failFirst     int // attempts that fail before success; -1 fails forever
		failWith      error
		wantCalls     int
		wantErr       error
		wantExhausted bool
	}{
		{
			name:      "success on first try",
			backoff:   apierr.Backoff{MaxRetries: 5, BaseDelay: time.Second},
			failFirst: 0,
			wantCalls: 1,
		},
		{
			name:      "retries then succeeds",
			backoff:   apierr.Backoff{MaxRetries: 3, BaseDelay: time.Millisecond},
			failFirst: 2,
			failWith:  apierr.ErrServer,
			wantCalls: 3,
		},
		{
			name:      "non-retryable stops immediately",
			backoff:   apierr.Backoff{MaxRetries: 5, BaseDelay: time.Millisecond},
			failFirst: -1,
			failWith:  apierr.ErrAuthFailed,
			wantCalls: 1,
			wantErr:   apierr.ErrAuthFailed,
		},
		{
			name:          "retries exhausted",
			backoff:       apierr.Backoff{MaxRetries: 2, BaseDelay: time.Millisecond},
			failFirst:     -1,
			failWith:      apierr.ErrRateLimit,
			wantCalls:     3,
			wantErr:       apierr.ErrRateLimit,
			wantExhausted: true,
		},
		{
			name:          "negative MaxRetries normalized to single attempt",
			backoff:       apierr.Backoff{MaxRetries: -5},
			failFirst:     -1,
			failWith:      apierr.ErrTimeout,
			wantCalls:     1,
			wantErr:       apierr.ErrTimeout,
			wantExhausted: true,
		},
		{
			name:      "zero delays normalized",
			backoff:   apierr.Backoff{MaxRetries: 1},
			failFirst: 1,
			failWith:  apierr.ErrTimeout,
			wantCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			got, err := apierr.Do(context.Background(), tt.backoff, func(context.Context) (string, error) {
				calls++
				if tt.failFirst < 0 || calls <= tt.failFirst {
					return "", fmt.Errorf("chunk 3: %w", tt.failWith)
				}
				return "ok", nil
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == nil {
				if err != nil || got != "ok" {
					t.Errorf("Do() = %q, %v, want ok, nil", got, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if exhausted := errors.Is(err, apierr.ErrRetriesExhausted); exhausted != tt.wantExhausted {
				t.Errorf("exhausted = %v, want %v (error %v)", exhausted, tt.wantExhausted, err)
			}
		})
	}
}

func TestDo_OnRetryReportsWaits(t *testing.T) {
	t.Parallel()

	var retries []int
	var waits []time.Duration
	_, _ = apierr.Do(context.Background(),
		apierr.Backoff{
			MaxRetries: 3,
			BaseDelay:  time.Millisecond,
			MaxDelay:   3 * time.Millisecond,
			OnRetry: func(retry int, wait time.Duration, _ error) {
				retries = append(retries, retry)
				waits = append(waits, wait)
			},
		},
		func(context.Context) (int, error) { return 0, apierr.ErrRateLimit },
	)

	if fmt.Sprint(retries) != "[1 2 3]" {
		t.Errorf("OnRetry retries = %v, want [1 2 3]", retries)
	}
	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}
	if fmt.Sprint(waits) != fmt.Sprint(want) {
		t.Errorf("OnRetry waits = %v, want %v", waits, want)
	}
}

func TestDo_RetryAfterStretchesWait(t *testing.T) {
	t.Parallel()

	var waits []time.Duration
	calls := 0
	_, err := apierr.Do(context.Background(),
		apierr.Backoff{
			MaxRetries: 1,
			BaseDelay:  time.Millisecond,
			MaxDelay:   20 * time.Millisecond,
			OnRetry:    func(_ int, wait time.Duration, _ error) { waits = append(waits, wait) },
		},
		func(context.Context) (string, error) {
			calls++
			if calls == 1 {
				return "", &apierr.RetryAfterError{Err: apierr.ErrRateLimit, After: time.Hour}
			}
			return "ok", nil
		},
	)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if len(waits) != 1 || waits[0] != 20*time.Millisecond {
		t.Errorf("waits = %v, want [20ms] (hint capped at MaxDelay)", waits)
	}
}

func TestDo_GivesUpBeforeDeadline(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	start := time.Now()
	_, err := apierr.Do(ctx, apierr.Backoff{MaxRetries: 5, BaseDelay: time.Minute},
		func(context.Context) (string, error) { calls++; return "", apierr.ErrServer })

	if !errors.Is(err, apierr.ErrRetriesExhausted) || !errors.Is(err, apierr.ErrServer) {
		t.Errorf("error = %v, want exhausted server error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if elapsed := time.Since(start); elapsed > 40*time.Millisecond {
		t.Errorf("Do waited %v before giving up", elapsed)
	}
}

func TestDo_Cancellation(t *testing.T) {
	t.Parallel()

	t.Run("already canceled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		_, err := apierr.Do(ctx, apierr.Backoff{MaxRetries: 5, BaseDelay: time.Second},
			func(context.Context) (string, error) { calls++; return "", apierr.ErrTimeout })
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("canceled during backoff", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		_, err := apierr.Do(ctx,
			apierr.Backoff{MaxRetries: 10, BaseDelay: 50 * time.Millisecond, MaxDelay: 100 * time.Millisecond},
			func(context.Context) (string, error) {
				calls++
				if calls == 1 {
					time.AfterFunc(5*time.Millisecond, cancel)
				}
				return "", apierr.ErrServer
			},
		)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
		if calls >= 5 {
			t.Errorf("calls = %d, want early stop", calls)
		}
	})
}

func TestWithRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name   string
		header string
		want   time.Duration // 0 means the error is returned unchanged
	}{
		{name: "seconds", header: "7", want: 7 * time.Second},
		{name: "http date", header: "Thu, 02 Jan 2025 03:05:35 GMT", want: 90 * time.Second},
		{name: "empty", header: ""},
		{name: "garbage", header: "soon"},
		{name: "past date", header: "Thu, 02 Jan 2025 03:03:05 GMT"},
		{name: "zero", header: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			base := apierr.FromStatus(429, "slow down")
			err := apierr.WithRetryAfter(base, tt.header, now)
			if !errors.Is(err, apierr.ErrRateLimit) {
				t.Errorf("error = %v, want rate limit", err)
			}
			var hint *apierr.RetryAfterError
			if tt.want == 0 {
				if errors.As(err, &hint) {
					t.Errorf("got hint %v, want none", hint.After)
				}
				return
			}
			if !errors.As(err, &hint) || hint.After != tt.want {
				t.Errorf("hint = %v, want %v", err, tt.want)
			}
		})
	}
}
