package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrRetriesExhausted wraps the last failure of a request that was retried
// until its budget or its context deadline ran out.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Backoff is the retry schedule of one recognition request. The wait doubles
// after every failed attempt, from BaseDelay up to MaxDelay.
type Backoff struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// OnRetry, if set, is called before each wait with the retry number
	// (1-based), the wait about to start and the error that caused it.
	OnRetry func(retry int, wait time.Duration, err error)
}

func (b *Backoff) normalize() {
	b.MaxRetries = max(b.MaxRetries, 0)
	if b.BaseDelay <= 0 {
		b.BaseDelay = time.Millisecond
	}
	b.MaxDelay = max(b.MaxDelay, b.BaseDelay)
}

// RetryAfterError carries the delay a server asked for before the next request.
type RetryAfterError struct {
	Err   error
	After time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("%v (retry after %s)", e.Err, e.After)
}

func (e *RetryAfterError) Unwrap() error { return e.Err }

// WithRetryAfter attaches a Retry-After header value, in seconds or as an
// HTTP date, to err. An empty, unparsable or past value returns err unchanged.
func WithRetryAfter(err error, header string, now time.Time) error {
	header = strings.TrimSpace(header)
	if err == nil || header == "" {
		return err
	}
	var after time.Duration
	if secs, convErr := strconv.Atoi(header); convErr == nil {
		after = time.Duration(secs) * time.Second
	} else if at, parseErr := http.ParseTime(header); parseErr == nil {
		after = at.Sub(now)
	}
	if after <= 0 {
		return err
	}
	return &RetryAfterError{Err: err, After: after}
}

// Do calls fn until it succeeds or fails with an error Retryable rejects.
// A server Retry-After hint stretches the wait, still capped at MaxDelay.
// Do gives up early, without waiting, when the wait would outlast the
// context deadline.
func Do[T any](ctx context.Context, b Backoff, fn func(context.Context) (T, error)) (T, error) {
	b.normalize()

	var zero T
	delay := b.BaseDelay
	for retry := 0; ; retry++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !Retryable(err) {
			return zero, err
		}
		if retry == b.MaxRetries {
			return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, retry+1, err)
		}

		wait := delay
		var hint *RetryAfterError
		if errors.As(err, &hint) {
			wait = max(wait, min(hint.After, b.MaxDelay))
		}
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			return zero, fmt.Errorf("%w: next attempt would pass the deadline: %w", ErrRetriesExhausted, err)
		}

		if b.OnRetry != nil {
			b.OnRetry(retry+1, wait, err)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, b.MaxDelay)
	}
}
