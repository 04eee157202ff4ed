package apierr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// FromStatus maps an HTTP status and server message to a sentinel.
// Returns nil for 2xx/3xx statuses.
func FromStatus(status int, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch {
	case status < 400:
		return nil
	case status == http.StatusTooManyRequests:
		// Quota exhaustion needs user action and must not be retried.
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "quota") || strings.Contains(lower, "billing") {
			return fmt.Errorf("%s: %w", msg, ErrQuotaExceeded)
		}
		return fmt.Errorf("%s: %w", msg, ErrRateLimit)
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", msg, ErrAuthFailed)
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return fmt.Errorf("%s: %w", msg, ErrTimeout)
	case status >= 500:
		return fmt.Errorf("%s (HTTP %d): %w", msg, status, ErrServer)
	default:
		return fmt.Errorf("%s (HTTP %d): %w", msg, status, ErrBadRequest)
	}
}

// Retryable reports whether err is worth another attempt.
// Rate limits, timeouts, 5xx responses and transport timeouts qualify;
// cancellation never does.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrServer) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
