// ABOUTME: Unified error classifier for retry decisions
// ABOUTME: Consolidates network, HTTP status, and AppContextError retryability logic
package errors

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation is never retryable (caller initiated)
	if errors.Is(err, context.Canceled) {
		return false
	}

	// Context deadline exceeded is retryable (timeout)
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// AppContextError with explicit retryable flag
	var appErr *AppContextError
	if errors.As(err, &appErr) {
		return appErr.IsRetryable()
	}

	// Network OpError with syscall errors
	var opNetErr *net.OpError
	if errors.As(err, &opNetErr) {
		if opNetErr.Err != nil {
			if errno, ok := opNetErr.Err.(syscall.Errno); ok {
				switch errno {
				case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT:
					return true
				}
			}
		}
		if opNetErr.Timeout() {
			return true
		}
	}

	// Generic net.Error (timeout only, Temporary() is deprecated)
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// IsRateLimited reports whether the error chain contains an upstream
// throttling error. The retry executor stops early on these.
func IsRateLimited(err error) bool {
	var appErr *AppContextError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeRateLimit
	}
	return false
}

// IsRetryableHTTPStatus determines if an HTTP status code indicates a retryable condition.
func IsRetryableHTTPStatus(status int) bool {
	switch {
	case status >= 500 && status <= 599:
		return true
	case status == 408: // Request Timeout
		return true
	case status == 429: // Too Many Requests
		return true
	default:
		return false
	}
}
