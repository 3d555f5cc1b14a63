// ABOUTME: Centralized error handling middleware for Echo framework
// ABOUTME: Converts AppContextError to secure HTTP responses, hides internal details
package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	apperrors "goodnews/utils/errors"
)

// CustomHTTPErrorHandler creates the centralized HTTP error handler for Echo.
//
// Error handling priority:
// 1. AppContextError (possibly wrapped) - uses ToSecureHTTPResponse()
// 2. echo.HTTPError - preserves Echo's error format
// 3. Unknown errors - generic 500 response to hide internal details
func CustomHTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		// Don't write to already committed responses
		if c.Response().Committed {
			return
		}

		requestID := c.Response().Header().Get(echo.HeaderXRequestID)

		var response apperrors.SecureHTTPResponse
		var status int

		var appErr *apperrors.AppContextError
		var httpErr *echo.HTTPError

		switch {
		case errors.As(err, &appErr):
			status = appErr.HTTPStatusCode()
			response = appErr.ToSecureHTTPResponse()

			if seconds, ok := appErr.RetryAfter(); ok {
				c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))
			}

			// Full detail goes to the log, never to the client
			logger.Error("application error",
				"request_id", requestID,
				"error_id", appErr.ErrorID,
				"code", appErr.Code,
				"message", appErr.Message,
				"layer", appErr.Layer,
				"component", appErr.Component,
				"operation", appErr.Operation,
				"cause", appErr.Cause,
				"context", appErr.Context,
			)

		case errors.As(err, &httpErr):
			status = httpErr.Code
			msg := "An error occurred"
			if m, ok := httpErr.Message.(string); ok {
				msg = m
			}

			safeMsg := msg
			if status >= 500 {
				safeMsg = "An unexpected error occurred. Please try again later."
			}

			response = apperrors.SecureHTTPResponse{
				Error: apperrors.SecureErrorDetail{
					Code:      "HTTP_ERROR",
					Message:   safeMsg,
					Retryable: apperrors.IsRetryableHTTPStatus(status),
				},
			}

			logger.Warn("HTTP error",
				"request_id", requestID,
				"status", status,
				"message", msg,
			)

		default:
			status = http.StatusInternalServerError
			response = apperrors.SecureHTTPResponse{
				Error: apperrors.SecureErrorDetail{
					Code:      "INTERNAL_ERROR",
					Message:   "An unexpected error occurred. Please try again later.",
					Retryable: false,
				},
			}

			logger.Error("unhandled error",
				"request_id", requestID,
				"error", err.Error(),
			)
		}

		if err := c.JSON(status, response); err != nil {
			logger.Error("failed to send error response",
				"request_id", requestID,
				"error", err,
			)
		}
	}
}
