// ABOUTME: Structured error type carrying code, layer, component, and operation context
// ABOUTME: Provides HTTP mapping, retryability, and secure client responses
package errors

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
)

// Error codes used across the service.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED_ERROR"
	CodeNotFound     = "NOT_FOUND_ERROR"
	CodeRateLimit    = "RATE_LIMIT_ERROR"
	CodeQuota        = "QUOTA_ERROR"
	CodeProvider     = "PROVIDER_ERROR"
	CodeClassifier   = "CLASSIFIER_ERROR"
	CodeCapacity     = "CAPACITY_ERROR"
	CodeConfig       = "CONFIG_ERROR"
	CodeDatabase     = "DATABASE_ERROR"
	CodeTimeout      = "TIMEOUT_ERROR"
	CodeInternal     = "INTERNAL_ERROR"
)

// AppContextError represents an error with rich context information.
type AppContextError struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Layer     string                 `json:"layer,omitempty"`     // Architecture layer (handler, service, store, provider)
	Component string                 `json:"component,omitempty"` // Specific component/service name
	Operation string                 `json:"operation,omitempty"` // Specific operation/method name
	Cause     error                  `json:"-"`                   // Underlying error (not serialized)
	Context   map[string]interface{} `json:"context,omitempty"`   // Additional context information
	ErrorID   string                 `json:"-"`                   // Unique ID for log correlation (not serialized to client)
}

// Error implements the error interface.
func (e *AppContextError) Error() string {
	var prefix string
	if e.Layer != "" && e.Component != "" && e.Operation != "" {
		prefix = fmt.Sprintf("[%s:%s:%s] ", e.Layer, e.Component, e.Operation)
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s%s: %s (caused by: %v)", prefix, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s%s: %s", prefix, e.Code, e.Message)
}

// Unwrap returns the underlying error for error chain unwrapping.
func (e *AppContextError) Unwrap() error {
	return e.Cause
}

// HTTPStatusCode maps error codes to HTTP status codes.
func (e *AppContextError) HTTPStatusCode() int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimit:
		return http.StatusTooManyRequests
	case CodeQuota:
		return http.StatusPaymentRequired
	case CodeProvider, CodeClassifier:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeCapacity:
		return http.StatusRequestEntityTooLarge
	case CodeConfig, CodeDatabase, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable determines if the error represents a retryable condition.
// Rate-limit errors are deliberately excluded: the retry executor
// short-circuits on them instead of hammering a throttled upstream.
func (e *AppContextError) IsRetryable() bool {
	switch e.Code {
	case CodeTimeout, CodeProvider, CodeClassifier, CodeDatabase:
		return true
	default:
		return false
	}
}

// RetryAfter returns the upstream-provided retry hint in seconds, if any.
func (e *AppContextError) RetryAfter() (int, bool) {
	if e.Context == nil {
		return 0, false
	}
	if v, ok := e.Context["retry_after_seconds"]; ok {
		if secs, ok := v.(int); ok {
			return secs, true
		}
	}
	return 0, false
}

// safeMessages maps error codes to user-friendly, non-leaking messages.
var safeMessages = map[string]string{
	CodeUnauthorized: "Authentication required.",
	CodeDatabase:     "A temporary service error occurred. Please try again later.",
	CodeProvider:     "Unable to reach an upstream news source. Please try again.",
	CodeClassifier:   "Unable to process articles right now. Please try again.",
	CodeRateLimit:    "Too many requests. Please wait before trying again.",
	CodeQuota:        "Daily processing quota reached.",
	CodeTimeout:      "The request took too long. Please try again.",
	CodeCapacity:     "The request was too large to process.",
	CodeConfig:       "The service is misconfigured. Please contact support.",
	CodeInternal:     "An unexpected error occurred. Please try again later.",
}

// SafeMessage returns a user-friendly message that does not leak internal details.
// Validation and not-found messages are returned as-is; they are written to be safe.
func (e *AppContextError) SafeMessage() string {
	if msg, ok := safeMessages[e.Code]; ok && msg != "" {
		return msg
	}
	if e.Code == CodeValidation || e.Code == CodeNotFound {
		return e.Message
	}
	return "An error occurred."
}

// SecureHTTPResponse represents an HTTP error response that does not leak internal details.
type SecureHTTPResponse struct {
	Error SecureErrorDetail `json:"error"`
}

// SecureErrorDetail contains the error details for SecureHTTPResponse.
type SecureErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	ErrorID   string `json:"error_id,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// ToSecureHTTPResponse converts an AppContextError to a secure HTTP response.
func (e *AppContextError) ToSecureHTTPResponse() SecureHTTPResponse {
	return SecureHTTPResponse{
		Error: SecureErrorDetail{
			Code:      e.Code,
			Message:   e.SafeMessage(),
			ErrorID:   e.ErrorID,
			Retryable: e.IsRetryable(),
		},
	}
}

// generateErrorID generates a short unique error ID for log correlation.
func generateErrorID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b)
}

// NewAppContextError creates a new AppContextError with full context.
func NewAppContextError(
	code, message, layer, component, operation string,
	cause error,
	context map[string]interface{},
) *AppContextError {
	if context == nil {
		context = make(map[string]interface{})
	}

	return &AppContextError{
		Code:      code,
		Message:   message,
		Layer:     layer,
		Component: component,
		Operation: operation,
		Cause:     cause,
		Context:   context,
		ErrorID:   generateErrorID(),
	}
}

// Helper constructors for common error patterns.

// NewValidationError creates a validation error with context.
func NewValidationError(message, layer, component, operation string, context map[string]interface{}) *AppContextError {
	return NewAppContextError(CodeValidation, message, layer, component, operation, nil, context)
}

// NewUnauthorizedError creates an authentication failure error.
func NewUnauthorizedError(message, layer, component, operation string) *AppContextError {
	return NewAppContextError(CodeUnauthorized, message, layer, component, operation, nil, nil)
}

// NewNotFoundError creates a not found error with context.
func NewNotFoundError(message, layer, component, operation string, context map[string]interface{}) *AppContextError {
	return NewAppContextError(CodeNotFound, message, layer, component, operation, nil, context)
}

// NewRateLimitError creates an upstream-throttling error carrying a retry-after hint.
func NewRateLimitError(message, layer, component, operation string, retryAfterSeconds int, cause error) *AppContextError {
	context := map[string]interface{}{"retry_after_seconds": retryAfterSeconds}
	return NewAppContextError(CodeRateLimit, message, layer, component, operation, cause, context)
}

// NewQuotaError creates a quota-exhausted error (non-retryable).
func NewQuotaError(message, layer, component, operation string, cause error) *AppContextError {
	return NewAppContextError(CodeQuota, message, layer, component, operation, cause, nil)
}

// NewProviderError creates an upstream provider failure error.
func NewProviderError(message, layer, component, operation string, cause error, context map[string]interface{}) *AppContextError {
	return NewAppContextError(CodeProvider, message, layer, component, operation, cause, context)
}

// NewClassifierError creates a classification dependency failure error.
func NewClassifierError(message, layer, component, operation string, cause error, context map[string]interface{}) *AppContextError {
	return NewAppContextError(CodeClassifier, message, layer, component, operation, cause, context)
}

// NewCapacityError creates a batch/payload precondition violation error.
func NewCapacityError(message, layer, component, operation string, context map[string]interface{}) *AppContextError {
	return NewAppContextError(CodeCapacity, message, layer, component, operation, nil, context)
}

// NewConfigError creates a missing/invalid configuration error (fatal, not retried).
func NewConfigError(message, layer, component, operation string, context map[string]interface{}) *AppContextError {
	return NewAppContextError(CodeConfig, message, layer, component, operation, nil, context)
}

// NewDatabaseError creates a database error with context.
func NewDatabaseError(message, layer, component, operation string, cause error, context map[string]interface{}) *AppContextError {
	return NewAppContextError(CodeDatabase, message, layer, component, operation, cause, context)
}

// NewTimeoutError creates a timeout error with context.
func NewTimeoutError(message, layer, component, operation string, cause error, context map[string]interface{}) *AppContextError {
	return NewAppContextError(CodeTimeout, message, layer, component, operation, cause, context)
}

// NewInternalError creates an internal error with context.
func NewInternalError(message, layer, component, operation string, cause error, context map[string]interface{}) *AppContextError {
	return NewAppContextError(CodeInternal, message, layer, component, operation, cause, context)
}
