package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode defines provider error codes.
type ErrorCode string

const (
	ErrCodeAuthFailed            ErrorCode = "AUTH_FAILED"
	ErrCodeRateLimited           ErrorCode = "RATE_LIMITED"
	ErrCodeServiceUnavailable    ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeNetworkError          ErrorCode = "NETWORK_ERROR"
	ErrCodeInvalidRequest        ErrorCode = "INVALID_REQUEST"
	ErrCodeTimeout               ErrorCode = "TIMEOUT"
	ErrCodeContextWindowExceeded ErrorCode = "CONTEXT_WINDOW_EXCEEDED"
	ErrCodeUnknown               ErrorCode = "UNKNOWN"
)

// ProviderError is a structured error for provider operations.
type ProviderError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Provider  string    `json:"provider"`
	Retryable bool      `json:"retryable"`
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Code, e.Message)
}

// NewProviderError creates a new ProviderError.
func NewProviderError(code ErrorCode, message, provider string, retryable bool) *ProviderError {
	return &ProviderError{
		Code:      code,
		Message:   message,
		Provider:  provider,
		Retryable: retryable,
	}
}

// IsContextWindowExceeded checks if the error indicates that the input
// exceeded the model's context window limit. It first checks for a typed
// ProviderError with ErrCodeContextWindowExceeded, then falls back to
// keyword matching on the error message for untyped errors.
func IsContextWindowExceeded(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeContextWindowExceeded
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context window") ||
		strings.Contains(msg, "context length exceeded") ||
		strings.Contains(msg, "maximum context length") ||
		strings.Contains(msg, "token limit exceeded") ||
		strings.Contains(msg, "too many tokens")
}

// IsRetryable checks if the error is a transient provider error.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
