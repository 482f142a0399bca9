package provider

import (
	"errors"
	"fmt"
	"testing"
)

func TestProviderErrorFormat(t *testing.T) {
	err := NewProviderError(ErrCodeRateLimited, "too many requests", "openai", false)
	want := "[openai] RATE_LIMITED: too many requests"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIsContextWindowExceeded_TypedError(t *testing.T) {
	err := &ProviderError{
		Code:    ErrCodeContextWindowExceeded,
		Message: "some message",
	}
	if !IsContextWindowExceeded(err) {
		t.Fatal("expected IsContextWindowExceeded to return true for typed error")
	}
}

func TestIsContextWindowExceeded_WrappedTypedError(t *testing.T) {
	inner := &ProviderError{
		Code:    ErrCodeContextWindowExceeded,
		Message: "inner",
	}
	err := fmt.Errorf("outer: %w", inner)
	if !IsContextWindowExceeded(err) {
		t.Fatal("expected IsContextWindowExceeded to return true for wrapped typed error")
	}
}

func TestIsContextWindowExceeded_KeywordFallback(t *testing.T) {
	keywords := []string{
		"context window exceeded",
		"context length exceeded",
		"maximum context length",
		"token limit exceeded",
		"too many tokens",
	}
	for _, kw := range keywords {
		err := errors.New("provider error: " + kw + " for this model")
		if !IsContextWindowExceeded(err) {
			t.Fatalf("expected IsContextWindowExceeded to return true for keyword %q", kw)
		}
	}
}

func TestIsContextWindowExceeded_NegativeCases(t *testing.T) {
	cases := []error{
		errors.New("invalid request"),
		errors.New("rate limit exceeded"),
		&ProviderError{Code: ErrCodeRateLimited, Message: "rate limited"},
		nil,
	}
	for _, err := range cases {
		if IsContextWindowExceeded(err) {
			t.Fatalf("expected IsContextWindowExceeded to return false for %v", err)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"untyped", errors.New("boom"), false},
		{"typed retryable", NewProviderError(ErrCodeServiceUnavailable, "down", "openai", true), true},
		{"typed not retryable", NewProviderError(ErrCodeAuthFailed, "bad key", "openai", false), false},
		{"wrapped retryable", fmt.Errorf("chat: %w", NewProviderError(ErrCodeTimeout, "slow", "openai", true)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
