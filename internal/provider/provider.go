// Package provider defines the LLM provider interface and types.
package provider

import "context"

// Provider defines the interface for LLM providers. Every call is a
// single request/response round trip; callers that cannot tolerate a
// slow backend bound the context themselves.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Chat sends a chat request and returns the response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
