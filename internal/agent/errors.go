package agent

import "errors"

// Agent errors.
var (
	// ErrNoProvider indicates that no model provider is configured.
	ErrNoProvider = errors.New("agent: provider not configured")

	// ErrNoDriver indicates that no browser driver is configured.
	ErrNoDriver = errors.New("agent: browser driver not configured")

	// ErrNoAction indicates that the model reply contains no action object.
	ErrNoAction = errors.New("agent: model reply contains no action")
)
