// Package browser defines the automation driver boundary of the agent.
// The agent core only ever sees this interface; concrete drivers wrap
// a real browser or a scripted stand-in.
package browser

import (
	"context"
	"errors"
)

// BlankURL is the address reported before the first navigation.
const BlankURL = "about:blank"

// Driver errors.
var (
	// ErrUnknownPage indicates navigation to an address the driver
	// cannot resolve.
	ErrUnknownPage = errors.New("browser: unknown page")

	// ErrUnknownSelector indicates an interaction target that does not
	// exist on the current page.
	ErrUnknownSelector = errors.New("browser: unknown selector")

	// ErrNoPage indicates an interaction before any navigation happened.
	ErrNoPage = errors.New("browser: no page loaded")
)

// PageState describes what the agent currently observes.
type PageState struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Action kinds the agent may request.
const (
	ActionNavigate = "navigate"
	ActionClick    = "click"
	ActionType     = "type"
	ActionExtract  = "extract"
	ActionDone     = "done"
)

// Action is one model-chosen browser operation.
type Action struct {
	Type     string `json:"type"`
	URL      string `json:"url,omitempty"`
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
	Result   string `json:"result,omitempty"`
}

// ActionResult is what performing an action produced.
type ActionResult struct {
	Content string `json:"content,omitempty"`
}

// Driver executes actions against a live page.
type Driver interface {
	// State returns the current page observation.
	State(ctx context.Context) (*PageState, error)

	// Perform executes one action and returns its result.
	Perform(ctx context.Context, action Action) (*ActionResult, error)

	// Close releases the underlying browser session.
	Close() error
}
