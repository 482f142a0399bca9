package agent

import (
	"encoding/json"
	"fmt"

	"strider/internal/browser"
)

// EventType represents the type of event emitted during a run.
type EventType int

const (
	// EventTypeStep indicates a new step has started.
	EventTypeStep EventType = iota
	// EventTypeAction indicates the model chose a browser action.
	EventTypeAction
	// EventTypeActionResult indicates the outcome of a performed action.
	EventTypeActionResult
	// EventTypeCompaction indicates older steps were folded into a summary.
	EventTypeCompaction
	// EventTypeDone indicates the run finished.
	EventTypeDone
	// EventTypeError indicates the run failed.
	EventTypeError
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventTypeStep:
		return "step"
	case EventTypeAction:
		return "action"
	case EventTypeActionResult:
		return "action_result"
	case EventTypeCompaction:
		return "compaction"
	case EventTypeDone:
		return "done"
	case EventTypeError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the event type as its string name.
func (t EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes an event type from its string name.
func (t *EventType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "step":
		*t = EventTypeStep
	case "action":
		*t = EventTypeAction
	case "action_result":
		*t = EventTypeActionResult
	case "compaction":
		*t = EventTypeCompaction
	case "done":
		*t = EventTypeDone
	case "error":
		*t = EventTypeError
	default:
		return fmt.Errorf("unknown event type: %q", s)
	}
	return nil
}

// Usage accumulates token usage across a run.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Event represents an event emitted during agent execution.
type Event struct {
	// Type indicates the kind of event.
	Type EventType `json:"type"`

	// Step is the step number the event belongs to.
	Step int `json:"step,omitempty"`

	// Content carries the page URL for step events and the final
	// outcome text for done events.
	Content string `json:"content,omitempty"`

	// Action contains the chosen action for action events.
	Action *browser.Action `json:"action,omitempty"`

	// Result contains the action outcome for action_result events.
	Result *ActionResultEvent `json:"result,omitempty"`

	// Compaction contains the token counts around a history rewrite.
	Compaction *CompactionEvent `json:"compaction,omitempty"`

	// Usage contains accumulated token usage, set on done events.
	Usage *Usage `json:"usage,omitempty"`

	// Error contains the error for error events.
	Error error `json:"-"`

	// ErrorMsg contains the error message for serialization.
	ErrorMsg string `json:"error,omitempty"`

	// RunID is the ID of the run this event belongs to.
	RunID string `json:"run_id,omitempty"`
}

// ActionResultEvent represents the outcome of one performed action.
type ActionResultEvent struct {
	// ActionType is the type of the action that was performed.
	ActionType string `json:"action_type"`

	// Output is the content produced by the action, if any.
	Output string `json:"output,omitempty"`

	// IsError indicates the action failed.
	IsError bool `json:"is_error,omitempty"`

	// DurationMs is the time taken to perform the action in milliseconds.
	DurationMs int64 `json:"duration_ms,omitempty"`
}

// CompactionEvent records the effect of a history compaction.
type CompactionEvent struct {
	// TokensBefore is the history token count before the rewrite.
	TokensBefore int `json:"tokens_before"`

	// TokensAfter is the history token count after the rewrite.
	TokensAfter int `json:"tokens_after"`
}

// NewStepEvent creates a new step event.
func NewStepEvent(step int, url string) Event {
	return Event{
		Type:    EventTypeStep,
		Step:    step,
		Content: url,
	}
}

// NewActionEvent creates a new action event.
func NewActionEvent(step int, action *browser.Action) Event {
	return Event{
		Type:   EventTypeAction,
		Step:   step,
		Action: action,
	}
}

// NewActionResultEvent creates a new action result event.
func NewActionResultEvent(step int, actionType, output string, isError bool, durationMs int64) Event {
	return Event{
		Type: EventTypeActionResult,
		Step: step,
		Result: &ActionResultEvent{
			ActionType: actionType,
			Output:     output,
			IsError:    isError,
			DurationMs: durationMs,
		},
	}
}

// NewCompactionEvent creates a new compaction event.
func NewCompactionEvent(step, tokensBefore, tokensAfter int) Event {
	return Event{
		Type: EventTypeCompaction,
		Step: step,
		Compaction: &CompactionEvent{
			TokensBefore: tokensBefore,
			TokensAfter:  tokensAfter,
		},
	}
}

// NewDoneEvent creates a new done event with the final outcome.
func NewDoneEvent(step int, outcome string, usage *Usage) Event {
	return Event{
		Type:    EventTypeDone,
		Step:    step,
		Content: outcome,
		Usage:   usage,
	}
}

// NewErrorEvent creates a new error event.
func NewErrorEvent(err error) Event {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Event{
		Type:     EventTypeError,
		Error:    err,
		ErrorMsg: msg,
	}
}
