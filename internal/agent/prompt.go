package agent

import (
	"fmt"
	"strings"

	"strider/internal/browser"
	"strider/internal/profile"
)

const defaultSystemPrompt = `You are a web browsing agent. You control a browser one action at a time to complete the user's task.

On every step you receive the current page state. Reply with a single JSON object and nothing else. The available actions are:

{"action": "navigate", "url": "https://example.com"}
{"action": "click", "selector": "a.pricing"}
{"action": "type", "selector": "input#search", "text": "running shoes"}
{"action": "extract", "selector": "div.price"}
{"action": "done", "result": "the final answer for the user"}

Rules:
- One action per reply, nothing outside the JSON object.
- Use done as soon as the task is complete and put the full answer in result.
- If an action fails, try a different approach instead of repeating it.`

// buildTaskMessage renders the task and any recalled profile facts
// into the opening user message.
func buildTaskMessage(task string, facts []*profile.Memory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s", task)

	if len(facts) > 0 {
		b.WriteString("\n\nKnown user context:")
		for _, f := range facts {
			fmt.Fprintf(&b, "\n- %s", f.Content)
		}
	}

	return b.String()
}

// buildObservation renders the current page state for the model.
func buildObservation(step int, state *browser.PageState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step %d\nURL: %s\nTitle: %s", step, state.URL, state.Title)
	if state.Content != "" {
		fmt.Fprintf(&b, "\n\n%s", state.Content)
	}
	return b.String()
}
