package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"strider/internal/browser"
)

// decision is the JSON object the model replies with each step.
type decision struct {
	Action   string `json:"action"`
	URL      string `json:"url,omitempty"`
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
	Result   string `json:"result,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ParseAction extracts the action from a model reply. Models wrap the
// object in markdown fences or surround it with prose often enough
// that the parser just decodes the first JSON value found in the text.
func ParseAction(content string) (*browser.Action, error) {
	idx := strings.Index(content, "{")
	if idx < 0 {
		return nil, ErrNoAction
	}

	var d decision
	dec := json.NewDecoder(strings.NewReader(content[idx:]))
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("agent: decode action: %w", err)
	}
	if d.Action == "" {
		return nil, ErrNoAction
	}

	return &browser.Action{
		Type:     d.Action,
		URL:      d.URL,
		Selector: d.Selector,
		Text:     d.Text,
		Result:   d.Result,
	}, nil
}
