package agent

import (
	"errors"
	"testing"

	"strider/internal/browser"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    browser.Action
	}{
		{
			name:    "plain object",
			content: `{"action": "navigate", "url": "https://example.com"}`,
			want:    browser.Action{Type: "navigate", URL: "https://example.com"},
		},
		{
			name:    "fenced",
			content: "```json\n{\"action\": \"click\", \"selector\": \"a.pricing\"}\n```",
			want:    browser.Action{Type: "click", Selector: "a.pricing"},
		},
		{
			name:    "surrounded by prose",
			content: "I will look at the pricing page now.\n{\"action\": \"extract\", \"selector\": \"div.price\"}\nThat should do it.",
			want:    browser.Action{Type: "extract", Selector: "div.price"},
		},
		{
			name:    "done with result",
			content: `{"action": "done", "result": "the basic plan costs $10/month"}`,
			want:    browser.Action{Type: "done", Result: "the basic plan costs $10/month"},
		},
		{
			name:    "type with text",
			content: `{"action": "type", "selector": "input#q", "text": "running shoes", "reason": "search"}`,
			want:    browser.Action{Type: "type", Selector: "input#q", Text: "running shoes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAction(tt.content)
			if err != nil {
				t.Fatalf("ParseAction: %v", err)
			}
			if *got != tt.want {
				t.Errorf("action = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestParseAction_NoJSON(t *testing.T) {
	_, err := ParseAction("I am not sure what to do next.")
	if !errors.Is(err, ErrNoAction) {
		t.Errorf("error = %v, want ErrNoAction", err)
	}
}

func TestParseAction_MissingActionField(t *testing.T) {
	_, err := ParseAction(`{"url": "https://example.com"}`)
	if !errors.Is(err, ErrNoAction) {
		t.Errorf("error = %v, want ErrNoAction", err)
	}
}

func TestParseAction_InvalidJSON(t *testing.T) {
	_, err := ParseAction(`{"action": "navigate", "url": `)
	if err == nil {
		t.Fatal("expected error for truncated JSON")
	}
	if errors.Is(err, ErrNoAction) {
		t.Error("truncated JSON should not map to ErrNoAction")
	}
}
