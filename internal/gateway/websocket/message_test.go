package websocket

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestWSMessage_DataPassthrough(t *testing.T) {
	eventData := json.RawMessage(`{"type":"action","step":3,"action":{"type":"click","target":"a.pricing"}}`)

	msg := WSMessage{
		Type: TypeAction,
		Run:  "run-1",
		Data: eventData,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal WSMessage: %v", err)
	}

	var decoded WSMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal WSMessage: %v", err)
	}

	if decoded.Type != TypeAction {
		t.Errorf("Type mismatch: got %q, want %q", decoded.Type, TypeAction)
	}
	if decoded.Run != "run-1" {
		t.Errorf("Run mismatch: got %q, want %q", decoded.Run, "run-1")
	}
	if string(decoded.Data) != string(eventData) {
		t.Errorf("Data mismatch: got %s, want %s", decoded.Data, eventData)
	}
}

func TestWSMessage_OmitEmpty(t *testing.T) {
	msg := WSMessage{Type: TypePong}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal WSMessage: %v", err)
	}

	str := string(data)

	// Optional fields should be omitted when empty
	for _, field := range []string{"run", "task", "data", "path", "code", "message"} {
		if strings.Contains(str, field) {
			t.Errorf("empty %s should be omitted, got %s", field, str)
		}
	}
}

func TestMessageTypes(t *testing.T) {
	tests := []struct {
		name     string
		constant string
		expected string
	}{
		{"TypeRun", TypeRun, "run"},
		{"TypeStep", TypeStep, "step"},
		{"TypeAction", TypeAction, "action"},
		{"TypeActionResult", TypeActionResult, "action_result"},
		{"TypeCompaction", TypeCompaction, "compaction"},
		{"TypeDone", TypeDone, "done"},
		{"TypeReload", TypeReload, "reload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.constant != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.constant, tt.expected)
			}
		})
	}
}
