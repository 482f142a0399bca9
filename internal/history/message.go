// Package history manages the agent's in-context message history.
// Every message carries metadata recording its token cost and its
// lifecycle type, and the manager keeps a running total that always
// equals the sum over the entries it holds.
package history

import "strider/internal/provider"

// MessageType classifies a managed message's lifecycle.
type MessageType string

const (
	// TypeInit marks messages seeded at run start (system prompt, task).
	TypeInit MessageType = "init"
	// TypeMemory marks summaries produced by memory compaction.
	TypeMemory MessageType = "memory"
	// TypeStep marks ordinary per-step messages.
	TypeStep MessageType = "step"
)

// Retained reports whether messages of this type survive compaction.
func (t MessageType) Retained() bool {
	return t == TypeInit || t == TypeMemory
}

// Metadata records a managed message's bookkeeping fields.
type Metadata struct {
	Tokens int         `json:"tokens"`
	Type   MessageType `json:"message_type"`
}

// ManagedMessage pairs a chat message with its metadata.
type ManagedMessage struct {
	Message  provider.Message `json:"message"`
	Metadata Metadata         `json:"metadata"`
}
