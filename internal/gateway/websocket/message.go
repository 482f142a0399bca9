// Package websocket provides WebSocket hub and client management.
package websocket

import "encoding/json"

// WSMessage represents a WebSocket message.
//
// Clients send subscribe, unsubscribe, ping, and run messages. The
// gateway streams run events back using the event type names in the
// Type field, with the serialized event in Data and the owning run in
// Run.
type WSMessage struct {
	Type    string          `json:"type"`
	Run     string          `json:"run,omitempty"`
	Task    string          `json:"task,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Path    string          `json:"path,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

// BroadcastMessage wraps a message with its target run.
type BroadcastMessage struct {
	Run  string
	Data []byte
}

// Message types.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeReload      = "reload"
	TypeError       = "error"

	// Run lifecycle types. TypeRun both launches a run (client to
	// gateway, with Task set) and announces one (gateway to clients).
	TypeRun          = "run"
	TypeStep         = "step"
	TypeAction       = "action"
	TypeActionResult = "action_result"
	TypeCompaction   = "compaction"
	TypeDone         = "done"

	// TypeSchedule announces a finished scheduled run.
	TypeSchedule = "schedule"
)
