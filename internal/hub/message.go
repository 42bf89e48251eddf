package hub

import (
	"time"

	"github.com/soar/conductor/internal/controller"
)

// WSMessage represents a WebSocket message sent from server to client.
type WSMessage struct {
	Type      string            `json:"type"` // "snapshot", "state", "command", "capture", "mapping", "error"
	Seq       int64             `json:"seq"`
	Timestamp int64             `json:"timestamp"` // Unix timestamp in milliseconds
	Event     *controller.Event `json:"event,omitempty"`
	Snapshot  interface{}       `json:"snapshot,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// NewEventMessage wraps one controller event.
func NewEventMessage(seq int64, ev controller.Event) *WSMessage {
	return &WSMessage{
		Type:      ev.Type,
		Seq:       seq,
		Timestamp: time.Now().UnixMilli(),
		Event:     &ev,
	}
}

// NewSnapshotMessage creates a full-state message for new or resyncing clients.
func NewSnapshotMessage(seq int64, snapshot interface{}) *WSMessage {
	return &WSMessage{
		Type:      "snapshot",
		Seq:       seq,
		Timestamp: time.Now().UnixMilli(),
		Snapshot:  snapshot,
	}
}

// NewErrorMessage reports a failed client command.
func NewErrorMessage(detail string) *WSMessage {
	return &WSMessage{
		Type:      "error",
		Timestamp: time.Now().UnixMilli(),
		Error:     detail,
	}
}

// ClientMessage represents a message sent from the client to the server.
type ClientMessage struct {
	Type     string `json:"type"`
	Function string `json:"function,omitempty"`
	Position string `json:"position,omitempty"` // reverser position for capture_position
	Mode     string `json:"mode,omitempty"`     // reverser or throttle mode
	Resolve  string `json:"resolve,omitempty"`  // collision policy: cancel, clear, keep
	Device   int    `json:"device,omitempty"`
}
