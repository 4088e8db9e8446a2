package hub

import (
	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

// EventKind is a notification the hub emits to clients.
type EventKind int

const (
	// EventMessage delivers a stored chat message.
	EventMessage EventKind = iota
	// EventError reports a rejected command to its sender.
	EventError
)

// Event is sent to clients to describe what happened.
type Event struct {
	Kind    EventKind
	Message *store.Message
	Error   *core.CoreError
}

// Command asks the hub to deliver a message from From.
type Command struct {
	From   *Client
	Target string
	Kind   core.ConversationType
	Text   string
}
