package core

import (
	"fmt"
	"strings"
	"time"
)

// ConversationType distinguishes one-to-one conversations from group rooms.
type ConversationType int

const (
	// ConversationDirect is a one-to-one conversation with another user.
	ConversationDirect ConversationType = iota
	// ConversationGroup is a named room shared by many users.
	ConversationGroup
)

// String returns the wire name of the conversation type.
func (t ConversationType) String() string {
	switch t {
	case ConversationDirect:
		return "direct"
	case ConversationGroup:
		return "group"
	default:
		return fmt.Sprintf("conversation_type(%d)", int(t))
	}
}

// Valid reports whether t is a known conversation type.
func (t ConversationType) Valid() bool {
	return t == ConversationDirect || t == ConversationGroup
}

// ParseConversationType maps a wire name back to a ConversationType.
func ParseConversationType(s string) (ConversationType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "direct", "dm", "people":
		return ConversationDirect, nil
	case "group", "room":
		return ConversationGroup, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownConversationType, s)
	}
}

// ConversationKey identifies exactly one conversation. It is comparable and
// safe to use as a map key.
type ConversationKey struct {
	Target string
	Type   ConversationType
}

// NewConversationKey builds a key with a trimmed target.
func NewConversationKey(target string, typ ConversationType) ConversationKey {
	return ConversationKey{Target: strings.TrimSpace(target), Type: typ}
}

func (k ConversationKey) String() string {
	return k.Type.String() + ":" + k.Target
}

// Message is the domain model for a delivered chat message. Values are
// treated as immutable once created.
type Message struct {
	ID     int64
	Target string
	Type   ConversationType
	Sender string
	Body   string
	SentAt time.Time
}

// Key returns the conversation the message belongs to.
func (m Message) Key() ConversationKey {
	return ConversationKey{Target: m.Target, Type: m.Type}
}

// Validate rejects messages that cannot be routed to any conversation.
func (m Message) Validate() error {
	if strings.TrimSpace(m.Target) == "" {
		return fmt.Errorf("%w: empty target", ErrInvalidMessage)
	}
	if !m.Type.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidMessage, m.Type)
	}
	return nil
}
