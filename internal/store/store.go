package store

import (
	"context"
	"errors"
	"time"

	"github.com/vovakirdan/wirechat-client/internal/core"
)

var (
	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("not found")
	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = errors.New("username already taken")
)

// User represents a registered user.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Message represents a persisted chat message. Conversation is the storage
// key shared by both sides of a direct conversation (see DirectKey).
type Message struct {
	ID           int64
	Conversation string
	Kind         core.ConversationType
	Sender       string
	Recipient    string // peer username for direct, group name for group
	Body         string
	CreatedAt    time.Time
}

// TargetFor returns the conversation target as seen by viewer: the other
// participant of a direct conversation, or the group name.
func (m *Message) TargetFor(viewer string) string {
	if m.Kind == core.ConversationDirect && m.Recipient == viewer {
		return m.Sender
	}
	return m.Recipient
}

// DirectKey builds the conversation key of a direct conversation:
// "dm:{min}:{max}" over the two usernames.
func DirectKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return "dm:" + a + ":" + b
}

// GroupKey builds the conversation key of a group.
func GroupKey(name string) string {
	return "group:" + name
}

// ConversationKey maps a viewer's conversation to its storage key.
func ConversationKey(viewer string, key core.ConversationKey) string {
	if key.Type == core.ConversationGroup {
		return GroupKey(key.Target)
	}
	return DirectKey(viewer, key.Target)
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and assigns its ID.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages returns up to limit messages of a conversation, oldest
	// first. If beforeID is set only older messages are returned.
	ListMessages(ctx context.Context, conversation string, limit int, beforeID *int64) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
