package hub

import "github.com/google/uuid"

const clientEventBuffer = 32

// Client is one authenticated connection as seen by the hub. A user may
// hold several clients at once.
type Client struct {
	ID     string
	User   string
	Events chan *Event
}

// NewClient constructs a client with a fresh id and an event buffer.
func NewClient(user string) *Client {
	return &Client{
		ID:     uuid.NewString(),
		User:   user,
		Events: make(chan *Event, clientEventBuffer),
	}
}
