package hub

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

// Store is the persistence the hub needs. A nil Store keeps messages in
// memory only and accepts any direct recipient.
type Store interface {
	store.MessageStore
	GetUserByUsername(ctx context.Context, username string) (*store.User, error)
}

// Hub routes chat messages between connected clients. All routing state is
// owned by the goroutine executing Run.
type Hub struct {
	store Store
	log   *zerolog.Logger
	now   func() time.Time

	register   chan *Client
	unregister chan *Client
	commands   chan Command
	done       chan struct{}

	clients map[string]map[*Client]struct{}
	nextID  int64
}

// NewHub creates a new hub.
func NewHub(st Store, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		store:      st,
		log:        logger,
		now:        time.Now,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		commands:   make(chan Command, 64),
		done:       make(chan struct{}),
		clients:    make(map[string]map[*Client]struct{}),
	}
}

// Run processes registrations and commands until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, conns := range h.clients {
				for c := range conns {
					close(c.Events)
				}
			}
			h.clients = make(map[string]map[*Client]struct{})
			return
		case c := <-h.register:
			conns, ok := h.clients[c.User]
			if !ok {
				conns = make(map[*Client]struct{})
				h.clients[c.User] = conns
			}
			conns[c] = struct{}{}
			h.log.Debug().Str("client_id", c.ID).Str("user", c.User).Msg("client registered")
		case c := <-h.unregister:
			h.drop(c)
		case cmd := <-h.commands:
			h.handle(ctx, cmd)
		}
	}
}

// RegisterClient adds c to the routing table.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// UnregisterClient removes c and closes its event channel.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Submit queues a command for routing.
func (h *Hub) Submit(ctx context.Context, cmd Command) error {
	select {
	case h.commands <- cmd:
		return nil
	case <-h.done:
		return core.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) handle(ctx context.Context, cmd Command) {
	target := strings.TrimSpace(cmd.Target)
	text := strings.TrimSpace(cmd.Text)
	switch {
	case target == "" || !cmd.Kind.Valid():
		h.reject(cmd.From, core.ErrCodeBadRequest, "target is required")
		return
	case text == "":
		h.reject(cmd.From, core.ErrCodeInvalidMessage, "text is required")
		return
	}

	msg := &store.Message{
		Kind:      cmd.Kind,
		Sender:    cmd.From.User,
		Recipient: target,
		Body:      text,
		CreatedAt: h.now(),
	}
	if cmd.Kind == core.ConversationDirect {
		msg.Conversation = store.DirectKey(cmd.From.User, target)
		if h.store != nil {
			if _, err := h.store.GetUserByUsername(ctx, target); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					h.reject(cmd.From, core.ErrCodeUnknownUser, "unknown user "+target)
					return
				}
				h.log.Error().Err(err).Str("target", target).Msg("lookup recipient")
				h.reject(cmd.From, core.ErrCodeBadRequest, "recipient lookup failed")
				return
			}
		}
	} else {
		msg.Conversation = store.GroupKey(target)
	}

	if err := h.save(ctx, msg); err != nil {
		h.log.Error().Err(err).Str("conversation", msg.Conversation).Msg("save message")
		h.reject(cmd.From, core.ErrCodeBadRequest, "message not stored")
		return
	}

	ev := &Event{Kind: EventMessage, Message: msg}
	if cmd.Kind == core.ConversationGroup {
		for _, conns := range h.clients {
			h.deliver(conns, ev)
		}
		return
	}
	h.deliver(h.clients[msg.Recipient], ev)
	if msg.Sender != msg.Recipient {
		h.deliver(h.clients[msg.Sender], ev)
	}
}

func (h *Hub) save(ctx context.Context, msg *store.Message) error {
	if h.store != nil {
		return h.store.SaveMessage(ctx, msg)
	}
	h.nextID++
	msg.ID = h.nextID
	return nil
}

// deliver never blocks the loop: a client whose buffer is full is dropped.
func (h *Hub) deliver(conns map[*Client]struct{}, ev *Event) {
	for c := range conns {
		select {
		case c.Events <- ev:
		default:
			h.log.Warn().Str("client_id", c.ID).Str("user", c.User).Msg("client too slow, disconnecting")
			h.drop(c)
		}
	}
}

func (h *Hub) reject(c *Client, code, msg string) {
	if c == nil {
		return
	}
	conns := h.clients[c.User]
	if _, ok := conns[c]; !ok {
		return
	}
	select {
	case c.Events <- &Event{Kind: EventError, Error: core.NewError(code, msg)}:
	default:
		h.drop(c)
	}
}

func (h *Hub) drop(c *Client) {
	conns, ok := h.clients[c.User]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, c.User)
	}
	close(c.Events)
	h.log.Debug().Str("client_id", c.ID).Str("user", c.User).Msg("client unregistered")
}
