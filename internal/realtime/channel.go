// Package realtime exposes the live push connection as a channel with a
// single handler slot.
package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
)

// Handler receives one message per arrival.
type Handler func(core.Message)

// Channel delivers pushed messages, in arrival order, to at most one
// attached handler. Messages arriving while nothing is attached go to the
// fallback sink if one is configured.
type Channel struct {
	mu       sync.Mutex
	current  *Subscription
	nextID   uint64
	fallback Handler
	log      *zerolog.Logger
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// WithFallback routes deliveries to h while no handler is attached.
func WithFallback(h Handler) ChannelOption {
	return func(c *Channel) {
		c.fallback = h
	}
}

// WithChannelLogger sets the channel logger.
func WithChannelLogger(logger *zerolog.Logger) ChannelOption {
	return func(c *Channel) {
		if logger != nil {
			c.log = logger
		}
	}
}

// NewChannel creates a channel with an empty handler slot.
func NewChannel(opts ...ChannelOption) *Channel {
	nop := zerolog.Nop()
	c := &Channel{log: &nop}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscription is the handle for an attached handler. It must be released
// exactly once by its owner; extra Release calls are no-ops.
type Subscription struct {
	ch      *Channel
	id      uint64
	handler Handler
	once    sync.Once
}

// Attach installs h as the only handler, detaching any previous one in the
// same critical section, and returns the handle owning the slot.
func (c *Channel) Attach(h Handler) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	sub := &Subscription{ch: c, id: c.nextID, handler: h}
	if c.current != nil {
		c.log.Debug().Uint64("subscription", c.current.id).Msg("realtime: replacing handler")
	}
	c.current = sub
	return sub
}

// Release detaches the handler if it is still the attached one. A handle
// that was already superseded by a newer Attach leaves the slot untouched.
func (s *Subscription) Release() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.ch.mu.Lock()
		defer s.ch.mu.Unlock()
		if s.ch.current == s {
			s.ch.current = nil
		}
	})
}

// Active reports whether the handle currently owns the slot.
func (s *Subscription) Active() bool {
	if s == nil {
		return false
	}
	s.ch.mu.Lock()
	defer s.ch.mu.Unlock()
	return s.ch.current == s
}

// Attached returns the number of attached handlers: zero or one.
func (c *Channel) Attached() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return 0
	}
	return 1
}

// Dispatch hands m to the attached handler, or to the fallback sink.
// The handler runs on the caller's goroutine, outside the channel lock.
func (c *Channel) Dispatch(m core.Message) {
	c.mu.Lock()
	var h Handler
	if c.current != nil {
		h = c.current.handler
	} else {
		h = c.fallback
	}
	c.mu.Unlock()

	if h == nil {
		c.log.Debug().Int64("message_id", m.ID).Str("target", m.Target).Msg("realtime: no handler, message dropped")
		return
	}
	h(m)
}
