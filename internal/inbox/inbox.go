// Package inbox holds messages delivered for conversations that are not
// currently displayed, until the matching view claims them.
package inbox

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
)

// Predicate selects inbox entries.
type Predicate func(core.Message) bool

// ForKey matches messages belonging to the given conversation.
func ForKey(key core.ConversationKey) Predicate {
	return func(m core.Message) bool {
		return m.Key() == key
	}
}

// Unread summarises pending messages for one conversation.
type Unread struct {
	Key        core.ConversationKey
	Count      int
	LastSender string
	LastBody   string
	LastSentAt time.Time
}

// Inbox is the process-scoped holding area shared by every view session.
// Entries keep their arrival order. All methods are safe for concurrent use.
type Inbox struct {
	mu      sync.Mutex
	entries []core.Message
	subs    map[uint64]func()
	nextSub uint64
	log     *zerolog.Logger
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets the logger used for dropped entries.
func WithLogger(logger *zerolog.Logger) Option {
	return func(i *Inbox) {
		if logger != nil {
			i.log = logger
		}
	}
}

// New creates an empty inbox.
func New(opts ...Option) *Inbox {
	nop := zerolog.Nop()
	i := &Inbox{
		subs: make(map[uint64]func()),
		log:  &nop,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Append adds a message to the end of the inbox and notifies subscribers.
// Messages that cannot be routed are dropped.
func (i *Inbox) Append(m core.Message) {
	if err := m.Validate(); err != nil {
		i.log.Debug().Err(err).Int64("message_id", m.ID).Msg("inbox: dropping message")
		return
	}

	i.mu.Lock()
	i.entries = append(i.entries, m)
	listeners := i.listenersLocked()
	i.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// Drain removes and returns, in arrival order, every entry matching pred.
// Matching and removal happen under one lock acquisition, so each entry is
// claimed by at most one caller. Subscribers are notified only when
// something was claimed.
func (i *Inbox) Drain(pred Predicate) []core.Message {
	if pred == nil {
		return nil
	}

	i.mu.Lock()
	var claimed []core.Message
	kept := i.entries[:0]
	for _, m := range i.entries {
		if pred(m) {
			claimed = append(claimed, m)
			continue
		}
		kept = append(kept, m)
	}
	// Zero the tail so claimed messages are not retained by the backing array.
	for j := len(kept); j < len(i.entries); j++ {
		i.entries[j] = core.Message{}
	}
	i.entries = kept
	var listeners []func()
	if len(claimed) > 0 {
		listeners = i.listenersLocked()
	}
	i.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
	return claimed
}

// Pending returns how many messages wait for the given conversation.
func (i *Inbox) Pending(key core.ConversationKey) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	n := 0
	for _, m := range i.entries {
		if m.Key() == key {
			n++
		}
	}
	return n
}

// Len returns the total number of pending messages.
func (i *Inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.entries)
}

// Counts returns unread summaries, most recently active conversation first.
func (i *Inbox) Counts() []Unread {
	i.mu.Lock()
	byKey := make(map[core.ConversationKey]*Unread)
	order := make([]core.ConversationKey, 0)
	for _, m := range i.entries {
		u, ok := byKey[m.Key()]
		if !ok {
			u = &Unread{Key: m.Key()}
			byKey[m.Key()] = u
			order = append(order, m.Key())
		}
		u.Count++
		u.LastSender = m.Sender
		u.LastBody = m.Body
		u.LastSentAt = m.SentAt
	}
	i.mu.Unlock()

	list := make([]Unread, 0, len(order))
	for _, key := range order {
		list = append(list, *byKey[key])
	}
	sort.SliceStable(list, func(a, b int) bool {
		return list[a].LastSentAt.After(list[b].LastSentAt)
	})
	return list
}

// Subscribe registers fn to be called after every change. fn runs on the
// goroutine that changed the inbox and must not block. The returned cancel
// function is idempotent.
func (i *Inbox) Subscribe(fn func()) (cancel func()) {
	i.mu.Lock()
	id := i.nextSub
	i.nextSub++
	i.subs[id] = fn
	i.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			i.mu.Lock()
			delete(i.subs, id)
			i.mu.Unlock()
		})
	}
}

func (i *Inbox) listenersLocked() []func() {
	if len(i.subs) == 0 {
		return nil
	}
	out := make([]func(), 0, len(i.subs))
	for _, fn := range i.subs {
		out = append(out, fn)
	}
	return out
}
