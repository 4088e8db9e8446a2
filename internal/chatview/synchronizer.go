// Package chatview keeps the message list of the displayed conversation
// consistent while history, live pushes and the shared inbox race each other.
package chatview

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/history"
	"github.com/vovakirdan/wirechat-client/internal/inbox"
	"github.com/vovakirdan/wirechat-client/internal/realtime"
)

// ErrInvalidKey is returned by Select for keys that name no conversation.
var ErrInvalidKey = errors.New("chatview: invalid conversation key")

const eventBuffer = 64

// Attacher owns the live handler slot.
type Attacher interface {
	Attach(h realtime.Handler) *realtime.Subscription
}

// Inbox is the shared store of messages for non-displayed conversations.
type Inbox interface {
	Append(m core.Message)
	Drain(pred inbox.Predicate) []core.Message
	Subscribe(fn func()) (cancel func())
}

// Synchronizer owns the view of the active conversation. Every state
// transition runs on the goroutine executing Run; other goroutines only
// post events to it.
type Synchronizer struct {
	channel  Attacher
	inbox    Inbox
	loader   history.Loader
	log      *zerolog.Logger
	observer Observer

	events      chan event
	inboxSignal chan struct{}
	quit        chan struct{}
	done        chan struct{}
	quitOnce    sync.Once

	// Owned by the Run goroutine.
	baseCtx   context.Context
	session   *session
	lastToken uint64
	stats     Stats
}

// session is the state for one selection of a conversation.
type session struct {
	token    uint64
	key      core.ConversationKey
	state    State
	messages []core.Message
	ids      map[int64]struct{}
	sub      *realtime.Subscription
	cancel   context.CancelFunc
	err      error
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(s *Synchronizer) {
		if logger != nil {
			s.log = logger
		}
	}
}

// WithObserver registers the observer notified about view changes and
// history failures.
func WithObserver(o Observer) Option {
	return func(s *Synchronizer) {
		s.observer = o
	}
}

// New creates a synchronizer. Call Run to start processing.
func New(channel Attacher, in Inbox, loader history.Loader, opts ...Option) *Synchronizer {
	nop := zerolog.Nop()
	s := &Synchronizer{
		channel:     channel,
		inbox:       in,
		loader:      loader,
		log:         &nop,
		events:      make(chan event, eventBuffer),
		inboxSignal: make(chan struct{}, 1),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes events until ctx is cancelled or Close is called. On exit
// the live handler is released and any pending history result is ignored.
func (s *Synchronizer) Run(ctx context.Context) {
	s.baseCtx = ctx
	cancelInbox := s.inbox.Subscribe(s.notifyInbox)
	defer close(s.done)
	defer s.flushLive()
	defer cancelInbox()
	defer s.endSession()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case ev := <-s.events:
			ev.apply(s)
		case <-s.inboxSignal:
			s.claimInbox()
		}
	}
}

// flushLive moves live messages still queued at shutdown into the inbox.
func (s *Synchronizer) flushLive() {
	for {
		select {
		case ev := <-s.events:
			if live, ok := ev.(liveEvent); ok {
				s.inbox.Append(live.msg)
			}
		default:
			return
		}
	}
}

// Close stops Run. It is safe to call more than once.
func (s *Synchronizer) Close() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// Done is closed once Run has returned.
func (s *Synchronizer) Done() <-chan struct{} {
	return s.done
}

// Select makes key the active conversation. It returns after the previous
// session was torn down and the new one started: the live handler is
// attached and pending inbox entries for key are merged.
func (s *Synchronizer) Select(ctx context.Context, key core.ConversationKey) error {
	if key.Target == "" || !key.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key.String())
	}
	reply := make(chan View, 1)
	if err := s.post(ctx, selectEvent{key: key, reply: reply}); err != nil {
		return err
	}
	return s.await(ctx, reply)
}

// Clear deselects the active conversation.
func (s *Synchronizer) Clear(ctx context.Context) error {
	reply := make(chan View, 1)
	if err := s.post(ctx, clearEvent{reply: reply}); err != nil {
		return err
	}
	return s.await(ctx, reply)
}

// Snapshot returns a copy of the current view. It observes every event
// posted before it.
func (s *Synchronizer) Snapshot(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := s.post(ctx, snapshotEvent{reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-s.done:
		return View{}, core.ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Stats returns bookkeeping counters.
func (s *Synchronizer) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	if err := s.post(ctx, statsEvent{reply: reply}); err != nil {
		return Stats{}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-s.done:
		return Stats{}, core.ErrClosed
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

func (s *Synchronizer) await(ctx context.Context, reply <-chan View) error {
	select {
	case <-reply:
		return nil
	case <-s.done:
		return core.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Synchronizer) post(ctx context.Context, ev event) error {
	select {
	case <-s.done:
		return core.ErrClosed
	default:
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return core.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Synchronizer) notifyInbox() {
	select {
	case s.inboxSignal <- struct{}{}:
	default:
	}
}

// deliver is the live handler body. It runs on the channel's goroutine and
// only carries the session identity it was created with.
func (s *Synchronizer) deliver(token uint64, key core.ConversationKey, m core.Message) {
	if err := s.post(context.Background(), liveEvent{token: token, key: key, msg: m}); err != nil {
		// Stopped: keep the message for whoever reads the inbox next.
		s.inbox.Append(m)
	}
}

func (s *Synchronizer) startSession(key core.ConversationKey) {
	s.endSession()

	s.lastToken++
	ctx, cancel := context.WithCancel(s.baseCtx)
	sess := &session{
		token:  s.lastToken,
		key:    key,
		state:  StateLoading,
		ids:    make(map[int64]struct{}),
		cancel: cancel,
	}
	token := sess.token
	sess.sub = s.channel.Attach(func(m core.Message) {
		s.deliver(token, key, m)
	})
	s.session = sess
	s.stats.Sessions++

	s.log.Debug().Str("key", key.String()).Uint64("session", token).Msg("session started")

	s.claimInbox()
	go s.load(ctx, token, key)
}

func (s *Synchronizer) endSession() {
	sess := s.session
	if sess == nil {
		return
	}
	sess.sub.Release()
	sess.cancel()
	s.session = nil
	s.log.Debug().Str("key", sess.key.String()).Uint64("session", sess.token).Msg("session ended")
}

func (s *Synchronizer) load(ctx context.Context, token uint64, key core.ConversationKey) {
	msgs, err := s.safeLoad(ctx, key)
	// The result is posted even if ctx was cancelled; the token check on
	// the loop goroutine decides whether it still applies.
	_ = s.post(context.Background(), historyEvent{token: token, msgs: msgs, err: err})
}

func (s *Synchronizer) safeLoad(ctx context.Context, key core.ConversationKey) (msgs []core.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("history loader panic: %v", r)
		}
	}()
	return s.loader.Load(ctx, key)
}

func (s *Synchronizer) applyHistory(ev historyEvent) {
	sess := s.session
	if sess == nil || sess.token != ev.token || sess.state != StateLoading {
		s.stats.StaleResults++
		s.log.Debug().Uint64("session", ev.token).Msg("discarding stale history result")
		return
	}

	if ev.err != nil {
		sess.state = StateFailed
		sess.err = fmt.Errorf("%w: %s: %w", core.ErrHistoryLoadFailed, sess.key, ev.err)
		s.log.Warn().Err(ev.err).Str("key", sess.key.String()).Msg("history load failed")
		if s.observer != nil {
			s.observer.HistoryFailed(sess.key, sess.err)
		}
		s.publish()
		return
	}

	// History is older than anything already merged for this session, so
	// it goes below the live and inbox entries.
	for _, m := range ev.msgs {
		if m.Validate() != nil || m.Key() != sess.key {
			s.stats.Malformed++
			continue
		}
		if _, dup := sess.ids[m.ID]; dup {
			s.stats.Duplicates++
			continue
		}
		sess.ids[m.ID] = struct{}{}
		sess.messages = append(sess.messages, m)
	}
	sess.state = StateReady
	s.publish()
}

func (s *Synchronizer) applyLive(ev liveEvent) {
	m := ev.msg
	if err := m.Validate(); err != nil {
		s.stats.Malformed++
		s.log.Debug().Err(err).Int64("message_id", m.ID).Msg("dropping malformed live message")
		return
	}
	if s.session == nil || s.session.token != ev.token {
		// Delivered by a handler whose session already ended. Route it
		// against the current session so it is neither lost nor misplaced.
		s.stats.Rerouted++
		s.log.Debug().Uint64("session", ev.token).Str("handler_key", ev.key.String()).Msg("rerouting late delivery")
	}
	s.route(m)
}

// route applies the merge rule: messages of the active conversation are
// prepended to the view, all others go to the inbox.
func (s *Synchronizer) route(m core.Message) {
	sess := s.session
	if sess != nil && m.Key() == sess.key {
		if s.prepend(sess, m) {
			s.stats.LiveMerged++
			s.publish()
		}
		return
	}
	s.stats.Routed++
	s.inbox.Append(m)
}

func (s *Synchronizer) claimInbox() {
	sess := s.session
	if sess == nil {
		return
	}
	claimed := s.inbox.Drain(inbox.ForKey(sess.key))
	if len(claimed) == 0 {
		return
	}
	merged := false
	for _, m := range claimed {
		if s.prepend(sess, m) {
			s.stats.InboxClaimed++
			merged = true
		}
	}
	if merged {
		s.publish()
	}
}

func (s *Synchronizer) prepend(sess *session, m core.Message) bool {
	if _, dup := sess.ids[m.ID]; dup {
		s.stats.Duplicates++
		return false
	}
	sess.ids[m.ID] = struct{}{}
	sess.messages = slices.Insert(sess.messages, 0, m)
	return true
}

func (s *Synchronizer) view() View {
	sess := s.session
	if sess == nil {
		return View{State: StateIdle}
	}
	return View{
		Key:      sess.key,
		Active:   true,
		State:    sess.state,
		Loading:  sess.state == StateLoading,
		Messages: slices.Clone(sess.messages),
		Err:      sess.err,
	}
}

func (s *Synchronizer) publish() {
	if s.observer != nil {
		s.observer.ViewChanged(s.view())
	}
}
