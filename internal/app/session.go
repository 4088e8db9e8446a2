package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/api"
	"github.com/vovakirdan/wirechat-client/internal/chatview"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/history"
	"github.com/vovakirdan/wirechat-client/internal/inbox"
	"github.com/vovakirdan/wirechat-client/internal/realtime"
)

// ErrNoConversation is returned when sending without an open conversation.
var ErrNoConversation = errors.New("no conversation open")

// Session is a signed-in chat client: one push connection, one inbox and
// one synchronized view.
type Session struct {
	log     *zerolog.Logger
	inbox   *inbox.Inbox
	channel *realtime.Channel
	ws      *realtime.WSClient
	sync    *chatview.Synchronizer
}

// NewSession wires the client components from cfg. observer receives view
// changes and may be nil.
func NewSession(cfg config.Client, observer chatview.Observer, logger *zerolog.Logger) *Session {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	in := inbox.New(inbox.WithLogger(logger))
	// Pushes that arrive while nothing is open are kept for later.
	channel := realtime.NewChannel(
		realtime.WithFallback(in.Append),
		realtime.WithChannelLogger(logger),
	)
	client := api.New(cfg.ServerURL,
		api.WithToken(cfg.Token),
		api.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		api.WithLogger(logger),
	)
	loader := history.NewHTTPLoader(client, cfg.HistoryLimit, logger)

	opts := []chatview.Option{chatview.WithLogger(logger)}
	if observer != nil {
		opts = append(opts, chatview.WithObserver(observer))
	}

	return &Session{
		log:     logger,
		inbox:   in,
		channel: channel,
		ws:      realtime.NewWSClient(cfg.WSURL, cfg.Token, channel, logger),
		sync:    chatview.New(channel, in, loader, opts...),
	}
}

// Connect authenticates the push connection.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.ws.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// Run processes pushes and view transitions until ctx ends or the push
// connection closes. Connect must have succeeded.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.sync.Run(ctx)
	defer func() {
		s.sync.Close()
		<-s.sync.Done()
	}()

	err := s.ws.Run(ctx)
	if closeErr := s.ws.Close(); closeErr != nil {
		s.log.Debug().Err(closeErr).Msg("close realtime connection")
	}
	return err
}

// User returns the authenticated username.
func (s *Session) User() string {
	return s.ws.User()
}

// Open makes key the displayed conversation.
func (s *Session) Open(ctx context.Context, key core.ConversationKey) error {
	return s.sync.Select(ctx, key)
}

// CloseConversation returns to the idle state.
func (s *Session) CloseConversation(ctx context.Context) error {
	return s.sync.Clear(ctx)
}

// View returns the displayed conversation.
func (s *Session) View(ctx context.Context) (chatview.View, error) {
	return s.sync.Snapshot(ctx)
}

// Send posts text to the open conversation. The message shows up in the
// view once the server echoes it with its id.
func (s *Session) Send(ctx context.Context, text string) error {
	v, err := s.sync.Snapshot(ctx)
	if err != nil {
		return err
	}
	if !v.Active {
		return ErrNoConversation
	}
	return s.ws.Send(ctx, v.Key, text)
}

// Unread lists conversations with messages waiting in the inbox.
func (s *Session) Unread() []inbox.Unread {
	return s.inbox.Counts()
}
