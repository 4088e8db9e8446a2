package app

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-client/internal/auth"
	"github.com/vovakirdan/wirechat-client/internal/chatview"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/hub"
	"github.com/vovakirdan/wirechat-client/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-client/internal/transport/http"
)

type backend struct {
	ts   *httptest.Server
	auth *auth.Service
}

func startBackend(t *testing.T) *backend {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.DefaultServer()
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("session-test"),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      time.Hour,
	})

	h := hub.NewHub(st, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	ts := httptest.NewServer(transporthttp.NewRouter(h, authService, st, &cfg, nil))
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return &backend{ts: ts, auth: authService}
}

func (b *backend) session(t *testing.T, username string) *Session {
	t.Helper()

	token, err := b.auth.Register(context.Background(), username, "password123")
	require.NoError(t, err)

	cfg := config.DefaultClient()
	cfg.ServerURL = b.ts.URL
	cfg.WSURL = strings.Replace(b.ts.URL, "http", "ws", 1) + "/ws"
	cfg.Token = token
	cfg.Username = username

	s := NewSession(cfg, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Connect(ctx))
	require.Equal(t, username, s.User())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

func waitView(t *testing.T, s *Session, cond func(chatview.View) bool, msg string) chatview.View {
	t.Helper()
	var last chatview.View
	require.Eventually(t, func() bool {
		v, err := s.View(context.Background())
		if err != nil {
			return false
		}
		last = v
		return cond(v)
	}, 5*time.Second, 10*time.Millisecond, msg)
	return last
}

func bodies(v chatview.View) []string {
	out := make([]string, 0, len(v.Messages))
	for _, m := range v.Messages {
		out = append(out, m.Body)
	}
	return out
}

func TestSessionsExchangeMessages(t *testing.T) {
	b := startBackend(t)
	alice := b.session(t, "alice")
	bob := b.session(t, "bob")
	ctx := context.Background()

	require.ErrorIs(t, alice.Send(ctx, "nobody is listening"), ErrNoConversation)

	withAlice := core.NewConversationKey("alice", core.ConversationDirect)
	withBob := core.NewConversationKey("bob", core.ConversationDirect)
	general := core.NewConversationKey("general", core.ConversationGroup)

	require.NoError(t, bob.Open(ctx, withAlice))
	waitView(t, bob, func(v chatview.View) bool { return v.State == chatview.StateReady }, "bob history loaded")

	require.NoError(t, alice.Open(ctx, withBob))
	require.NoError(t, alice.Send(ctx, "hi bob"))

	waitView(t, bob, func(v chatview.View) bool { return len(v.Messages) == 1 }, "bob sees alice's message")
	v := waitView(t, alice, func(v chatview.View) bool { return len(v.Messages) == 1 }, "alice sees her echo")
	require.Equal(t, "alice", v.Messages[0].Sender)

	// A group message lands in bob's inbox while he is looking at alice.
	require.NoError(t, alice.Open(ctx, general))
	require.NoError(t, alice.Send(ctx, "all hands"))
	require.Eventually(t, func() bool {
		unread := bob.Unread()
		return len(unread) == 1 && unread[0].Key == general && unread[0].Count == 1
	}, 5*time.Second, 10*time.Millisecond, "group message kept in bob's inbox")

	require.NoError(t, bob.Open(ctx, general))
	v = waitView(t, bob, func(v chatview.View) bool { return v.State == chatview.StateReady }, "group history loaded")
	require.Equal(t, []string{"all hands"}, bodies(v))
	require.Empty(t, bob.Unread())

	// Reopening alice reloads the stored message exactly once.
	require.NoError(t, bob.Open(ctx, withAlice))
	v = waitView(t, bob, func(v chatview.View) bool { return v.State == chatview.StateReady }, "direct history reloaded")
	require.Equal(t, []string{"hi bob"}, bodies(v))
}
