package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/auth"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/hub"
	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/store/sqlite"
)

type testEnv struct {
	ts    *httptest.Server
	auth  *auth.Service
	store *sqlite.SQLiteStore
}

func testConfig() config.Server {
	cfg := config.DefaultServer()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.RateLimitPerMinute = 0
	return cfg
}

func newTestEnv(t *testing.T, cfg config.Server) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	authService := createTestAuthService(st, "test-secret")

	disabledLogger := zerolog.Nop()
	h := hub.NewHub(st, &disabledLogger)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	server := NewServer(h, authService, st, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})

	return &testEnv{ts: ts, auth: authService, store: st}
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(st *sqlite.SQLiteStore, jwtSecret string) *auth.Service {
	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(jwtSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	return auth.NewService(st, jwtConfig)
}

func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()
	token, err := e.auth.Register(context.Background(), username, "password123")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return token
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
}

func sendHello(ctx context.Context, t *testing.T, conn *websocket.Conn, token string, protocol int) {
	t.Helper()
	payload, _ := json.Marshal(proto.HelloData{Token: token, Protocol: protocol})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeHello, Data: payload}); err != nil {
		t.Fatalf("send hello: %v", err)
	}
}

func sendMsg(ctx context.Context, t *testing.T, conn *websocket.Conn, target, convType, text string) {
	t.Helper()
	payload, _ := json.Marshal(proto.MsgData{Target: target, ConvType: convType, Text: text})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeMsg, Data: payload}); err != nil {
		t.Fatalf("send msg: %v", err)
	}
}

func readOutbound(ctx context.Context, t *testing.T, conn *websocket.Conn) proto.Outbound {
	t.Helper()
	var out proto.Outbound
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	return out
}

func readMessage(ctx context.Context, t *testing.T, conn *websocket.Conn) proto.EventMessage {
	t.Helper()
	out := readOutbound(ctx, t, conn)
	if out.Type != proto.OutboundTypeEvent || out.Event != proto.EventNameMessage {
		t.Fatalf("expected message event, got %+v", out)
	}
	var msg proto.EventMessage
	if err := json.Unmarshal(out.Data, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	return msg
}

// connect dials the websocket endpoint and completes the hello handshake.
func (e *testEnv) connect(ctx context.Context, t *testing.T, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, e.wsURL(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })

	sendHello(ctx, t, conn, token, proto.ProtocolVersion)
	out := readOutbound(ctx, t, conn)
	if out.Type != proto.OutboundTypeEvent || out.Event != proto.EventNameReady {
		t.Fatalf("expected ready, got %+v", out)
	}
	return conn
}
