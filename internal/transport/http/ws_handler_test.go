package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, testConfig())

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketDirectMessageAndEcho(t *testing.T) {
	env := newTestEnv(t, testConfig())
	aliceToken := env.register(t, "alice")
	bobToken := env.register(t, "bob")

	ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCtx()

	connA := env.connect(ctx, t, aliceToken)
	connB := env.connect(ctx, t, bobToken)

	sendMsg(ctx, t, connA, "bob", "direct", "hi there")

	got := readMessage(ctx, t, connB)
	if got.User != "alice" || got.Text != "hi there" || got.Target != "alice" || got.ConvType != "direct" {
		t.Fatalf("unexpected event payload for bob: %+v", got)
	}
	if got.ID == 0 {
		t.Fatalf("expected stored message id")
	}

	echo := readMessage(ctx, t, connA)
	if echo.ID != got.ID || echo.Target != "bob" {
		t.Fatalf("unexpected echo for alice: %+v", echo)
	}
}

func TestWebSocketGroupMessage(t *testing.T) {
	env := newTestEnv(t, testConfig())
	aliceToken := env.register(t, "alice")
	bobToken := env.register(t, "bob")

	ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCtx()

	connA := env.connect(ctx, t, aliceToken)
	connB := env.connect(ctx, t, bobToken)

	sendMsg(ctx, t, connA, "general", "group", "morning")

	for _, conn := range []*websocket.Conn{connA, connB} {
		got := readMessage(ctx, t, conn)
		if got.Target != "general" || got.ConvType != "group" || got.User != "alice" {
			t.Fatalf("unexpected group event: %+v", got)
		}
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	env := newTestEnv(t, testConfig())

	ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCtx()

	conn, _, err := websocket.Dial(ctx, env.wsURL(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	sendHello(ctx, t, conn, "not-a-token", proto.ProtocolVersion)
	out := readOutbound(ctx, t, conn)
	if out.Type != proto.OutboundTypeError || out.Error == nil || out.Error.Code != core.ErrCodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %+v", out)
	}
}

func TestWebSocketRequiresHelloFirst(t *testing.T) {
	env := newTestEnv(t, testConfig())

	ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCtx()

	conn, _, err := websocket.Dial(ctx, env.wsURL(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	sendMsg(ctx, t, conn, "bob", "direct", "sneaky")
	out := readOutbound(ctx, t, conn)
	if out.Type != proto.OutboundTypeError || out.Error == nil || out.Error.Code != core.ErrCodeNotAuthenticated {
		t.Fatalf("expected not_authenticated error, got %+v", out)
	}
}

func TestWebSocketUnknownConversationType(t *testing.T) {
	env := newTestEnv(t, testConfig())
	token := env.register(t, "alice")

	ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCtx()

	conn := env.connect(ctx, t, token)
	sendMsg(ctx, t, conn, "bob", "carrier-pigeon", "hi")

	out := readOutbound(ctx, t, conn)
	if out.Type != proto.OutboundTypeError || out.Error == nil || out.Error.Code != core.ErrCodeBadRequest {
		t.Fatalf("expected bad_request error, got %+v", out)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 1
	env := newTestEnv(t, cfg)
	token := env.register(t, "alice")

	ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCtx()

	conn := env.connect(ctx, t, token)
	sendMsg(ctx, t, conn, "general", "group", "one")
	sendMsg(ctx, t, conn, "general", "group", "two")

	// The echo and the rejection are written by different goroutines, so
	// their order is not fixed.
	var sawEcho, sawLimit bool
	for range 2 {
		out := readOutbound(ctx, t, conn)
		switch {
		case out.Type == proto.OutboundTypeEvent && out.Event == proto.EventNameMessage:
			sawEcho = true
		case out.Type == proto.OutboundTypeError && out.Error != nil && out.Error.Code == core.ErrCodeRateLimited:
			sawLimit = true
		default:
			t.Fatalf("unexpected frame: %+v", out)
		}
	}
	if !sawEcho || !sawLimit {
		t.Fatalf("expected one echo and one rate_limited error (echo=%v limit=%v)", sawEcho, sawLimit)
	}
}
