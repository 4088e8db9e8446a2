package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/auth"
	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/hub"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

const helloTimeout = 10 * time.Second

var errHelloRejected = errors.New("hello rejected")

// WSOptions tunes per-connection limits.
type WSOptions struct {
	MaxMessageBytes    int64
	RateLimitPerMinute int
}

// WSHandler upgrades HTTP connections and bridges them to hub clients.
type WSHandler struct {
	hub  *hub.Hub
	auth *auth.Service
	opts WSOptions
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(h *hub.Hub, authService *auth.Service, opts WSOptions, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: h, auth: authService, opts: opts, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	if h.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opts.MaxMessageBytes)
	}

	claims, err := h.hello(ctx, conn)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws hello failed")
		conn.Close(websocket.StatusPolicyViolation, "hello failed")
		return
	}

	// Register before acknowledging so nothing sent after ready is missed.
	client := hub.NewClient(claims.Username)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	if err := h.ready(ctx, conn, claims); err != nil {
		h.log.Debug().Err(err).Str("client_id", client.ID).Msg("ws ready failed")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel()
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// hello reads the first frame, which must authenticate the connection. A
// rejected hello is answered with an error frame.
func (h *WSHandler) hello(ctx context.Context, conn *websocket.Conn) (*auth.Claims, error) {
	ctx, cancel := context.WithTimeout(ctx, helloTimeout)
	defer cancel()

	var inbound proto.Inbound
	if err := wsjson.Read(ctx, conn, &inbound); err != nil {
		return nil, fmt.Errorf("read hello: %w", err)
	}

	reject := func(code, msg string) (*auth.Claims, error) {
		_ = wsjson.Write(ctx, conn, proto.NewError(code, msg))
		return nil, fmt.Errorf("%w: %s", errHelloRejected, code)
	}

	if inbound.Type != proto.InboundTypeHello {
		return reject(core.ErrCodeNotAuthenticated, "hello required")
	}
	var hello proto.HelloData
	if err := json.Unmarshal(inbound.Data, &hello); err != nil {
		return reject(core.ErrCodeBadRequest, "malformed hello")
	}
	if hello.Protocol != 0 && hello.Protocol != proto.ProtocolVersion {
		return reject(core.ErrCodeUnsupportedVersion, fmt.Sprintf("protocol %d not supported", hello.Protocol))
	}
	claims, err := h.auth.ValidateToken(hello.Token)
	if err != nil {
		return reject(core.ErrCodeUnauthorized, "invalid token")
	}
	return claims, nil
}

func (h *WSHandler) ready(ctx context.Context, conn *websocket.Conn, claims *auth.Claims) error {
	ready, err := proto.NewEvent(proto.EventNameReady, proto.EventReady{User: claims.Username, Protocol: proto.ProtocolVersion})
	if err != nil {
		return err
	}
	if err := wsjson.Write(ctx, conn, ready); err != nil {
		return fmt.Errorf("write ready: %w", err)
	}
	return nil
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) error {
	limiter := newRateLimiter(h.opts.RateLimitPerMinute)
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !limiter.allow() {
			if err := wsjson.Write(ctx, conn, proto.NewError(core.ErrCodeRateLimited, "too many messages")); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr, err := inboundToCommand(client, inbound)
		if err != nil {
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("failed to map inbound")
			return err
		}
		if protoErr != nil {
			if writeErr := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); writeErr != nil {
				return writeErr
			}
			continue
		}
		if err := h.hub.Submit(ctx, *cmd); err != nil {
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			out, err := outboundFromEvent(event, client.User)
			if err != nil {
				return err
			}
			if err := wsjson.Write(ctx, conn, out); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
