package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// ErrNotConnected is returned when the client is used before Connect.
var ErrNotConnected = errors.New("realtime: not connected")

// WSClient owns the websocket connection and feeds every pushed message
// into a Channel, in arrival order.
type WSClient struct {
	url     string
	token   string
	channel *Channel
	log     *zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	user string
}

// NewWSClient creates a client for the given websocket URL.
func NewWSClient(url, token string, channel *Channel, logger *zerolog.Logger) *WSClient {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &WSClient{
		url:     url,
		token:   token,
		channel: channel,
		log:     logger,
	}
}

// Connect dials the server and authenticates. It returns once the server
// acknowledged the hello or rejected it.
func (c *WSClient) Connect(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	hello, err := json.Marshal(proto.HelloData{Token: c.token, Protocol: proto.ProtocolVersion})
	if err != nil {
		conn.Close(websocket.StatusInternalError, "marshal hello")
		return fmt.Errorf("marshal hello: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeHello, Data: hello}); err != nil {
		conn.Close(websocket.StatusInternalError, "send hello")
		return fmt.Errorf("send hello: %w", err)
	}

	var out proto.Outbound
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		conn.Close(websocket.StatusInternalError, "read ready")
		return fmt.Errorf("read ready: %w", err)
	}
	if out.Type == proto.OutboundTypeError && out.Error != nil {
		conn.Close(websocket.StatusPolicyViolation, out.Error.Code)
		return fmt.Errorf("hello rejected: %w", core.NewError(out.Error.Code, out.Error.Msg))
	}
	var ready proto.EventReady
	if out.Event != proto.EventNameReady || json.Unmarshal(out.Data, &ready) != nil {
		conn.Close(websocket.StatusProtocolError, "expected ready")
		return fmt.Errorf("unexpected frame %q/%q before ready", out.Type, out.Event)
	}

	c.mu.Lock()
	c.conn = conn
	c.user = ready.User
	c.mu.Unlock()

	c.log.Info().Str("url", c.url).Str("user", ready.User).Msg("realtime connected")
	return nil
}

// User returns the authenticated username reported by the server.
func (c *WSClient) User() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Run reads frames until the context ends or the connection closes. Normal
// closure and the end of ctx return nil.
func (c *WSClient) Run(ctx context.Context) error {
	conn := c.currentConn()
	if conn == nil {
		return ErrNotConnected
	}

	for {
		var out proto.Outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		c.handle(out)
	}
}

func (c *WSClient) handle(out proto.Outbound) {
	switch {
	case out.Type == proto.OutboundTypeError:
		if out.Error != nil {
			c.log.Warn().Str("code", out.Error.Code).Str("msg", out.Error.Msg).Msg("server error")
		}
	case out.Event == proto.EventNameMessage:
		var evt proto.EventMessage
		if err := json.Unmarshal(out.Data, &evt); err != nil {
			c.log.Warn().Err(err).Msg("unmarshal message event")
			return
		}
		m, err := evt.ToMessage()
		if err != nil {
			c.log.Debug().Err(err).Int64("message_id", evt.ID).Msg("dropping malformed message")
			return
		}
		c.channel.Dispatch(m)
	default:
		c.log.Debug().Str("type", out.Type).Str("event", out.Event).Msg("ignoring frame")
	}
}

// Send publishes text to a conversation. The server echoes the stored
// message back through the push stream.
func (c *WSClient) Send(ctx context.Context, key core.ConversationKey, text string) error {
	conn := c.currentConn()
	if conn == nil {
		return ErrNotConnected
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: empty text", core.ErrInvalidMessage)
	}

	payload, err := json.Marshal(proto.MsgData{Target: key.Target, ConvType: key.Type.String(), Text: text})
	if err != nil {
		return fmt.Errorf("marshal msg: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeMsg, Data: payload}); err != nil {
		return fmt.Errorf("send msg: %w", err)
	}
	return nil
}

// Close closes the connection with a normal closure status.
func (c *WSClient) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "bye")
}

func (c *WSClient) currentConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}
