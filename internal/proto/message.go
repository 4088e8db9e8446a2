package proto

import (
	"encoding/json"
	"time"

	"github.com/vovakirdan/wirechat-client/internal/core"
)

// Inbound is the envelope for frames sent by a client to the server.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 2

	InboundTypeHello = "hello"
	InboundTypeMsg   = "msg"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNameMessage = "message"
	EventNameReady   = "ready"
)

// HelloData authenticates the connection.
type HelloData struct {
	Token    string `json:"token"`
	Protocol int    `json:"protocol,omitempty"`
}

// MsgData is a chat message sent by a client.
type MsgData struct {
	Target   string `json:"target"`
	ConvType string `json:"conv_type"`
	Text     string `json:"text"`
}

// Outbound is the envelope for frames sent by the server.
type Outbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// EventMessage is a delivered chat message. Target is resolved for the
// receiving user: the other party for direct messages, the room for groups.
type EventMessage struct {
	ID       int64  `json:"id"`
	Target   string `json:"target"`
	ConvType string `json:"conv_type"`
	User     string `json:"user"`
	Text     string `json:"text"`
	TS       int64  `json:"ts"`
}

// EventReady acknowledges a successful hello.
type EventReady struct {
	User     string `json:"user"`
	Protocol int    `json:"protocol"`
}

// HistoryResponse is returned by the history endpoint, oldest message first.
type HistoryResponse struct {
	Messages []EventMessage `json:"messages"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// NewEvent builds an event envelope around data.
func NewEvent(name string, data any) (Outbound, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Outbound{}, err
	}
	return Outbound{Type: OutboundTypeEvent, Event: name, Data: raw}, nil
}

// NewError builds an error envelope.
func NewError(code, msg string) Outbound {
	return Outbound{Type: OutboundTypeError, Error: &Error{Code: code, Msg: msg}}
}

// EventFromMessage converts a domain message to its wire form.
func EventFromMessage(m core.Message) EventMessage {
	return EventMessage{
		ID:       m.ID,
		Target:   m.Target,
		ConvType: m.Type.String(),
		User:     m.Sender,
		Text:     m.Body,
		TS:       m.SentAt.UnixMilli(),
	}
}

// ToMessage converts a wire message to the domain model.
func (e EventMessage) ToMessage() (core.Message, error) {
	typ, err := core.ParseConversationType(e.ConvType)
	if err != nil {
		return core.Message{}, err
	}
	m := core.Message{
		ID:     e.ID,
		Target: e.Target,
		Type:   typ,
		Sender: e.User,
		Body:   e.Text,
		SentAt: time.UnixMilli(e.TS),
	}
	if err := m.Validate(); err != nil {
		return core.Message{}, err
	}
	return m, nil
}
