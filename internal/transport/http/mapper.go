package http

import (
	"encoding/json"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/hub"
	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

func inboundToCommand(client *hub.Client, inbound proto.Inbound) (*hub.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeMsg:
		var msg proto.MsgData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, nil, err
		}
		if msg.Target == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "target is required"}, nil
		}
		typ, err := core.ParseConversationType(msg.ConvType)
		if err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: err.Error()}, nil
		}
		return &hub.Command{
			From:   client,
			Target: msg.Target,
			Kind:   typ,
			Text:   msg.Text,
		}, nil, nil
	case proto.InboundTypeHello:
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "already authenticated"}, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *hub.Event, viewer string) (proto.Outbound, error) {
	switch event.Kind {
	case hub.EventMessage:
		return proto.NewEvent(proto.EventNameMessage, toEventMessage(event.Message, viewer))
	case hub.EventError:
		if event.Error == nil {
			return proto.NewError("unknown", "unknown error"), nil
		}
		return proto.NewError(event.Error.Code, event.Error.Message), nil
	default:
		return proto.NewError("unknown", "unknown event"), nil
	}
}

func toEventMessage(m *store.Message, viewer string) proto.EventMessage {
	return proto.EventMessage{
		ID:       m.ID,
		Target:   m.TargetFor(viewer),
		ConvType: m.Kind.String(),
		User:     m.Sender,
		Text:     m.Body,
		TS:       m.CreatedAt.UnixMilli(),
	}
}
