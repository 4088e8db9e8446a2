package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// scriptedServer accepts one connection, acknowledges the hello and then
// runs script against it.
func scriptedServer(t *testing.T, script func(ctx context.Context, conn *websocket.Conn)) string {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusInternalError, "test server exit")

		ctx := r.Context()
		var in proto.Inbound
		if err := wsjson.Read(ctx, conn, &in); err != nil || in.Type != proto.InboundTypeHello {
			return
		}
		var hello proto.HelloData
		_ = json.Unmarshal(in.Data, &hello)
		if hello.Token != "good" {
			_ = wsjson.Write(ctx, conn, proto.NewError(core.ErrCodeUnauthorized, "bad token"))
			return
		}
		ready, _ := proto.NewEvent(proto.EventNameReady, proto.EventReady{User: "me", Protocol: proto.ProtocolVersion})
		if err := wsjson.Write(ctx, conn, ready); err != nil {
			return
		}
		script(ctx, conn)
	}))
	t.Cleanup(ts.Close)

	return strings.Replace(ts.URL, "http", "ws", 1)
}

func writeMessage(ctx context.Context, t *testing.T, conn *websocket.Conn, evt proto.EventMessage) {
	t.Helper()
	out, err := proto.NewEvent(proto.EventNameMessage, evt)
	if err == nil {
		err = wsjson.Write(ctx, conn, out)
	}
	if err != nil {
		t.Errorf("write message %d: %v", evt.ID, err)
	}
}

func TestWSClientDispatchesPushedMessagesInOrder(t *testing.T) {
	url := scriptedServer(t, func(ctx context.Context, conn *websocket.Conn) {
		writeMessage(ctx, t, conn, proto.EventMessage{ID: 1, Target: "alice", ConvType: "direct", User: "alice", Text: "a"})
		writeMessage(ctx, t, conn, proto.EventMessage{ID: 2, Target: "", ConvType: "direct", Text: "malformed"})
		writeMessage(ctx, t, conn, proto.EventMessage{ID: 3, Target: "general", ConvType: "group", User: "bob", Text: "b"})
		conn.Close(websocket.StatusNormalClosure, "done")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch := NewChannel()
	var got []core.Message
	sub := ch.Attach(func(m core.Message) { got = append(got, m) })
	defer sub.Release()

	client := NewWSClient(url, "good", ch, nil)
	require.NoError(t, client.Connect(ctx))
	require.Equal(t, "me", client.User())
	require.NoError(t, client.Run(ctx))

	require.Len(t, got, 2)
	require.Equal(t, int64(1), got[0].ID)
	require.Equal(t, core.NewConversationKey("alice", core.ConversationDirect), got[0].Key())
	require.Equal(t, int64(3), got[1].ID)
	require.Equal(t, core.ConversationGroup, got[1].Type)
}

func TestWSClientRejectedHello(t *testing.T) {
	url := scriptedServer(t, func(context.Context, *websocket.Conn) {})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := NewWSClient(url, "bad", NewChannel(), nil)
	err := client.Connect(ctx)
	require.Error(t, err)

	var coreErr *core.CoreError
	require.ErrorAs(t, err, &coreErr)
	require.Equal(t, core.ErrCodeUnauthorized, coreErr.Code)
}

func TestWSClientSend(t *testing.T) {
	received := make(chan proto.MsgData, 1)
	url := scriptedServer(t, func(ctx context.Context, conn *websocket.Conn) {
		var in proto.Inbound
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			return
		}
		var msg proto.MsgData
		_ = json.Unmarshal(in.Data, &msg)
		received <- msg
		conn.Close(websocket.StatusNormalClosure, "done")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := NewWSClient(url, "good", NewChannel(), nil)
	require.ErrorIs(t, client.Send(ctx, core.NewConversationKey("x", core.ConversationDirect), "hi"), ErrNotConnected)
	require.NoError(t, client.Connect(ctx))
	defer client.Close()

	require.ErrorIs(t, client.Send(ctx, core.NewConversationKey("general", core.ConversationGroup), "   "), core.ErrInvalidMessage)
	require.NoError(t, client.Send(ctx, core.NewConversationKey("general", core.ConversationGroup), " hello "))

	select {
	case msg := <-received:
		require.Equal(t, proto.MsgData{Target: "general", ConvType: "group", Text: "hello"}, msg)
	case <-ctx.Done():
		t.Fatal("server did not receive message")
	}
}
