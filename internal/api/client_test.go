package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

func TestLoginReturnsToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/login", r.URL.Path)
		var creds credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret1" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(errorResponse{Error: "invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(authResponse{Token: "tok-" + creds.Username})
	}))
	defer ts.Close()

	c := New(ts.URL + "/")
	token, err := c.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	require.Equal(t, "tok-alice", token)

	_, err = c.Login(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, ErrUnauthorized)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "invalid credentials", apiErr.Message)
}

func TestMessagesSendsBearerAndEscapesTarget(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/conversations/group/team%20a/messages", r.URL.EscapedPath())
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(proto.HistoryResponse{Messages: []proto.EventMessage{
			{ID: 1, Target: "team a", ConvType: "group", User: "bob", Text: "hi"},
		}})
	}))
	defer ts.Close()

	c := New(ts.URL, WithToken("tok"))
	msgs, err := c.Messages(context.Background(), core.NewConversationKey("team a", core.ConversationGroup), 50)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "hi", msgs[0].Text)
}
