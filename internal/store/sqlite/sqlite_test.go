package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndLookupUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	byName, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, created.ID, byName.ID)
	require.Equal(t, "hash", byName.PasswordHash)

	_, err = s.CreateUser(ctx, "alice", "other")
	require.ErrorIs(t, err, store.ErrUsernameTaken)

	_, err = s.GetUserByUsername(ctx, "nobody")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListMessagesIsChronologicalAndScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dm := store.DirectKey("alice", "bob")
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, body := range []string{"one", "two", "three"} {
		msg := &store.Message{
			Conversation: dm,
			Kind:         core.ConversationDirect,
			Sender:       "alice",
			Recipient:    "bob",
			Body:         body,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.SaveMessage(ctx, msg))
		require.NotZero(t, msg.ID)
	}
	require.NoError(t, s.SaveMessage(ctx, &store.Message{
		Conversation: store.GroupKey("general"),
		Kind:         core.ConversationGroup,
		Sender:       "carol",
		Recipient:    "general",
		Body:         "elsewhere",
		CreatedAt:    base,
	}))

	all, err := s.ListMessages(ctx, dm, 10, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "one", all[0].Body)
	require.Equal(t, "three", all[2].Body)
	require.Equal(t, core.ConversationDirect, all[0].Kind)
	require.True(t, all[1].CreatedAt.Equal(base.Add(time.Minute)))

	latest, err := s.ListMessages(ctx, dm, 2, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"two", "three"}, []string{latest[0].Body, latest[1].Body})

	older, err := s.ListMessages(ctx, dm, 10, &all[2].ID)
	require.NoError(t, err)
	require.Len(t, older, 2)
}
