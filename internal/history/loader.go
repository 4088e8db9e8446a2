// Package history loads the stored messages of one conversation.
package history

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// DefaultLimit bounds a history request when none is configured.
const DefaultLimit = 100

// Loader fetches the history of a conversation, newest message first.
// Implementations must honour ctx cancellation; callers may also discard
// a result after the fact.
type Loader interface {
	Load(ctx context.Context, key core.ConversationKey) ([]core.Message, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, key core.ConversationKey) ([]core.Message, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, key core.ConversationKey) ([]core.Message, error) {
	return f(ctx, key)
}

// MessageFetcher is the part of the REST client the HTTP loader needs.
type MessageFetcher interface {
	Messages(ctx context.Context, key core.ConversationKey, limit int) ([]proto.EventMessage, error)
}

// HTTPLoader loads history from the backend REST API.
type HTTPLoader struct {
	fetcher MessageFetcher
	limit   int
	log     *zerolog.Logger
}

// NewHTTPLoader creates a loader requesting at most limit messages.
func NewHTTPLoader(fetcher MessageFetcher, limit int, logger *zerolog.Logger) *HTTPLoader {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &HTTPLoader{fetcher: fetcher, limit: limit, log: logger}
}

// Load fetches the conversation history. The API returns messages oldest
// first; the result is reversed so the newest message comes first.
// Entries that do not belong to key or cannot be decoded are skipped.
func (l *HTTPLoader) Load(ctx context.Context, key core.ConversationKey) ([]core.Message, error) {
	events, err := l.fetcher.Messages(ctx, key, l.limit)
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", key, err)
	}

	out := make([]core.Message, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		m, err := events[i].ToMessage()
		if err != nil {
			l.log.Debug().Err(err).Int64("message_id", events[i].ID).Msg("history: skipping malformed message")
			continue
		}
		if m.Key() != key {
			l.log.Debug().Int64("message_id", m.ID).Str("key", m.Key().String()).Msg("history: skipping foreign message")
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
