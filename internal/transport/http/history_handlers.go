package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/store"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
)

// HistoryHandlers serves stored conversation messages.
type HistoryHandlers struct {
	store store.MessageStore
	log   *zerolog.Logger
}

// NewHistoryHandlers creates history handlers.
func NewHistoryHandlers(st store.MessageStore, logger *zerolog.Logger) *HistoryHandlers {
	return &HistoryHandlers{store: st, log: logger}
}

// Messages returns the latest messages of a conversation, oldest first.
// GET /api/conversations/:type/:target/messages?limit=N&before=ID
func (h *HistoryHandlers) Messages(c *gin.Context) {
	viewer := c.GetString(ContextKeyUsername)
	if viewer == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	typ, err := core.ParseConversationType(c.Param("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	key := core.NewConversationKey(c.Param("target"), typ)
	if key.Target == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "target is required"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	var beforeID *int64
	if raw := c.Query("before"); raw != "" {
		id, convErr := strconv.ParseInt(raw, 10, 64)
		if convErr != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before"})
			return
		}
		beforeID = &id
	}

	conversation := store.ConversationKey(viewer, key)
	messages, err := h.store.ListMessages(c.Request.Context(), conversation, limit, beforeID)
	if err != nil {
		h.log.Error().Err(err).Str("conversation", conversation).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := proto.HistoryResponse{Messages: make([]proto.EventMessage, 0, len(messages))}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, toEventMessage(m, viewer))
	}
	c.JSON(http.StatusOK, resp)
}
