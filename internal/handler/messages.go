package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shoplight/copilot-platform/internal/middleware"
	"github.com/shoplight/copilot-platform/internal/store"
	"github.com/shoplight/copilot-platform/pkg/logger"
)

// MessageHandler handles message history endpoints.
type MessageHandler struct {
	store  store.ConversationStore
	logger *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(st store.ConversationStore, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		store:  st,
		logger: log,
	}
}

// List handles GET /api/v1/conversations/{id}/messages
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	identityID := middleware.GetIdentityID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pageSize := 50
	if l := r.URL.Query().Get("page_size"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			pageSize = parsed
		}
	}
	cursor := r.URL.Query().Get("cursor")

	resp, err := h.store.ListMessages(ctx, tenantID, conversationID, pageSize, cursor)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to list messages",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	// Listing doubles as a read receipt for the caller.
	if err := h.store.MarkRead(ctx, conversationID, identityID); err != nil && !errors.Is(err, store.ErrForbidden) {
		h.logger.Warn("failed to mark conversation read",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}

	writeJSON(w, http.StatusOK, resp)
}
