// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/shoplight/copilot-platform/internal/middleware"
	"github.com/shoplight/copilot-platform/internal/model"
	"github.com/shoplight/copilot-platform/internal/orchestrator"
	"github.com/shoplight/copilot-platform/internal/store"
	"github.com/shoplight/copilot-platform/pkg/logger"
)

// TurnHandler handles turn submission.
type TurnHandler struct {
	orchestrator *orchestrator.Orchestrator
	logger       *logger.Logger
}

// NewTurnHandler creates a new turn handler.
func NewTurnHandler(orch *orchestrator.Orchestrator, log *logger.Logger) *TurnHandler {
	return &TurnHandler{
		orchestrator: orch,
		logger:       log,
	}
}

// Submit handles POST /api/v1/turns
//
// A degraded turn (model service down) still returns 200 with an
// apology assistant message; only protocol errors reject the request.
func (h *TurnHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	identityID := middleware.GetIdentityID(ctx)

	var req model.SubmitTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateTurnText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ConversationID != "" {
		if err := middleware.ValidateConversationID(req.ConversationID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	kind := model.KindShopper
	if middleware.HasScope(ctx, middleware.AdminScope) {
		kind = model.KindCopilot
	}

	resp, err := h.orchestrator.SubmitTurn(ctx, tenantID, identityID, kind, &req)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	case errors.Is(err, store.ErrForbidden):
		writeError(w, http.StatusForbidden, "sender is not a conversation participant")
		return
	case errors.Is(err, orchestrator.ErrEmptyTurn):
		writeError(w, http.StatusBadRequest, "text cannot be empty")
		return
	case err != nil:
		h.logger.WithContext(middleware.GetCorrelationID(ctx), tenantID, identityID).
			Error("turn failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to process turn")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
