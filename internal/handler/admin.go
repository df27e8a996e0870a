package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vintrastudio/chat-platform/internal/middleware"
	"github.com/vintrastudio/chat-platform/internal/model"
	"github.com/vintrastudio/chat-platform/internal/service"
	"github.com/vintrastudio/chat-platform/pkg/logger"
)

// AdminHandler serves the authenticated dashboard API. Every route resolves
// the owner from the JWT subject; session ids from the URL are only honored
// when the session belongs to that owner.
type AdminHandler struct {
	sessions *service.SessionService
	logger   *logger.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(sessions *service.SessionService, log *logger.Logger) *AdminHandler {
	return &AdminHandler{sessions: sessions, logger: log}
}

// ListSessions handles GET /api/v1/sessions.
func (h *AdminHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())

	sessions, err := h.sessions.ListSessions(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("failed to list sessions", zap.String("owner_id", ownerID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// Reply handles POST /api/v1/sessions/{id}/reply.
func (h *AdminHandler) Reply(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	sessionID := chi.URLParam(r, "id")

	var req model.AdminReplyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.sessions.AdminReply(r.Context(), ownerID, sessionID, req.Body)
	if err != nil {
		h.writeServiceError(w, err, "failed to store reply")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// Takeover handles POST /api/v1/sessions/{id}/takeover.
func (h *AdminHandler) Takeover(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	sessionID := chi.URLParam(r, "id")

	if err := h.sessions.Takeover(r.Context(), ownerID, sessionID); err != nil {
		h.writeServiceError(w, err, "failed to take over session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "taken_over"})
}

// Reactivate handles POST /api/v1/sessions/{id}/reactivate.
func (h *AdminHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	sessionID := chi.URLParam(r, "id")

	if err := h.sessions.ReactivateBot(r.Context(), ownerID, sessionID); err != nil {
		h.writeServiceError(w, err, "failed to reactivate assistant")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "bot_active"})
}

// Archive handles POST /api/v1/sessions/{id}/archive.
func (h *AdminHandler) Archive(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	sessionID := chi.URLParam(r, "id")

	if err := h.sessions.Archive(r.Context(), ownerID, sessionID); err != nil {
		h.writeServiceError(w, err, "failed to archive session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

// Delete handles DELETE /api/v1/sessions/{id}.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	sessionID := chi.URLParam(r, "id")

	if err := h.sessions.Delete(r.Context(), ownerID, sessionID); err != nil {
		h.writeServiceError(w, err, "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, service.ErrSessionClosed):
		writeError(w, http.StatusGone, "session is closed")
	case errors.Is(err, service.ErrIllegalTransition):
		writeError(w, http.StatusConflict, "operation not allowed in current session state")
	default:
		h.logger.Error(fallback, zap.Error(err))
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
