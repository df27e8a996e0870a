package handler

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/vintrastudio/chat-platform/internal/llm"
	"github.com/vintrastudio/chat-platform/internal/middleware"
	"github.com/vintrastudio/chat-platform/internal/model"
	"github.com/vintrastudio/chat-platform/internal/service"
	"github.com/vintrastudio/chat-platform/pkg/logger"
)

// WidgetHandler serves the anonymous widget API consumed by the embedded
// client script.
type WidgetHandler struct {
	sessions  *service.SessionService
	assistant *service.AssistantService
	logger    *logger.Logger
}

// NewWidgetHandler creates a new widget handler.
func NewWidgetHandler(sessions *service.SessionService, assistant *service.AssistantService, log *logger.Logger) *WidgetHandler {
	return &WidgetHandler{sessions: sessions, assistant: assistant, logger: log}
}

// CreateSession handles POST /api/widget/session.
func (h *WidgetHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req model.CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateID(req.WidgetID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid widget_id")
		return
	}
	if err := middleware.ValidateVisitorName(req.VisitorName); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	meta := service.VisitorMeta{
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
	}

	resp, err := h.sessions.Create(r.Context(), &req, meta)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			writeError(w, http.StatusNotFound, "widget not found")
		case errors.Is(err, service.ErrQuotaExceeded):
			writeError(w, http.StatusForbidden, "monthly conversation limit reached")
		default:
			h.logger.Error("failed to create session", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create session")
		}
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// PostMessage handles POST /api/widget/message.
func (h *WidgetHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req model.PostMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateID(req.SessionID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid session_id")
		return
	}
	if err := middleware.ValidateMessageContent(req.Body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.sessions.PostMessage(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			writeError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, service.ErrSessionClosed):
			writeError(w, http.StatusGone, "session is closed")
		default:
			h.logger.Error("failed to store message", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to store message")
		}
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ListMessages handles GET /api/widget/messages?session_id=&after=&limit=.
// The after parameter names the last message the client has seen.
func (h *WidgetHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if err := middleware.ValidateID(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid session_id")
		return
	}

	afterID := r.URL.Query().Get("after")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	msgs, err := h.sessions.ListMessages(r.Context(), sessionID, afterID, limit)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("failed to list messages", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// GenerateReply handles POST /api/widget/ai. AI failures degrade with a
// human-handoff framing instead of surfacing provider internals.
func (h *WidgetHandler) GenerateReply(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateReplyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateID(req.SessionID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid session_id")
		return
	}
	if err := middleware.ValidateMessageContent(req.Body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.assistant.GenerateReply(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("assistant reply failed",
			zap.String("session_id", req.SessionID),
			zap.String("classification", llm.KindOf(err).String()),
			zap.Error(err),
		)
		switch llm.KindOf(err) {
		case llm.KindRateLimited:
			writeError(w, http.StatusTooManyRequests, "the assistant is busy right now, please try again in a moment")
		case llm.KindConfig:
			writeError(w, http.StatusBadGateway, "the assistant is unavailable, a team member will follow up")
		default:
			writeError(w, http.StatusBadGateway, "the assistant could not respond, please try again")
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Config handles GET /api/widget/config?widget_id=.
func (h *WidgetHandler) Config(w http.ResponseWriter, r *http.Request) {
	widgetID := r.URL.Query().Get("widget_id")
	if err := middleware.ValidateID(widgetID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid widget_id")
		return
	}

	cfg, err := h.sessions.DisplayConfig(r.Context(), widgetID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(w, http.StatusNotFound, "widget not found")
			return
		}
		h.logger.Error("failed to load widget config", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load widget config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
