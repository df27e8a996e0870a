package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/vintrastudio/chat-platform/internal/events"
	"github.com/vintrastudio/chat-platform/internal/hours"
	"github.com/vintrastudio/chat-platform/internal/model"
	"github.com/vintrastudio/chat-platform/internal/plan"
	"github.com/vintrastudio/chat-platform/internal/quota"
	"github.com/vintrastudio/chat-platform/internal/store"
	"github.com/vintrastudio/chat-platform/pkg/logger"
	"github.com/vintrastudio/chat-platform/pkg/metrics"
)

const defaultMessagePageSize = 50

// VisitorMeta carries request context captured at session creation.
type VisitorMeta struct {
	UserAgent string
	Referrer  string
}

// SessionService owns the conversation lifecycle: creation under quota,
// message appends, cursor reads, and the admin-side state transitions.
type SessionService struct {
	store  store.Store
	quota  *quota.Tracker
	events events.Publisher
	logger *logger.Logger

	now func() time.Time
}

// NewSessionService creates a new session service.
func NewSessionService(st store.Store, qt *quota.Tracker, pub events.Publisher, log *logger.Logger) *SessionService {
	return &SessionService{
		store:  st,
		quota:  qt,
		events: pub,
		logger: log,
		now:    time.Now,
	}
}

// Create starts a conversation for a widget. The quota gate runs before
// any session or message row is written; rejection leaves no partial
// records. The bot participates only when both the widget config and the
// owner's plan allow it.
func (s *SessionService) Create(ctx context.Context, req *model.CreateSessionRequest, meta VisitorMeta) (*model.CreateSessionResponse, error) {
	cfg, err := s.store.GetWidgetConfig(ctx, req.WidgetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load widget config: %w", err)
	}

	now := s.now()
	ok, profile, err := s.quota.CanStartSession(ctx, cfg.OwnerID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.QuotaRejectionsTotal.WithLabelValues(cfg.OwnerID, profile.Plan).Inc()
		return nil, ErrQuotaExceeded
	}

	limits := plan.LimitsFor(profile.Plan)
	botActive := cfg.AssistantEnabled && limits.AssistantEnabled

	sess := model.NewSession(cfg.OwnerID, cfg.ID, req.VisitorName, req.VisitorEmail, botActive, now)
	sess.ID = uuid.Must(uuid.NewV7()).String()
	sess.Metadata = datatypes.JSONMap{
		"user_agent": meta.UserAgent,
		"referrer":   meta.Referrer,
	}

	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.quota.RecordSessionStart(ctx, profile, now); err != nil {
		// The session exists; losing one count beats failing the visitor.
		s.logger.Warn("failed to record quota usage",
			zap.String("owner_id", cfg.OwnerID),
			zap.Error(err),
		)
	}

	// No auto-greeting outside staffed hours; the widget shows the offline
	// notice instead.
	greeting := ""
	if botActive && cfg.AutoGreet && cfg.GreetingMessage != "" && hours.IsOnline(cfg.Schedule(), cfg.Timezone, now) {
		greeting = cfg.GreetingMessage
		msg := s.newMessage(sess, model.SenderBot, greeting, now)
		msg.IsAIGenerated = true
		msg.Metadata = datatypes.JSONMap{"type": "greeting"}
		if err := s.store.InsertMessage(ctx, msg); err != nil {
			s.logger.Warn("failed to store greeting message", zap.Error(err))
			greeting = ""
		}
	}

	metrics.SessionsTotal.WithLabelValues(cfg.OwnerID).Inc()
	s.events.Publish(events.Event{
		Type:      events.TypeSessionStarted,
		OwnerID:   cfg.OwnerID,
		WidgetID:  cfg.ID,
		SessionID: sess.ID,
		Data: map[string]any{
			"visitor_name":  sess.VisitorName,
			"visitor_email": sess.VisitorEmail,
		},
	})

	return &model.CreateSessionResponse{
		SessionID: sess.ID,
		BotActive: botActive,
		Greeting:  greeting,
	}, nil
}

// PostMessage appends a visitor message. It never triggers AI generation:
// the client requests that separately, so the visitor's message is durable
// even if generation later fails.
func (s *SessionService) PostMessage(ctx context.Context, req *model.PostMessageRequest) (*model.PostMessageResponse, error) {
	sess, err := s.getSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.Terminal() {
		return nil, ErrSessionClosed
	}

	now := s.now()
	msg := s.newMessage(sess, model.SenderVisitor, req.Body, now)
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	// Timestamp bump is best-effort: it must not fail the stored message.
	sess.Touch(now)
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		s.logger.Warn("failed to bump session activity", zap.String("session_id", sess.ID), zap.Error(err))
	}

	metrics.MessagesTotal.WithLabelValues(sess.OwnerID, string(model.SenderVisitor)).Inc()
	s.events.Publish(events.Event{
		Type:      events.TypeMessageSent,
		OwnerID:   sess.OwnerID,
		WidgetID:  sess.WidgetID,
		SessionID: sess.ID,
		Data: map[string]any{
			"sender_type":    string(model.SenderVisitor),
			"message_length": len(req.Body),
		},
	})

	return &model.PostMessageResponse{MessageID: msg.ID, CreatedAt: msg.CreatedAt}, nil
}

// ListMessages returns messages in creation order. The cursor is the
// timestamp of the message named by afterID, not the raw id, so ordering
// stays correct regardless of id format. An unknown afterID returns the
// full transcript, matching a client recovering from a stale cursor.
func (s *SessionService) ListMessages(ctx context.Context, sessionID, afterID string, limit int) ([]model.Message, error) {
	if _, err := s.getSession(ctx, sessionID); err != nil {
		return nil, err
	}

	var after time.Time
	if afterID != "" {
		cursorMsg, err := s.store.GetMessage(ctx, afterID)
		if err == nil && cursorMsg.SessionID == sessionID {
			after = cursorMsg.CreatedAt
		}
	}

	if limit <= 0 || limit > 100 {
		limit = defaultMessagePageSize
	}

	msgs, err := s.store.ListMessagesAfter(ctx, sessionID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// DisplayConfig returns widget display settings with plan gating applied
// server-side: branding is forced on and the assistant forced off when
// the owner's plan lacks the entitlement, so the client cannot bypass
// either by ignoring flags.
func (s *SessionService) DisplayConfig(ctx context.Context, widgetID string) (*model.DisplayConfig, error) {
	cfg, err := s.store.GetWidgetConfig(ctx, widgetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load widget config: %w", err)
	}

	limits := plan.LimitsFor("")
	if profile, err := s.store.GetOwnerProfile(ctx, cfg.OwnerID); err == nil {
		limits = plan.LimitsFor(profile.Plan)
	}

	out := &model.DisplayConfig{
		Title:                cfg.Title,
		WelcomeMessage:       cfg.WelcomeMessage,
		PrimaryColor:         cfg.PrimaryColor,
		Position:             cfg.Position,
		AvatarURL:            cfg.AvatarURL,
		ShowBranding:         cfg.ShowBranding,
		PlaceholderText:      cfg.PlaceholderText,
		LauncherText:         cfg.LauncherText,
		LauncherTextEnabled:  cfg.LauncherTextEnabled,
		AssistantEnabled:     cfg.AssistantEnabled,
		BusinessHoursEnabled: cfg.BusinessHoursEnabled,
		BusinessHours:        cfg.BusinessHours,
		Timezone:             cfg.Timezone,
		OutsideHoursMessage:  cfg.OutsideHoursMessage,
		Online:               hours.IsOnline(cfg.Schedule(), cfg.Timezone, s.now()),
	}
	if !limits.RemoveBranding {
		out.ShowBranding = true
	}
	if !limits.AssistantEnabled {
		out.AssistantEnabled = false
	}
	return out, nil
}

// ListSessions returns the owner's sessions, newest first.
func (s *SessionService) ListSessions(ctx context.Context, ownerID string) ([]model.Session, error) {
	return s.store.ListSessionsByOwner(ctx, ownerID)
}

// AdminReply stores a human reply and takes over the conversation. Admin
// intervention is honored immediately: the transition runs regardless of
// whether the bot was active or a handoff was pending.
func (s *SessionService) AdminReply(ctx context.Context, ownerID, sessionID, body string) (*model.Message, error) {
	sess, err := s.getOwnedSession(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := sess.AdminReply(now); err != nil {
		return nil, ErrSessionClosed
	}

	msg := s.newMessage(sess, model.SenderAdmin, body, now)
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store admin message: %w", err)
	}

	sess.Touch(now)
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	metrics.MessagesTotal.WithLabelValues(sess.OwnerID, string(model.SenderAdmin)).Inc()
	return msg, nil
}

// Takeover explicitly moves the conversation to human ownership and
// announces the human's presence with a system notice.
func (s *SessionService) Takeover(ctx context.Context, ownerID, sessionID string) error {
	sess, err := s.getOwnedSession(ctx, ownerID, sessionID)
	if err != nil {
		return err
	}

	now := s.now()
	if err := sess.AdminReply(now); err != nil {
		return ErrSessionClosed
	}

	notice := s.newMessage(sess, model.SenderBot, "You are now chatting with a human agent.", now)
	notice.Metadata = datatypes.JSONMap{"type": "takeover"}
	if err := s.store.InsertMessage(ctx, notice); err != nil {
		return fmt.Errorf("failed to store takeover notice: %w", err)
	}

	sess.Touch(now)
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// ReactivateBot hands the conversation back to the assistant. Legal only
// while a human owns it.
func (s *SessionService) ReactivateBot(ctx context.Context, ownerID, sessionID string) error {
	sess, err := s.getOwnedSession(ctx, ownerID, sessionID)
	if err != nil {
		return err
	}

	if err := sess.ReactivateBot(s.now()); err != nil {
		return ErrIllegalTransition
	}
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// Archive closes the conversation.
func (s *SessionService) Archive(ctx context.Context, ownerID, sessionID string) error {
	sess, err := s.getOwnedSession(ctx, ownerID, sessionID)
	if err != nil {
		return err
	}

	if err := sess.Archive(s.now()); err != nil {
		return ErrIllegalTransition
	}
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// Delete removes a conversation and all its messages.
func (s *SessionService) Delete(ctx context.Context, ownerID, sessionID string) error {
	if _, err := s.getOwnedSession(ctx, ownerID, sessionID); err != nil {
		return err
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *SessionService) getSession(ctx context.Context, id string) (*model.Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, nil
}

// getOwnedSession loads a session and verifies ownership. A foreign
// session is indistinguishable from a missing one.
func (s *SessionService) getOwnedSession(ctx context.Context, ownerID, sessionID string) (*model.Session, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (s *SessionService) newMessage(sess *model.Session, sender model.Sender, body string, now time.Time) *model.Message {
	return &model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		SessionID: sess.ID,
		OwnerID:   sess.OwnerID,
		Sender:    sender,
		Body:      body,
		CreatedAt: now,
	}
}
