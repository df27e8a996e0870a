// Package model defines data structures for the chat platform.
package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// Status is the lifecycle status of a chat session.
type Status string

const (
	StatusActive          Status = "active"
	StatusWaitingForHuman Status = "waiting_for_human"
	StatusClosed          Status = "closed"
	StatusArchived        Status = "archived"
)

// ErrIllegalTransition is returned when a session transition is not legal
// from the current state.
var ErrIllegalTransition = errors.New("illegal session transition")

// Session represents one continuous visitor conversation with a widget.
//
// Status and IsBotActive together encode who owns the conversation:
// active+bot is the automated assistant, active without bot is a human,
// waiting_for_human is a pending handoff. The invariant is that a session
// waiting for a human never has the bot active.
type Session struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	OwnerID  string `json:"owner_id" gorm:"index;type:uuid"`
	WidgetID string `json:"widget_id" gorm:"index;type:uuid"`

	VisitorName  string `json:"visitor_name"`
	VisitorEmail string `json:"visitor_email,omitempty"`

	Status          Status     `json:"status"`
	IsBotActive     bool       `json:"is_bot_active"`
	BotMessageCount int        `json:"bot_message_count"`
	HandoffAt       *time.Time `json:"handoff_requested_at,omitempty"`

	StartedAt     time.Time  `json:"started_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`

	Metadata datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
}

// NewSession creates a session in its initial state. When the bot is not
// eligible the conversation starts human-owned with no greeting.
func NewSession(ownerID, widgetID, visitorName, visitorEmail string, botActive bool, now time.Time) *Session {
	if visitorName == "" {
		visitorName = "Visitor"
	}
	return &Session{
		OwnerID:      ownerID,
		WidgetID:     widgetID,
		VisitorName:  visitorName,
		VisitorEmail: visitorEmail,
		Status:       StatusActive,
		IsBotActive:  botActive,
		StartedAt:    now,
		UpdatedAt:    now,
	}
}

// Terminal reports whether the session accepts no further activity.
func (s *Session) Terminal() bool {
	return s.Status == StatusClosed || s.Status == StatusArchived
}

// BotOwned reports whether the automated assistant currently owns the
// conversation.
func (s *Session) BotOwned() bool {
	return s.Status == StatusActive && s.IsBotActive
}

// Handoff moves the session to waiting_for_human and stops bot
// participation. Idempotent: repeating it keeps the same absolute state.
func (s *Session) Handoff(now time.Time) error {
	if s.Terminal() {
		return ErrIllegalTransition
	}
	s.Status = StatusWaitingForHuman
	s.IsBotActive = false
	s.HandoffAt = &now
	s.UpdatedAt = now
	return nil
}

// AdminReply records that a human wrote into the conversation. Any admin
// message while the bot is active or a handoff is pending takes over the
// conversation immediately, with no confirmation step.
func (s *Session) AdminReply(now time.Time) error {
	if s.Terminal() {
		return ErrIllegalTransition
	}
	s.Status = StatusActive
	s.IsBotActive = false
	s.UpdatedAt = now
	return nil
}

// ReactivateBot hands the conversation back to the assistant. Legal only
// while a human owns it.
func (s *Session) ReactivateBot(now time.Time) error {
	if s.Status != StatusActive || s.IsBotActive {
		return ErrIllegalTransition
	}
	s.IsBotActive = true
	s.UpdatedAt = now
	return nil
}

// Archive ends the session. Legal from any non-terminal state.
func (s *Session) Archive(now time.Time) error {
	if s.Terminal() {
		return ErrIllegalTransition
	}
	s.Status = StatusArchived
	s.IsBotActive = false
	s.EndedAt = &now
	s.UpdatedAt = now
	return nil
}

// Touch bumps the activity timestamps after a message arrives.
func (s *Session) Touch(now time.Time) {
	s.LastMessageAt = &now
	s.UpdatedAt = now
}
