// Package events publishes analytics events to NATS JetStream.
//
// Publishing is fire-and-forget: analytics must never block or fail the
// user-facing response path, so every failure here is logged and swallowed.
package events

import (
	"time"
)

// Event types emitted by the platform.
const (
	TypeSessionStarted   = "session_started"
	TypeMessageSent      = "message_sent"
	TypeAIResponse       = "ai_response"
	TypeHandoffRequested = "handoff_requested"
)

// Event is one analytics record.
type Event struct {
	Type      string         `json:"event_type"`
	OwnerID   string         `json:"owner_id"`
	WidgetID  string         `json:"widget_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Data      map[string]any `json:"event_data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Publisher emits analytics events. Implementations must not block the
// caller on broker availability and must swallow publish failures.
type Publisher interface {
	Publish(e Event)
	Close()
}

// Noop discards all events. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(Event) {}
func (Noop) Close()        {}
