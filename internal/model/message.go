package model

import (
	"time"

	"gorm.io/datatypes"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderVisitor Sender = "visitor"
	SenderAdmin   Sender = "admin"
	SenderBot     Sender = "bot"
)

// Message is one entry in a session's append-only transcript. Messages are
// immutable once written.
type Message struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	SessionID string `json:"session_id" gorm:"index;type:uuid"`
	OwnerID   string `json:"owner_id" gorm:"index;type:uuid"`

	Sender Sender `json:"sender_type"`
	Body   string `json:"content"`

	IsRead        bool `json:"is_read"`
	IsAIGenerated bool `json:"is_ai_generated"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`

	// Metadata tags system events ("handoff", "greeting", "takeover") and
	// records which model answered plus token usage on AI replies.
	Metadata datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
}

// CreateSessionRequest is the widget request to start a conversation.
type CreateSessionRequest struct {
	WidgetID     string `json:"widget_id"`
	VisitorName  string `json:"visitor_name,omitempty"`
	VisitorEmail string `json:"visitor_email,omitempty"`
}

// CreateSessionResponse is returned after a conversation is started.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	BotActive bool   `json:"bot_active"`
	Greeting  string `json:"greeting,omitempty"`
}

// PostMessageRequest is the widget request to append a message.
type PostMessageRequest struct {
	SessionID string `json:"session_id"`
	Body      string `json:"content"`
	Sender    Sender `json:"sender_type,omitempty"`
}

// PostMessageResponse acknowledges a stored message.
type PostMessageResponse struct {
	MessageID string    `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerateReplyRequest asks for one automated turn for a session.
type GenerateReplyRequest struct {
	SessionID string `json:"session_id"`
	Body      string `json:"content"`
}

// GenerateReplyResponse carries the outcome of an automated turn.
type GenerateReplyResponse struct {
	Reply     string `json:"reply,omitempty"`
	Handoff   bool   `json:"handoff"`
	BotActive bool   `json:"bot_active"`
}

// AdminReplyRequest is the admin request to answer a conversation.
type AdminReplyRequest struct {
	Body string `json:"content"`
}
