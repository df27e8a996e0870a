// Package store provides durable persistence for sessions, messages,
// owner profiles, and widget configuration.
//
// All conversation state lives here: the API is request-per-operation with
// no session affinity, so nothing may be kept in process memory between
// requests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/vintrastudio/chat-platform/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the conversation store contract. Session updates are absolute
// writes of the mutable fields, not deltas: under concurrent writers the
// last write wins, which is the documented conflict policy.
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	UpdateSession(ctx context.Context, s *model.Session) error
	// DeleteSession removes a session and cascades to its messages.
	DeleteSession(ctx context.Context, id string) error
	ListSessionsByOwner(ctx context.Context, ownerID string) ([]model.Session, error)

	// Messages (append-only, ordered by creation time)
	InsertMessage(ctx context.Context, m *model.Message) error
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	// ListMessagesAfter returns messages created strictly after the given
	// instant, oldest first. A zero time returns from the beginning.
	ListMessagesAfter(ctx context.Context, sessionID string, after time.Time, limit int) ([]model.Message, error)
	// ListRecentMessages returns the newest limit messages, oldest first.
	ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]model.Message, error)

	// Owner profiles
	GetOwnerProfile(ctx context.Context, ownerID string) (*model.OwnerProfile, error)
	PutOwnerProfile(ctx context.Context, p *model.OwnerProfile) error
	// UpdateOwnerUsage writes the conversation counter and its reset
	// timestamp in one statement so a concurrent reader never observes
	// the pair half-applied.
	UpdateOwnerUsage(ctx context.Context, ownerID string, conversations int, resetAt time.Time) error

	// Widget configuration
	GetWidgetConfig(ctx context.Context, widgetID string) (*model.WidgetConfig, error)
	PutWidgetConfig(ctx context.Context, c *model.WidgetConfig) error
	ListCannedResponses(ctx context.Context, widgetID string) ([]model.CannedResponse, error)
	PutCannedResponse(ctx context.Context, r *model.CannedResponse) error
}
