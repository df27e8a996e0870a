package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vintrastudio/chat-platform/internal/model"
)

// Memory is a mutex-guarded in-memory Store. It backs tests and local
// development runs without a database.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	messages map[string][]model.Message // keyed by session id
	owners   map[string]model.OwnerProfile
	widgets  map[string]model.WidgetConfig
	canned   map[string][]model.CannedResponse // keyed by widget id
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]model.Session),
		messages: make(map[string][]model.Message),
		owners:   make(map[string]model.OwnerProfile),
		widgets:  make(map[string]model.WidgetConfig),
		canned:   make(map[string][]model.CannedResponse),
	}
}

func (m *Memory) CreateSession(ctx context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *Memory) GetSession(ctx context.Context, id string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := s
	return &out, nil
}

func (m *Memory) UpdateSession(ctx context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return ErrNotFound
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *Memory) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	delete(m.messages, id)
	return nil
}

func (m *Memory) ListSessionsByOwner(ctx context.Context, ownerID string) ([]model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Session
	for _, s := range m.sessions {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (m *Memory) InsertMessage(ctx context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], *msg)
	return nil
}

func (m *Memory) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, msgs := range m.messages {
		for _, msg := range msgs {
			if msg.ID == id {
				out := msg
				return &out, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListMessagesAfter(ctx context.Context, sessionID string, after time.Time, limit int) ([]model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Message
	for _, msg := range m.messages[sessionID] {
		if after.IsZero() || msg.CreatedAt.After(after) {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := append([]model.Message(nil), m.messages[sessionID]...)
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (m *Memory) GetOwnerProfile(ctx context.Context, ownerID string) (*model.OwnerProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.owners[ownerID]
	if !ok {
		return nil, ErrNotFound
	}
	out := p
	return &out, nil
}

func (m *Memory) PutOwnerProfile(ctx context.Context, p *model.OwnerProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[p.ID] = *p
	return nil
}

func (m *Memory) UpdateOwnerUsage(ctx context.Context, ownerID string, conversations int, resetAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.owners[ownerID]
	if !ok {
		return ErrNotFound
	}
	p.ConversationsThisMonth = conversations
	p.ConversationsResetAt = resetAt
	m.owners[ownerID] = p
	return nil
}

func (m *Memory) GetWidgetConfig(ctx context.Context, widgetID string) (*model.WidgetConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.widgets[widgetID]
	if !ok {
		return nil, ErrNotFound
	}
	out := c
	return &out, nil
}

func (m *Memory) PutWidgetConfig(ctx context.Context, c *model.WidgetConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.widgets[c.ID] = *c
	return nil
}

func (m *Memory) ListCannedResponses(ctx context.Context, widgetID string) ([]model.CannedResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.CannedResponse(nil), m.canned[widgetID]...), nil
}

func (m *Memory) PutCannedResponse(ctx context.Context, r *model.CannedResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canned[r.WidgetID] = append(m.canned[r.WidgetID], *r)
	return nil
}

var _ Store = (*Memory)(nil)
