package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vintrastudio/chat-platform/internal/model"
)

// Postgres is the gorm-backed Store used in production.
type Postgres struct {
	db *gorm.DB
}

// OpenPostgres connects to the database and migrates the schema.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&model.Session{},
		&model.Message{},
		&model.OwnerProfile{},
		&model.WidgetConfig{},
		&model.CannedResponse{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Postgres{db: db}, nil
}

func (p *Postgres) CreateSession(ctx context.Context, s *model.Session) error {
	return p.db.WithContext(ctx).Create(s).Error
}

func (p *Postgres) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	err := p.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *Postgres) UpdateSession(ctx context.Context, s *model.Session) error {
	// Absolute write of the whole row: last write wins on status and
	// is_bot_active, matching the documented race policy.
	res := p.db.WithContext(ctx).Model(&model.Session{}).Where("id = ?", s.ID).Updates(map[string]any{
		"status":            s.Status,
		"is_bot_active":     s.IsBotActive,
		"bot_message_count": s.BotMessageCount,
		"handoff_at":        s.HandoffAt,
		"updated_at":        s.UpdatedAt,
		"last_message_at":   s.LastMessageAt,
		"ended_at":          s.EndedAt,
		"metadata":          s.Metadata,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteSession(ctx context.Context, id string) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Session{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (p *Postgres) ListSessionsByOwner(ctx context.Context, ownerID string) ([]model.Session, error) {
	var out []model.Session
	err := p.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("started_at DESC").
		Find(&out).Error
	return out, err
}

func (p *Postgres) InsertMessage(ctx context.Context, m *model.Message) error {
	return p.db.WithContext(ctx).Create(m).Error
}

func (p *Postgres) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	var m model.Message
	err := p.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *Postgres) ListMessagesAfter(ctx context.Context, sessionID string, after time.Time, limit int) ([]model.Message, error) {
	q := p.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC")
	if !after.IsZero() {
		q = q.Where("created_at > ?", after)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []model.Message
	err := q.Find(&out).Error
	return out, err
}

func (p *Postgres) ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	var out []model.Message
	q := p.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	// Reverse to oldest-first for transcript assembly.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (p *Postgres) GetOwnerProfile(ctx context.Context, ownerID string) (*model.OwnerProfile, error) {
	var profile model.OwnerProfile
	err := p.db.WithContext(ctx).First(&profile, "id = ?", ownerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (p *Postgres) PutOwnerProfile(ctx context.Context, profile *model.OwnerProfile) error {
	return p.db.WithContext(ctx).Save(profile).Error
}

func (p *Postgres) UpdateOwnerUsage(ctx context.Context, ownerID string, conversations int, resetAt time.Time) error {
	// Counter and reset timestamp move in a single UPDATE so a concurrent
	// reader never sees one without the other.
	res := p.db.WithContext(ctx).Model(&model.OwnerProfile{}).Where("id = ?", ownerID).Updates(map[string]any{
		"conversations_this_month": conversations,
		"conversations_reset_at":   resetAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetWidgetConfig(ctx context.Context, widgetID string) (*model.WidgetConfig, error) {
	var c model.WidgetConfig
	err := p.db.WithContext(ctx).First(&c, "id = ?", widgetID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (p *Postgres) PutWidgetConfig(ctx context.Context, c *model.WidgetConfig) error {
	return p.db.WithContext(ctx).Save(c).Error
}

func (p *Postgres) ListCannedResponses(ctx context.Context, widgetID string) ([]model.CannedResponse, error) {
	var out []model.CannedResponse
	err := p.db.WithContext(ctx).Where("widget_id = ?", widgetID).Order("title ASC").Find(&out).Error
	return out, err
}

func (p *Postgres) PutCannedResponse(ctx context.Context, r *model.CannedResponse) error {
	return p.db.WithContext(ctx).Save(r).Error
}

var _ Store = (*Postgres)(nil)
