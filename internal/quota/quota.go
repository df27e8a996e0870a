// Package quota enforces per-owner monthly conversation ceilings.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/vintrastudio/chat-platform/internal/model"
	"github.com/vintrastudio/chat-platform/internal/plan"
	"github.com/vintrastudio/chat-platform/internal/store"
)

// Tracker maintains the per-owner monthly conversation counter with a
// lazy calendar-based reset: the stored counter is treated as zero once
// the calendar month has rolled over, and the reset is persisted on the
// next write.
type Tracker struct {
	store store.Store
}

// NewTracker creates a quota tracker over the given store.
func NewTracker(st store.Store) *Tracker {
	return &Tracker{store: st}
}

// monthRolledOver reports whether now is in a later calendar month than
// resetAt. Comparing year/month pairs means the counter resets at most
// once per observed request, never repeatedly within a month.
func monthRolledOver(resetAt, now time.Time) bool {
	ry, rm, _ := resetAt.UTC().Date()
	ny, nm, _ := now.UTC().Date()
	return ny > ry || (ny == ry && nm > rm)
}

// EffectiveCount returns the counter after applying the lazy reset.
func EffectiveCount(p *model.OwnerProfile, now time.Time) int {
	if monthRolledOver(p.ConversationsResetAt, now) {
		return 0
	}
	return p.ConversationsThisMonth
}

// CanStartSession reports whether the owner may start another conversation
// this month, returning the profile for reuse by the caller.
func (t *Tracker) CanStartSession(ctx context.Context, ownerID string, now time.Time) (bool, *model.OwnerProfile, error) {
	profile, err := t.store.GetOwnerProfile(ctx, ownerID)
	if err != nil {
		return false, nil, fmt.Errorf("failed to load owner profile: %w", err)
	}

	limits := plan.LimitsFor(profile.Plan)
	return EffectiveCount(profile, now) < limits.MaxConversationsPerMonth, profile, nil
}

// RecordSessionStart increments the (possibly just-reset) counter. Counter
// and reset timestamp are written in one store call so a concurrent reader
// never observes the pair half-applied.
func (t *Tracker) RecordSessionStart(ctx context.Context, profile *model.OwnerProfile, now time.Time) error {
	count := EffectiveCount(profile, now) + 1
	resetAt := profile.ConversationsResetAt
	if monthRolledOver(resetAt, now) {
		resetAt = now
	}

	if err := t.store.UpdateOwnerUsage(ctx, profile.ID, count, resetAt); err != nil {
		return fmt.Errorf("failed to record session start: %w", err)
	}
	profile.ConversationsThisMonth = count
	profile.ConversationsResetAt = resetAt
	return nil
}
