package model

import "time"

// OwnerProfile is the account operating one or more widgets, including the
// monthly conversation quota state.
type OwnerProfile struct {
	ID                 string `json:"id" gorm:"primaryKey;type:uuid"`
	Plan               string `json:"plan"`
	SubscriptionStatus string `json:"subscription_status,omitempty"`

	// ConversationsThisMonth counts sessions started since ResetAt. The
	// counter logically resets when the calendar month rolls over; the
	// reset is applied lazily on read and persisted on the next write.
	ConversationsThisMonth int       `json:"conversations_this_month"`
	ConversationsResetAt   time.Time `json:"conversations_reset_at"`
}
