// Package plan defines subscription tiers and their entitlements.
package plan

// ID identifies a subscription tier.
type ID string

const (
	Starter  ID = "starter"
	Pro      ID = "pro"
	Business ID = "business"
)

// Limits are the entitlements of one tier.
type Limits struct {
	MaxWidgets               int
	MaxConversationsPerMonth int
	ChatHistoryDays          int // 0 = unlimited
	AssistantEnabled         bool
	CannedResponses          bool
	AnalyticsEnabled         bool
	FullCustomization        bool
	RemoveBranding           bool
	APIAccess                bool
}

var limits = map[ID]Limits{
	Starter: {
		MaxWidgets:               1,
		MaxConversationsPerMonth: 100,
		ChatHistoryDays:          7,
	},
	Pro: {
		MaxWidgets:               5,
		MaxConversationsPerMonth: 2000,
		AssistantEnabled:         true,
		CannedResponses:          true,
		AnalyticsEnabled:         true,
		FullCustomization:        true,
	},
	Business: {
		MaxWidgets:               -1, // unlimited
		MaxConversationsPerMonth: 10000,
		AssistantEnabled:         true,
		CannedResponses:          true,
		AnalyticsEnabled:         true,
		FullCustomization:        true,
		RemoveBranding:           true,
		APIAccess:                true,
	},
}

// LimitsFor returns the entitlements for a tier. Unknown tiers fall back to
// starter, the free plan.
func LimitsFor(id string) Limits {
	if l, ok := limits[ID(id)]; ok {
		return l
	}
	return limits[Starter]
}

// Upgrade returns the next tier up, or empty when already at the top.
func Upgrade(current ID) ID {
	switch current {
	case Starter:
		return Pro
	case Pro:
		return Business
	default:
		return ""
	}
}
