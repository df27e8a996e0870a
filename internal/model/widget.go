package model

import (
	"github.com/vintrastudio/chat-platform/internal/hours"
)

// WidgetConfig holds the per-widget behavior and appearance settings an
// owner controls from the admin surface.
type WidgetConfig struct {
	ID      string `json:"id" gorm:"primaryKey;type:uuid"`
	OwnerID string `json:"owner_id" gorm:"index;type:uuid"`

	// Display
	Title               string `json:"widget_title"`
	WelcomeMessage      string `json:"welcome_message"`
	PrimaryColor        string `json:"primary_color"`
	Position            string `json:"position"`
	AvatarURL           string `json:"avatar_url,omitempty"`
	ShowBranding        bool   `json:"show_branding"`
	PlaceholderText     string `json:"placeholder_text"`
	LauncherText        string `json:"launcher_text,omitempty"`
	LauncherTextEnabled bool   `json:"launcher_text_enabled"`

	// Assistant
	AssistantEnabled bool     `json:"ai_enabled"`
	SystemPrompt     string   `json:"ai_system_prompt,omitempty"`
	KnowledgeBase    string   `json:"ai_knowledge_base,omitempty"`
	Model            string   `json:"ai_model,omitempty"`
	Temperature      float64  `json:"ai_temperature"`
	MaxTokens        int      `json:"ai_max_tokens"`
	AutoGreet        bool     `json:"ai_auto_greet"`
	GreetingMessage  string   `json:"ai_greeting_message,omitempty"`
	HandoffKeywords  []string `json:"ai_handoff_keywords,omitempty" gorm:"serializer:json"`

	// Business hours
	BusinessHoursEnabled bool        `json:"business_hours_enabled"`
	BusinessHours        *hours.Week `json:"business_hours,omitempty" gorm:"serializer:json"`
	Timezone             string      `json:"business_hours_timezone,omitempty"`
	OutsideHoursMessage  string      `json:"outside_hours_message,omitempty"`
}

// Schedule returns the weekly schedule, or nil when business hours are
// disabled, which the evaluator treats as always online.
func (c *WidgetConfig) Schedule() *hours.Week {
	if !c.BusinessHoursEnabled {
		return nil
	}
	return c.BusinessHours
}

// CannedResponse is a pre-written answer the assistant may reuse.
type CannedResponse struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	WidgetID string `json:"widget_id" gorm:"index;type:uuid"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Shortcut string `json:"shortcut,omitempty"`
}

// DisplayConfig is the plan-gated view of a WidgetConfig returned to the
// anonymous widget client. Entitlements are applied server-side so the
// client cannot bypass them by ignoring flags.
type DisplayConfig struct {
	Title                string      `json:"widget_title"`
	WelcomeMessage       string      `json:"welcome_message"`
	PrimaryColor         string      `json:"primary_color"`
	Position             string      `json:"position"`
	AvatarURL            string      `json:"avatar_url,omitempty"`
	ShowBranding         bool        `json:"show_branding"`
	PlaceholderText      string      `json:"placeholder_text"`
	LauncherText         string      `json:"launcher_text,omitempty"`
	LauncherTextEnabled  bool        `json:"launcher_text_enabled"`
	AssistantEnabled     bool        `json:"ai_enabled"`
	BusinessHoursEnabled bool        `json:"business_hours_enabled"`
	BusinessHours        *hours.Week `json:"business_hours,omitempty"`
	Timezone             string      `json:"business_hours_timezone,omitempty"`
	OutsideHoursMessage  string      `json:"outside_hours_message,omitempty"`

	// Online is the server-side schedule evaluation at the time of the
	// request. The client treats it as authoritative for its initial
	// render and only re-evaluates locally as time passes.
	Online bool `json:"online"`
}
