// Package llm provides completion-service clients, model alias resolution,
// and the ordered fallback used by the assistant pipeline.
package llm

import (
	"context"
)

// ChatMessage is one role-tagged entry of a completion transcript.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// CompletionRequest is a single completion attempt against one model.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// CompletionResponse is the provider-agnostic completion result.
type CompletionResponse struct {
	Content   string
	Model     string
	TokensIn  int
	TokensOut int
	LatencyMs int64
}

// Client is the interface for a single completion provider.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Completer produces a completion for a preferred model, transparently
// falling back through alternate candidates. Implemented by Router.
type Completer interface {
	Complete(ctx context.Context, preferredModel string, req *CompletionRequest) (*CompletionResponse, error)
}

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)
