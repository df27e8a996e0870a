package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vintrastudio/chat-platform/pkg/logger"
	"github.com/vintrastudio/chat-platform/pkg/metrics"
)

// ModelRef is a resolved model identifier. Known refs came through the
// alias table; passthrough refs are owner-supplied ids forwarded unchanged
// with a provider inferred from their shape.
type ModelRef struct {
	Provider string
	ID       string
	Known    bool
}

func (r ModelRef) String() string {
	return r.Provider + "/" + r.ID
}

// aliases is the versioned lookup table from owner-facing model names to
// concrete provider model strings. Providers rename models over time; only
// this table needs updating when they do.
var aliases = map[string]ModelRef{
	"gpt-4o":                   {Provider: ProviderOpenAI, ID: "gpt-4o", Known: true},
	"gpt-4o-mini":              {Provider: ProviderOpenAI, ID: "gpt-4o-mini", Known: true},
	"gpt-4.1-mini":             {Provider: ProviderOpenAI, ID: "gpt-4.1-mini", Known: true},
	"gpt-3.5-turbo":            {Provider: ProviderOpenAI, ID: "gpt-3.5-turbo", Known: true},
	"claude-3.5-sonnet":        {Provider: ProviderAnthropic, ID: "claude-3-5-sonnet-20241022", Known: true},
	"claude-3-5-sonnet-latest": {Provider: ProviderAnthropic, ID: "claude-3-5-sonnet-20241022", Known: true},
	"claude-3.5-haiku":         {Provider: ProviderAnthropic, ID: "claude-3-5-haiku-20241022", Known: true},
	"claude-3-5-haiku-latest":  {Provider: ProviderAnthropic, ID: "claude-3-5-haiku-20241022", Known: true},
}

// DefaultModel is used when the owner has not picked one.
const DefaultModel = "gpt-4o-mini"

// defaultFallbacks is the fixed ordered set of known-good alternates tried
// after the owner's preferred model.
var defaultFallbacks = []string{
	"gpt-4o-mini",
	"claude-3-5-haiku-latest",
	"gpt-3.5-turbo",
}

// Resolve maps an owner-facing model name to a ModelRef. Unknown names
// pass through unchanged so new provider models work without a deploy.
func Resolve(name string) ModelRef {
	if name == "" {
		name = DefaultModel
	}
	if ref, ok := aliases[name]; ok {
		return ref
	}
	provider := ProviderOpenAI
	if len(name) >= 6 && name[:6] == "claude" {
		provider = ProviderAnthropic
	}
	return ModelRef{Provider: provider, ID: name}
}

// Router tries candidate models strictly in order against the configured
// provider clients. No parallel speculative calls: fallback is for
// resilience, not latency, and parallel calls would multiply cost.
type Router struct {
	clients map[string]Client
	logger  *logger.Logger
}

// NewRouter creates a router over the available provider clients, keyed by
// provider name.
func NewRouter(clients map[string]Client, log *logger.Logger) *Router {
	return &Router{clients: clients, logger: log}
}

// Candidates builds the deduplicated fallback chain: the preferred model
// first, then the fixed alternates. Candidates whose provider has no
// configured client are dropped.
func (r *Router) Candidates(preferred string) []ModelRef {
	var out []ModelRef
	seen := make(map[string]bool)

	for _, name := range append([]string{preferred}, defaultFallbacks...) {
		if name == "" {
			continue
		}
		ref := Resolve(name)
		if seen[ref.String()] {
			continue
		}
		seen[ref.String()] = true
		if _, ok := r.clients[ref.Provider]; !ok {
			continue
		}
		out = append(out, ref)
	}
	return out
}

// Complete attempts the candidate chain in order and returns the first
// success. Individual candidate failures are logged and swallowed; only
// exhaustion of the whole chain surfaces an error, classified from the
// last failure.
func (r *Router) Complete(ctx context.Context, preferredModel string, req *CompletionRequest) (*CompletionResponse, error) {
	candidates := r.Candidates(preferredModel)
	if len(candidates) == 0 {
		return nil, &Error{Kind: KindConfig, Err: fmt.Errorf("no completion provider configured")}
	}

	var lastErr error
	var lastRef ModelRef
	for _, ref := range candidates {
		if err := ctx.Err(); err != nil {
			lastErr, lastRef = err, ref
			break
		}

		client := r.clients[ref.Provider]
		attempt := *req
		attempt.Model = ref.ID

		resp, err := client.Complete(ctx, &attempt)
		if err != nil {
			r.logger.Warn("completion candidate failed",
				zap.String("model", ref.String()),
				zap.Error(err),
			)
			metrics.CompletionFallbacksTotal.WithLabelValues(ref.String()).Inc()
			metrics.CompletionDuration.WithLabelValues(ref.String(), "error").Observe(0)
			lastErr, lastRef = err, ref
			continue
		}

		if resp.Model == "" {
			resp.Model = ref.ID
		}
		metrics.RecordCompletion(ref.String(), "success", float64(resp.LatencyMs)/1000.0, resp.TokensIn, resp.TokensOut)
		return resp, nil
	}

	return nil, &Error{Kind: Classify(lastErr), Model: lastRef.String(), Err: lastErr}
}

var _ Completer = (*Router)(nil)
