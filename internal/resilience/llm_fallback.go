package resilience

import (
	"context"

	"github.com/MrWong99/transcorrect/pkg/provider/llm"
)

// LLMFallback is an [llm.Provider] that fails over between several LLM
// backends, each behind its own circuit breaker.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] preferring primary.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers a backend tried after the ones already added.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// States reports the breaker state of every backend in order.
func (f *LLMFallback) States() []EntryState { return f.group.States() }

// Complete sends req to the first backend that answers.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// CountTokens asks the first backend that answers.
func (f *LLMFallback) CountTokens(messages []llm.Message) (int, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (int, error) {
		return p.CountTokens(messages)
	})
}

// Capabilities returns the limits every backend can honour: the smallest
// known context window and output limit. A limit no backend reports stays 0.
func (f *LLMFallback) Capabilities() llm.ModelCapabilities {
	var out llm.ModelCapabilities
	for _, e := range f.group.entries {
		c := e.value.Capabilities()
		out.ContextWindow = minKnown(out.ContextWindow, c.ContextWindow)
		out.MaxOutputTokens = minKnown(out.MaxOutputTokens, c.MaxOutputTokens)
	}
	return out
}

// minKnown returns the smaller of a and b, treating 0 as unknown.
func minKnown(a, b int) int {
	switch {
	case a <= 0:
		return b
	case b <= 0:
		return a
	default:
		return min(a, b)
	}
}
