package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/transcorrect/internal/config"
	"github.com/MrWong99/transcorrect/internal/resilience"
	"github.com/MrWong99/transcorrect/pkg/provider/llm"
	"github.com/MrWong99/transcorrect/pkg/provider/llm/anyllm"
	"github.com/MrWong99/transcorrect/pkg/provider/llm/openai"
)

// newBuiltinRegistry returns a registry holding every LLM backend that ships
// with transcorrect.
func newBuiltinRegistry() *config.Registry {
	reg := config.NewRegistry()

	// openai talks to the API directly so that base_url can point at any
	// OpenAI-compatible server and timeout bounds the HTTP client.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if entry.Timeout > 0 {
			opts = append(opts, openai.WithTimeout(entry.Timeout))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining backends go through any-llm-go and share the same
	// optional APIKey + BaseURL pattern. ollama, llamacpp and llamafile are
	// local servers and usually only need BaseURL.
	for _, name := range anyllm.Backends() {
		if name == "openai" {
			continue
		}
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			p, err := anyllm.New(name, entry.Model, opts...)
			if err != nil {
				return nil, err
			}
			return withTimeout(p, entry.Timeout), nil
		})
	}
	return reg
}

// buildLLM creates the primary backend and its fallbacks, each behind a
// circuit breaker. The returned fallback is non-nil whenever the provider is.
func buildLLM(cfg *config.Config, reg *config.Registry) (*resilience.LLMFallback, error) {
	if cfg.Providers.LLM.Name == "" {
		return nil, fmt.Errorf("no LLM configured; set providers.llm in the configuration file")
	}

	cb := cfg.Providers.CircuitBreaker
	fbCfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cb.MaxFailures,
			ResetTimeout: cb.ResetTimeout,
			HalfOpenMax:  cb.HalfOpenMax,
		},
	}

	primary, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, err
	}
	fb := resilience.NewLLMFallback(primary, entryLabel(cfg.Providers.LLM), fbCfg)
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name, "model", cfg.Providers.LLM.Model)

	for _, entry := range cfg.Providers.LLMFallbacks {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("fallback: %w", err)
		}
		fb.AddFallback(entryLabel(entry), p)
		slog.Info("provider created", "kind", "llm_fallback", "name", entry.Name, "model", entry.Model)
	}
	return fb, nil
}

func entryLabel(e config.ProviderEntry) string {
	if e.Model == "" {
		return e.Name
	}
	return e.Name + "/" + e.Model
}

// timeoutProvider bounds every Complete call of an [llm.Provider] whose SDK
// has no timeout setting of its own.
type timeoutProvider struct {
	llm.Provider
	timeout time.Duration
}

func withTimeout(p llm.Provider, d time.Duration) llm.Provider {
	if d <= 0 {
		return p
	}
	return &timeoutProvider{Provider: p, timeout: d}
}

func (p *timeoutProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.Provider.Complete(ctx, req)
}

// optString returns opts[key] when it is a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}
