package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// EnvAPIKey names the environment variable that overrides
// providers.llm.api_key. See [Config.ApplyEnv].
const EnvAPIKey = "TRANSCORRECT_LLM_API_KEY"

// ValidProviderNames lists the LLM backends known to this build. [Validate]
// only warns about other names, so third-party registrations keep working.
var ValidProviderNames = []string{"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"}

// ValidInsertionPolicies lists the accepted correction.insertion_policy values.
var ValidInsertionPolicies = []string{"first_attributed", "nearest_preceding"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Unknown keys are rejected. An empty document yields the zero [Config].
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides values with their environment counterparts. lookup is
// usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAPIKey); ok && v != "" {
		c.Providers.LLM.APIKey = v
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}

	// Providers
	if cfg.Providers.LLM.Name == "" && len(cfg.Providers.LLMFallbacks) > 0 {
		errs = append(errs, errors.New("providers.llm_fallbacks requires providers.llm"))
	}
	validateProviderName("providers.llm", cfg.Providers.LLM.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		prefix := fmt.Sprintf("providers.llm_fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		validateProviderName(prefix, fb.Name)
	}
	for i, e := range append([]ProviderEntry{cfg.Providers.LLM}, cfg.Providers.LLMFallbacks...) {
		if e.Timeout < 0 {
			errs = append(errs, fmt.Errorf("provider %d (%s): timeout %v must not be negative", i, e.Name, e.Timeout))
		}
	}
	cb := cfg.Providers.CircuitBreaker
	if cb.MaxFailures < 0 || cb.HalfOpenMax < 0 || cb.ResetTimeout < 0 {
		errs = append(errs, errors.New("providers.circuit_breaker values must not be negative"))
	}

	// Correction
	c := cfg.Correction
	if c.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("correction.batch_size %d must not be negative", c.BatchSize))
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("correction.max_retries %d must not be negative", *c.MaxRetries))
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		errs = append(errs, fmt.Errorf("correction.temperature %.2f is out of range [0, 2]", *c.Temperature))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("correction.max_tokens %d must not be negative", c.MaxTokens))
	}
	if c.ValidationDelay < 0 || c.ErrorDelay < 0 {
		errs = append(errs, errors.New("correction.validation_delay and correction.error_delay must not be negative"))
	}
	if c.InsertionPolicy != "" && !slices.Contains(ValidInsertionPolicies, c.InsertionPolicy) {
		errs = append(errs, fmt.Errorf("correction.insertion_policy %q is invalid; valid values: first_attributed, nearest_preceding", c.InsertionPolicy))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("correction.concurrency %d must not be negative", c.Concurrency))
	}

	if cfg.Storage.PostgresDSN == "" && cfg.Providers.LLM.Name != "" {
		slog.Debug("storage.postgres_dsn is empty; block results are kept in memory only")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not one of
// [ValidProviderNames].
func validateProviderName(field, name string) {
	if name == "" || slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"field", field,
		"name", name,
		"known", ValidProviderNames,
	)
}
