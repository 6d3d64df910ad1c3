package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/transcorrect/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server:     config.ServerConfig{LogLevel: config.LogInfo},
		Providers:  config.ProvidersConfig{LLM: config.ProviderEntry{Name: "openai", Model: "gpt-4o"}},
		Correction: config.CorrectionConfig{BatchSize: 20},
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mutate      func(*config.Config)
		wantLevel   config.LogLevel
		wantRestart []string
	}{
		{name: "no changes", mutate: func(*config.Config) {}},
		{
			name:      "log level only",
			mutate:    func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			wantLevel: config.LogDebug,
		},
		{
			name:        "log format needs restart",
			mutate:      func(c *config.Config) { c.Server.LogFormat = config.LogFormatJSON },
			wantRestart: []string{"server"},
		},
		{
			name: "model and batch size",
			mutate: func(c *config.Config) {
				c.Providers.LLM.Model = "gpt-4o-mini"
				c.Correction.BatchSize = 10
			},
			wantRestart: []string{"providers", "correction"},
		},
		{
			name: "everything",
			mutate: func(c *config.Config) {
				c.Server.LogLevel = config.LogWarn
				c.Providers.LLMFallbacks = []config.ProviderEntry{{Name: "groq"}}
				c.Storage.PostgresDSN = "postgres://db"
			},
			wantLevel:   config.LogWarn,
			wantRestart: []string{"providers", "storage"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			old, updated := baseConfig(), baseConfig()
			tc.mutate(updated)

			d := config.Diff(old, updated)
			if d.LogLevelChanged != (tc.wantLevel != "") || d.NewLogLevel != tc.wantLevel {
				t.Errorf("log level diff = %v %q, want %q", d.LogLevelChanged, d.NewLogLevel, tc.wantLevel)
			}
			if !slices.Equal(d.RestartRequired, tc.wantRestart) {
				t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, tc.wantRestart)
			}
			if d.Empty() != (tc.wantLevel == "" && len(tc.wantRestart) == 0) {
				t.Errorf("Empty = %v", d.Empty())
			}
		})
	}
}
