package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/MrWong99/transcorrect/internal/config"
	"github.com/MrWong99/transcorrect/internal/correction"
	"github.com/MrWong99/transcorrect/internal/document"
	"github.com/MrWong99/transcorrect/internal/resilience"
	"github.com/MrWong99/transcorrect/pkg/provider/llm"
	llmmock "github.com/MrWong99/transcorrect/pkg/provider/llm/mock"
)

const testDoc = `{"type":"doc","content":[
  {"type":"speaker","attrs":{"data-name":"Mari"},"content":[{"type":"paragraph","content":[
    {"type":"wordNode","attrs":{"text":"tere","start":0.0,"end":0.4}},
    {"type":"text","text":" "},
    {"type":"wordNode","attrs":{"text":"ohtust","start":0.5,"end":1.0}}
  ]}]},
  {"type":"speaker","attrs":{"data-name":"Jaan"},"content":[{"type":"paragraph","content":[
    {"type":"wordNode","attrs":{"text":"head","start":1.2,"end":1.5}},
    {"type":"text","text":" "},
    {"type":"wordNode","attrs":{"text":"aega","start":1.6,"end":2.0}}
  ]}]}
]}`

const testConfig = `
server:
  log_level: debug
providers:
  llm:
    name: mock
    model: echo
correction:
  batch_size: 10
  max_retries: 0
  validation_delay: 1ms
  error_delay: 1ms
`

// echoRegistry registers a "mock" backend that returns the block text with
// "ohtust" spelled correctly.
func echoRegistry(p *llmmock.Provider) *config.Registry {
	p.CompleteFunc = func(_ int, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		text := req.Messages[len(req.Messages)-1].Content
		return &llm.CompletionResponse{Content: strings.ReplaceAll(text, "ohtust", "õhtust")}, nil
	}
	reg := config.NewRegistry()
	reg.RegisterLLM("mock", func(config.ProviderEntry) (llm.Provider, error) { return p, nil })
	return reg
}

// execute runs one CLI invocation and returns its standard output.
func execute(t *testing.T, reg *config.Registry, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(reg)
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	if err != nil {
		t.Logf("stderr:\n%s", stderr.String())
	}
	return stdout.String(), err
}

// The CLI installs global telemetry providers, so these tests do not run in
// parallel.
func restoreOTel(t *testing.T) {
	t.Helper()
	mp, tp := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(mp)
		otel.SetTracerProvider(tp)
	})
}

func TestCLI_CorrectApplyStats(t *testing.T) {
	restoreOTel(t)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "transcorrect.yaml")
	docPath := filepath.Join(dir, "episode.json")
	outDir := filepath.Join(dir, "out")
	for path, data := range map[string]string{cfgPath: testConfig, docPath: testDoc} {
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	model := &llmmock.Provider{}
	reg := echoRegistry(model)

	out, err := execute(t, reg, "correct", "-c", cfgPath, "--output-dir", outDir, "--results-dir", outDir, docPath)
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if !strings.Contains(out, "episode") || !strings.Contains(out, "completed") || !strings.Contains(out, "1/1") {
		t.Errorf("correct summary =\n%s", out)
	}
	if model.Calls() != 1 {
		t.Errorf("model calls = %d, want 1", model.Calls())
	}

	corrected, err := readDocument(filepath.Join(outDir, "episode.corrected.json"))
	if err != nil {
		t.Fatalf("read corrected document: %v", err)
	}
	if got, want := document.PlainText(corrected), "Mari: tere õhtust\n\nJaan: head aega"; got != want {
		t.Errorf("corrected text = %q, want %q", got, want)
	}

	resultsPath := filepath.Join(outDir, "episode.results.json")
	res, err := readResults(resultsPath)
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	if res.FileID != "episode" || res.Status != correction.StatusCompleted || len(res.Blocks) != 1 {
		t.Errorf("results = %+v", res)
	}

	applied := filepath.Join(dir, "applied.json")
	if _, err := execute(t, reg, "apply", "-c", cfgPath, "--results", resultsPath, "-o", applied, docPath); err != nil {
		t.Fatalf("apply: %v", err)
	}
	again, err := readDocument(applied)
	if err != nil {
		t.Fatal(err)
	}
	if document.PlainText(again) != document.PlainText(corrected) {
		t.Errorf("apply = %q, want %q", document.PlainText(again), document.PlainText(corrected))
	}

	out, err = execute(t, reg, "stats", "-c", cfgPath, "--results", resultsPath, docPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"words:        4", "substituted:  1 (1 sound alike)", "chars edited: 1", "change rate:  25.00%"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, reg, "status", "-c", cfgPath, "--results", resultsPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "file episode: completed, 1/1 blocks completed") {
		t.Errorf("status output =\n%s", out)
	}
}

func TestCLI_Errors(t *testing.T) {
	restoreOTel(t)

	dir := t.TempDir()
	docPath := filepath.Join(dir, "a.json")
	if err := os.WriteFile(docPath, []byte(testDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	emptyCfg := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(emptyCfg, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	reg := echoRegistry(&llmmock.Provider{})

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no llm configured", []string{"correct", "-c", emptyCfg, docPath}, "no LLM configured"},
		{"file id with several inputs", []string{"correct", "-c", emptyCfg, "--file-id", "x", docPath, docPath}, "--file-id needs exactly one input"},
		{"missing config", []string{"status", "-c", filepath.Join(dir, "nope.yaml"), "--file-id", "a"}, "not found"},
		{"bad log level", []string{"status", "-c", emptyCfg, "--log-level", "loud", "--file-id", "a"}, "log_level"},
		{"status without store", []string{"status", "-c", emptyCfg, "--file-id", "a"}, "postgres_dsn is not configured"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, reg, tc.args...)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestOrchestratorOptions(t *testing.T) {
	t.Parallel()

	retries := 0
	temp := 0.0
	tests := []struct {
		name    string
		cc      config.CorrectionConfig
		wantN   int
		wantErr bool
	}{
		{"defaults", config.CorrectionConfig{}, 3, false},
		{"explicit zero retries and temperature", config.CorrectionConfig{MaxRetries: &retries, Temperature: &temp}, 5, false},
		{"delays", config.CorrectionConfig{ValidationDelay: time.Millisecond, ErrorDelay: time.Second}, 5, false},
		{"bad policy", config.CorrectionConfig{InsertionPolicy: "random"}, 0, true},
		{"missing prompt file", config.CorrectionConfig{SystemPromptFile: filepath.Join(t.TempDir(), "none.txt")}, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			opts, err := orchestratorOptions(tc.cc)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if len(opts) != tc.wantN {
				t.Errorf("options = %d, want %d", len(opts), tc.wantN)
			}
		})
	}
}

func TestLLMReady(t *testing.T) {
	t.Parallel()

	down := &llmmock.Provider{CompleteErr: errors.New("503")}
	f := resilience.NewLLMFallback(down, "primary", resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 1},
	})
	if err := llmReady(f); err != nil {
		t.Fatalf("llmReady before any call = %v", err)
	}
	if _, err := f.Complete(context.Background(), llm.CompletionRequest{}); err == nil {
		t.Fatal("Complete succeeded with a failing backend")
	}
	if err := llmReady(f); err == nil {
		t.Error("llmReady = nil with the only breaker open")
	}
}

func TestBuiltinRegistry_CoversKnownNames(t *testing.T) {
	t.Parallel()

	want := slices.Clone(config.ValidProviderNames)
	slices.Sort(want)
	if got := newBuiltinRegistry().LLMNames(); !slices.Equal(got, want) {
		t.Errorf("registered backends = %v, want %v", got, want)
	}
}

func TestFileIDFromPath(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"episode.json":              "episode",
		"/data/2024/show.v2.json":   "show.v2",
		"noext":                     "noext",
		filepath.Join("a", "b.txt"): "b",
	}
	for in, want := range tests {
		if got := fileIDFromPath(in); got != want {
			t.Errorf("fileIDFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}
