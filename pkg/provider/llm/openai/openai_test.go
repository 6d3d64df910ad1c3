package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/transcorrect/pkg/provider/llm"
)

func TestConvertMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role    string
		wantErr bool
		check   func(t *testing.T, m llm.Message)
	}{
		{role: "system"},
		{role: "user"},
		{role: "assistant"},
		{role: "tool", wantErr: true},
		{role: "unknown", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.role, func(t *testing.T) {
			t.Parallel()
			param, err := convertMessage(llm.Message{Role: tc.role, Content: "tere"})
			if tc.wantErr {
				if err == nil {
					t.Fatalf("convertMessage(%q): expected error", tc.role)
				}
				return
			}
			if err != nil {
				t.Fatalf("convertMessage(%q): %v", tc.role, err)
			}
			switch tc.role {
			case "system":
				if param.OfSystem == nil {
					t.Error("expected OfSystem to be set")
				}
			case "user":
				if param.OfUser == nil {
					t.Error("expected OfUser to be set")
				}
			case "assistant":
				if param.OfAssistant == nil {
					t.Error("expected OfAssistant to be set")
				}
			}
		})
	}
}

func TestModelCapabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model      string
		wantWindow int
		wantOutput int
	}{
		{"gpt-4o-mini", 128_000, 16_384},
		{"gpt-4o", 128_000, 16_384},
		{"gpt-4.1-mini", 1_047_576, 32_768},
		{"gpt-4", 8_192, 4_096},
		{"gpt-3.5-turbo", 16_385, 4_096},
		{"o3-mini", 200_000, 100_000},
		{"my-custom-model", 128_000, 0},
	}
	for _, tc := range tests {
		caps := modelCapabilities(tc.model)
		if caps.ContextWindow != tc.wantWindow {
			t.Errorf("%s: ContextWindow = %d, want %d", tc.model, caps.ContextWindow, tc.wantWindow)
		}
		if caps.MaxOutputTokens != tc.wantOutput {
			t.Errorf("%s: MaxOutputTokens = %d, want %d", tc.model, caps.MaxOutputTokens, tc.wantOutput)
		}
	}
}

func TestCountTokens_Estimation(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "gpt-4o"}
	count, err := p.CountTokens([]llm.Message{{Role: "user", Content: "Tere õhtust"}}) // 11 runes → 4 + 4 overhead
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 8 {
		t.Errorf("CountTokens = %d, want 8", count)
	}
}

func TestBuildParams_Temperature(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model string
		temp  float64
		want  bool
	}{
		{"gpt-4o", 0.3, true},
		{"gpt-4o", 0, false},
		{"o3-mini", 0.3, false},
		{"O1", 0.3, false},
		{"gpt-4.1-mini", 1.2, true},
	}
	for _, tc := range tests {
		p := &Provider{model: tc.model}
		params, err := p.buildParams(llm.CompletionRequest{
			Messages:    []llm.Message{{Role: "user", Content: "tere ohtust"}},
			Temperature: tc.temp,
		})
		if err != nil {
			t.Fatalf("%s: buildParams: %v", tc.model, err)
		}
		if got := params.Temperature.Valid(); got != tc.want {
			t.Errorf("%s at %.1f: temperature sent = %v, want %v", tc.model, tc.temp, got, tc.want)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("expected error for empty API key")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("sk-test", "gpt-4o", WithBaseURL("https://custom.example.com"), WithOrganization("org-123")); err != nil {
		t.Errorf("unexpected error with valid options: %v", err)
	}
}

func TestComplete_RoundTrip(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 0,
			"model": "gpt-4o",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "Tere õhtust."},
				"finish_reason": "stop",
				"logprobs": null
			}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
		}`))
	}))
	t.Cleanup(srv.Close)

	p, err := New("sk-test", "gpt-4o", WithBaseURL(srv.URL+"/v1/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "Paranda tekst.",
		Messages:     []llm.Message{{Role: "user", Content: "tere ohtust"}},
		Temperature:  0.3,
		MaxTokens:    1024,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Tere õhtust." {
		t.Errorf("Content = %q, want %q", resp.Content, "Tere õhtust.")
	}
	if resp.FinishReason != "stop" {
		t.Errorf("FinishReason = %q, want stop", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 16 {
		t.Errorf("TotalTokens = %d, want 16", resp.Usage.TotalTokens)
	}

	if got["max_completion_tokens"] != float64(1024) {
		t.Errorf("max_completion_tokens = %v, want 1024", got["max_completion_tokens"])
	}
	if got["temperature"] != 0.3 {
		t.Errorf("temperature = %v, want 0.3", got["temperature"])
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("sent %d messages, want system + user", len(msgs))
	}
}
