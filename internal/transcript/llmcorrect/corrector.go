// Package llmcorrect adapts an [llm.Provider] into the text-to-text correction
// model used by the block orchestrator, and holds the heuristics that judge
// whether a model answer is usable.
//
// The [Corrector] sends one block of transcript text per request with a fixed
// system instruction and returns the model's reply trimmed of surrounding
// whitespace. It owns no retry logic: the orchestrator retries blocks as a
// whole and decides, via [Validate], whether an answer is worth retrying.
package llmcorrect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/transcorrect/pkg/provider/llm"
)

// SystemPrompt is the fixed instruction sent with every correction request.
const SystemPrompt = `You are tasked with correcting Estonian ASR (automatic speech recognition) transcripts.

Follow these instructions carefully:

1) Correct the text, paying attention to:
   - Estonian spelling, punctuation, and grammar
   - Correct punctuation for direct speech
   - Correct any hallucinations or repeated text (e.g., unnecessary repetitions)
   - Proper capitalization of sentences and proper nouns

2) IMPORTANT CONSTRAINTS:
   - Do NOT add significant new content that wasn't in the original
   - Do NOT change the overall meaning or structure
   - Only correct obvious errors, spelling mistakes, and grammatical issues
   - Preserve the natural flow and style of spoken Estonian

3) OUTPUT FORMAT:
   - Respond ONLY with the corrected text
   - Do not add any explanations, comments, or additional text
   - Maintain the original paragraph structure where sensible

You must respond ONLY with the corrected text. Do not add any additional comments.`

// ErrEmptyResponse is returned when the provider answers without a response.
var ErrEmptyResponse = errors.New("llmcorrect: provider returned no response")

// Corrector turns an [llm.Provider] into a block correction model. It is safe
// for concurrent use.
//
// Model selection follows the one-provider-per-model pattern: to use a
// specific model for correction, construct the [llm.Provider] with that model
// configured.
type Corrector struct {
	llm llm.Provider
}

// New returns a new [Corrector] backed by provider.
func New(provider llm.Provider) *Corrector {
	return &Corrector{llm: provider}
}

// Correct sends userText with systemPrompt to the model and returns the
// trimmed reply.
//
// maxTokens is clamped to the provider's advertised output limit when one is
// known. A reply cut off by the token limit is returned as-is (it is logged)
// so that output validation can flag it.
func (c *Corrector) Correct(ctx context.Context, systemPrompt, userText string, temperature float64, maxTokens int) (string, error) {
	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Temperature:  temperature,
		MaxTokens:    c.llm.Capabilities().ClampMaxTokens(maxTokens),
		Messages: []llm.Message{
			{Role: "user", Content: userText},
		},
	}

	resp, err := c.llm.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llmcorrect: complete: %w", err)
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}

	if resp.FinishReason == "length" {
		slog.Warn("llmcorrect: reply truncated by token limit",
			"max_tokens", req.MaxTokens,
			"completion_tokens", resp.Usage.CompletionTokens,
		)
	}

	return strings.TrimSpace(resp.Content), nil
}
