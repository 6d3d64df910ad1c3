package llm

import "unicode/utf8"

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional participant name.
	Name string
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one
	// completion. Zero means unknown.
	MaxOutputTokens int
}

// ClampMaxTokens returns requested limited to the model's MaxOutputTokens.
// A non-positive request or an unknown limit leaves requested unchanged.
func (c ModelCapabilities) ClampMaxTokens(requested int) int {
	if requested <= 0 || c.MaxOutputTokens <= 0 {
		return requested
	}
	return min(requested, c.MaxOutputTokens)
}

// EstimateTokens approximates the prompt size of messages for backends
// without a tokenizer: three runes per token plus four tokens of role and
// formatting overhead per message. Inflected languages such as Estonian
// split into more tokens than English, hence three runes rather than four.
func EstimateTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += (utf8.RuneCountInString(m.Content)+2)/3 + 4
	}
	return total
}
