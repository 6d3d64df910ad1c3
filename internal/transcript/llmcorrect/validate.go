package llmcorrect

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Thresholds applied by [Validate].
const (
	// MinLengthRatio is the output/input length ratio below which content is
	// considered lost.
	MinLengthRatio = 0.8

	// MaxLengthRatio is the ratio above which the output is considered to have
	// grown suspiciously. Growth is reported but never retried.
	MaxLengthRatio = 1.15

	// ShortOutputLength and LongInputLength bound the "suspiciously short"
	// check: an output under ShortOutputLength for an input over
	// LongInputLength.
	ShortOutputLength = 200
	LongInputLength   = 1000
)

// IssueKind classifies a validation finding.
type IssueKind string

const (
	IssueMarkdown     IssueKind = "markdown"
	IssueContentLoss  IssueKind = "content_loss"
	IssueShortOutput  IssueKind = "short_output"
	IssueLengthGrowth IssueKind = "length_growth"
)

// Retryable reports whether an issue of this kind justifies asking the
// model again.
func (k IssueKind) Retryable() bool {
	return k != IssueLengthGrowth
}

// Issue is one validation finding.
type Issue struct {
	Kind    IssueKind
	Message string
}

// Validation is the outcome of checking one model answer against its input.
// Lengths are counted in Unicode code points.
type Validation struct {
	InputLength  int
	OutputLength int

	// LengthRatio is OutputLength/InputLength, or 0 for an empty input.
	LengthRatio float64

	Issues []Issue

	// Retryable is true when at least one issue is retryable.
	Retryable bool
}

// Messages returns the human-readable issue descriptions, or nil when there
// are none.
func (v Validation) Messages() []string {
	if len(v.Issues) == 0 {
		return nil
	}
	out := make([]string, len(v.Issues))
	for i, is := range v.Issues {
		out[i] = is.Message
	}
	return out
}

// Validate checks output, the model's answer for input, for markdown
// contamination, content loss, truncation, and excessive growth.
//
// An empty input has nothing to lose, so only the markdown check applies.
func Validate(input, output string) Validation {
	v := Validation{
		InputLength:  utf8.RuneCountInString(input),
		OutputLength: utf8.RuneCountInString(output),
	}
	if v.InputLength > 0 {
		v.LengthRatio = float64(v.OutputLength) / float64(v.InputLength)
	}

	if strings.Contains(output, "```") || strings.Contains(output, "**") || strings.HasPrefix(output, "#") {
		v.add(IssueMarkdown, "Markdown formatting detected in output")
	}

	if v.InputLength > 0 {
		if v.LengthRatio < MinLengthRatio {
			v.add(IssueContentLoss, fmt.Sprintf("Severe content loss detected (%.1f%% of original length)", v.LengthRatio*100))
		}
		if v.OutputLength < ShortOutputLength && v.InputLength > LongInputLength {
			v.add(IssueShortOutput, fmt.Sprintf("Suspiciously short output (%d chars from %d chars input)", v.OutputLength, v.InputLength))
		}
		if v.LengthRatio > MaxLengthRatio {
			v.add(IssueLengthGrowth, fmt.Sprintf("Significant length increase detected (%.1f%% of original)", v.LengthRatio*100))
		}
	}
	return v
}

func (v *Validation) add(kind IssueKind, msg string) {
	v.Issues = append(v.Issues, Issue{Kind: kind, Message: msg})
	if kind.Retryable() {
		v.Retryable = true
	}
}
