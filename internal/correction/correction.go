// Package correction runs LLM correction over a transcript file block by
// block, validating each answer, retrying failed blocks, and persisting every
// block as soon as it is done so an interrupted run can resume where it
// stopped.
//
// A file's segments are cut into contiguous blocks of a fixed size. Each
// block is sent to a [Model] as one text, the answer is checked with
// [llmcorrect.Validate], and the corrected words are distributed back onto
// the block's segments. Block results are stored through a [Repository]
// keyed by (file ID, block index); a block already stored as completed is
// never sent to the model again.
package correction

import (
	"context"

	"github.com/MrWong99/transcorrect/internal/transcript/llmcorrect"
	"github.com/MrWong99/transcorrect/pkg/types"
)

// Status is the state of a block or of a whole file.
type Status string

const (
	// StatusCompleted marks a block the model answered, or a file whose
	// blocks all completed.
	StatusCompleted Status = "completed"

	// StatusPartial marks a file with some, but not all, blocks completed.
	StatusPartial Status = "partial"

	// StatusError marks a block that failed after all retries, or a file
	// with no completed block.
	StatusError Status = "error"
)

// Model is the text-to-text correction model. [llmcorrect.Corrector]
// implements it on top of an LLM provider.
type Model interface {
	Correct(ctx context.Context, systemPrompt, userText string, temperature float64, maxTokens int) (string, error)
}

var _ Model = (*llmcorrect.Corrector)(nil)

// Repository persists block results. Implementations must be safe for
// concurrent use and treat repeated upserts of one (fileID, BlockIndex) as
// replacements.
type Repository interface {
	// Upsert stores r under (fileID, r.BlockIndex).
	Upsert(ctx context.Context, fileID string, r BlockResult) error

	// FindAll returns every stored block of fileID ordered by BlockIndex.
	// An unknown file yields an empty slice and a nil error.
	FindAll(ctx context.Context, fileID string) ([]BlockResult, error)
}

// BlockResult is the outcome of correcting one block.
type BlockResult struct {
	BlockIndex     int                      `json:"blockIndex"`
	SegmentIndices []int                    `json:"segmentIndices"`
	OriginalText   string                   `json:"originalText"`
	CorrectedText  string                   `json:"correctedText"`
	Alignments     []types.SegmentAlignment `json:"alignments"`
	Status         Status                   `json:"status"`

	// Error holds the last model error of a block with StatusError.
	Error string `json:"error,omitempty"`

	// ValidationIssues are the findings on the accepted answer. A completed
	// block may carry issues when retries ran out.
	ValidationIssues []string `json:"validationIssues,omitempty"`

	RetryCount int `json:"retryCount"`

	// InputLength and OutputLength count Unicode code points.
	InputLength  int     `json:"inputLength"`
	OutputLength int     `json:"outputLength"`
	LengthRatio  float64 `json:"lengthRatio"`
}

// FileResult aggregates the block results of one file. It is assembled on
// demand and never stored as a whole.
type FileResult struct {
	FileID          string `json:"fileId"`
	TotalBlocks     int    `json:"totalBlocks"`
	CompletedBlocks int    `json:"completedBlocks"`

	// SuccessRate is CompletedBlocks/TotalBlocks as a percentage in [0, 100].
	SuccessRate float64 `json:"successRate"`

	Blocks []BlockResult `json:"blocks"`
	Status Status        `json:"status"`
}

// Alignments returns the segment alignments of all completed blocks in block
// order.
func (f *FileResult) Alignments() []types.SegmentAlignment {
	var out []types.SegmentAlignment
	for _, b := range f.Blocks {
		if b.Status == StatusCompleted {
			out = append(out, b.Alignments...)
		}
	}
	return out
}

func summarize(fileID string, total int, blocks []BlockResult) *FileResult {
	r := &FileResult{
		FileID:      fileID,
		TotalBlocks: total,
		Blocks:      blocks,
	}
	for _, b := range blocks {
		if b.Status == StatusCompleted {
			r.CompletedBlocks++
		}
	}
	if total > 0 {
		r.SuccessRate = float64(r.CompletedBlocks) / float64(total) * 100
	}
	switch {
	case r.CompletedBlocks == total:
		r.Status = StatusCompleted
	case r.CompletedBlocks > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusError
	}
	return r
}
