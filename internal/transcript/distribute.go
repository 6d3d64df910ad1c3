// Package transcript maps LLM-corrected text back onto the timed segments of
// an ASR transcript.
//
// A correction model receives a block of segments joined into one string and
// answers with free-form corrected text. The [Distributor] aligns the
// corrected words against the original words of the block (see
// [align.Aligner]) and attributes every corrected word to the segment whose
// original word it replaced or matched. The result is one
// [types.SegmentAlignment] per input segment, in input order.
//
// Words the model inserted have no original counterpart. Where they go is
// decided by an [InsertionPolicy].
package transcript

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MrWong99/transcorrect/internal/transcript/align"
	"github.com/MrWong99/transcorrect/pkg/types"
)

// InsertionPolicy decides which segment receives a corrected word that has no
// original counterpart.
type InsertionPolicy int

const (
	// InsertFirstAttributed attaches an inserted word to the first segment
	// that already holds an attributed word at the time the insertion is
	// seen. Insertions seen before any attribution are dropped. Under this
	// policy two segments' word ranges may overlap.
	InsertFirstAttributed InsertionPolicy = iota

	// InsertNearestPreceding attaches an inserted word to the segment owning
	// the closest preceding original word (matched, substituted, or
	// deleted). Leading insertions go to the segment of the first original
	// word. Ranges never overlap under this policy.
	InsertNearestPreceding
)

// String returns the configuration name of the policy.
func (p InsertionPolicy) String() string {
	switch p {
	case InsertFirstAttributed:
		return "first_attributed"
	case InsertNearestPreceding:
		return "nearest_preceding"
	default:
		return fmt.Sprintf("InsertionPolicy(%d)", int(p))
	}
}

// ParseInsertionPolicy parses the configuration name of a policy. The empty
// string selects [InsertFirstAttributed].
func ParseInsertionPolicy(s string) (InsertionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first_attributed":
		return InsertFirstAttributed, nil
	case "nearest_preceding":
		return InsertNearestPreceding, nil
	default:
		return 0, fmt.Errorf("transcript: unknown insertion policy %q", s)
	}
}

// DistributeOption is a functional option for configuring a [Distributor].
type DistributeOption func(*Distributor)

// WithInsertionPolicy selects how inserted words are attributed.
// Default: [InsertFirstAttributed].
func WithInsertionPolicy(p InsertionPolicy) DistributeOption {
	return func(d *Distributor) {
		d.policy = p
	}
}

// WithAligner shares an existing aligner (and its cache) with the
// distributor. nil is ignored.
func WithAligner(a *align.Aligner) DistributeOption {
	return func(d *Distributor) {
		if a != nil {
			d.aligner = a
		}
	}
}

// Distributor attributes corrected words to timed segments. It is safe for
// concurrent use.
type Distributor struct {
	aligner *align.Aligner
	policy  InsertionPolicy
}

// NewDistributor returns a [Distributor] configured with opts.
func NewDistributor(opts ...DistributeOption) *Distributor {
	d := &Distributor{}
	for _, o := range opts {
		o(d)
	}
	if d.aligner == nil {
		d.aligner = align.New(nil)
	}
	return d
}

// Fork returns a Distributor with d's policy and a new aligner whose cache
// starts empty. Callers fork per file so that memoised words live only as
// long as the file they came from.
func (d *Distributor) Fork() *Distributor {
	return &Distributor{aligner: align.New(nil), policy: d.policy}
}

// Policy reports the insertion policy in use.
func (d *Distributor) Policy() InsertionPolicy { return d.policy }

// Aligner returns the aligner the distributor runs.
func (d *Distributor) Aligner() *align.Aligner { return d.aligner }

// Distribute returns one [types.SegmentAlignment] per segment, in the order of
// segments. A segment that received no corrected words has CorrectedText ""
// and the range [0,0). Distribute never fails.
func (d *Distributor) Distribute(segments []types.TimedSegment, correctedText string) []types.SegmentAlignment {
	var (
		originalWords []string
		owner         []int // owner[i] is the position in segments of original word i
	)
	for k, seg := range segments {
		for _, w := range strings.Fields(align.Normalize(seg.Text)) {
			originalWords = append(originalWords, w)
			owner = append(owner, k)
		}
	}

	correctedCased := strings.Fields(correctedText)
	correctedNorm := strings.Fields(align.Normalize(correctedText))

	assigned := make([][]int, len(segments))
	attribute := d.attributor(assigned, owner)
	for _, a := range d.aligner.Align(originalWords, correctedNorm) {
		attribute(a)
	}

	out := make([]types.SegmentAlignment, len(segments))
	for k, seg := range segments {
		out[k] = types.SegmentAlignment{
			SegmentIndex: seg.Index,
			OriginalText: seg.Text,
		}
		idx := assigned[k]
		if len(idx) == 0 {
			continue
		}
		start := slices.Min(idx)
		end := min(slices.Max(idx)+1, len(correctedCased))
		if start >= end {
			continue
		}
		out[k].StartWordIndex = start
		out[k].EndWordIndex = end
		out[k].CorrectedText = strings.Join(correctedCased[start:end], " ")
	}
	return out
}

// attributor returns the per-entry attribution step for the configured
// policy. Entries must be fed in document order.
func (d *Distributor) attributor(assigned [][]int, owner []int) func(align.WordAlignment) {
	switch d.policy {
	case InsertNearestPreceding:
		last := -1
		var pending []int
		return func(a align.WordAlignment) {
			if a.OriginalIndex != align.NoIndex {
				last = owner[a.OriginalIndex]
				if len(pending) > 0 {
					assigned[last] = append(assigned[last], pending...)
					pending = nil
				}
				if a.CorrectedIndex != align.NoIndex {
					assigned[last] = append(assigned[last], a.CorrectedIndex)
				}
				return
			}
			switch {
			case last >= 0:
				assigned[last] = append(assigned[last], a.CorrectedIndex)
			case len(owner) == 0 && len(assigned) > 0:
				// No original words: the whole text belongs to the first segment.
				assigned[0] = append(assigned[0], a.CorrectedIndex)
			default:
				pending = append(pending, a.CorrectedIndex)
			}
		}
	default:
		return func(a align.WordAlignment) {
			switch {
			case a.OriginalIndex != align.NoIndex && a.CorrectedIndex != align.NoIndex:
				k := owner[a.OriginalIndex]
				assigned[k] = append(assigned[k], a.CorrectedIndex)
			case a.CorrectedIndex != align.NoIndex:
				for k := range assigned {
					if len(assigned[k]) > 0 {
						assigned[k] = append(assigned[k], a.CorrectedIndex)
						break
					}
				}
			}
		}
	}
}

// Distribute attributes correctedText to segments with a fresh [Distributor].
func Distribute(segments []types.TimedSegment, correctedText string, opts ...DistributeOption) []types.SegmentAlignment {
	return NewDistributor(opts...).Distribute(segments, correctedText)
}
