// Package align computes word-level edit scripts between an original
// transcript and its corrected counterpart.
//
// The [Aligner] runs a Wagner–Fischer dynamic program over words (not
// characters) with unit insert/delete cost and a 0/1 match/substitute cost.
// Backtracking prefers the diagonal step, then delete, then insert, so the
// output is deterministic for any pair of inputs. Entries are returned in
// document order.
//
// [Measure] derives quality statistics from an edit script, and [Cache] holds
// the memoised normalisation and character distance lookups an [Aligner]
// reuses across calls.
package align

import (
	"fmt"
	"slices"
	"strings"
)

// NoIndex marks a missing counterpart in a [WordAlignment]: inserted words
// have no original index and deleted words have no corrected index.
const NoIndex = -1

// Operation is the kind of a single edit-script entry.
type Operation int

const (
	// OpMatch pairs two words that are equal after normalisation.
	OpMatch Operation = iota

	// OpSubstitute pairs two different words at the same position.
	OpSubstitute

	// OpInsert is a corrected word with no original counterpart.
	OpInsert

	// OpDelete is an original word with no corrected counterpart.
	OpDelete
)

// String returns the lowercase name of the operation.
func (o Operation) String() string {
	switch o {
	case OpMatch:
		return "match"
	case OpSubstitute:
		return "substitute"
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (o Operation) MarshalText() ([]byte, error) {
	if o < OpMatch || o > OpDelete {
		return nil, fmt.Errorf("align: unknown operation %d", int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (o *Operation) UnmarshalText(text []byte) error {
	switch string(text) {
	case "match":
		*o = OpMatch
	case "substitute":
		*o = OpSubstitute
	case "insert":
		*o = OpInsert
	case "delete":
		*o = OpDelete
	default:
		return fmt.Errorf("align: unknown operation %q", text)
	}
	return nil
}

// WordAlignment is one entry of an edit script.
//
// For OpMatch and OpSubstitute both indices are valid. For OpInsert
// OriginalIndex is [NoIndex]; for OpDelete CorrectedIndex is [NoIndex].
// OriginalWord and CorrectedWord carry the input tokens as given (not
// normalised) and are empty on the side that has no counterpart.
type WordAlignment struct {
	OriginalIndex  int       `json:"originalIndex"`
	CorrectedIndex int       `json:"correctedIndex"`
	Op             Operation `json:"operation"`
	OriginalWord   string    `json:"originalWord,omitempty"`
	CorrectedWord  string    `json:"correctedWord,omitempty"`
}

// Option configures a single [Aligner.Align] call.
type Option func(*alignOptions)

type alignOptions struct {
	caseSensitive bool
}

// CaseSensitive compares words exactly (after trimming surrounding
// whitespace) instead of the default lowercase, whitespace-collapsed form.
func CaseSensitive() Option {
	return func(o *alignOptions) {
		o.caseSensitive = true
	}
}

// Aligner computes word-level edit scripts. It owns a [Cache] that memoises
// normalised strings; the cache is lock-protected, so a single Aligner may be
// shared by concurrent workers.
type Aligner struct {
	cache *Cache
}

// New returns an [Aligner] backed by cache. A nil cache allocates a fresh one.
func New(cache *Cache) *Aligner {
	if cache == nil {
		cache = NewCache()
	}
	return &Aligner{cache: cache}
}

// Cache returns the cache used by this aligner.
func (a *Aligner) Cache() *Cache { return a.cache }

// Normalize lowercases text and collapses runs of whitespace into single
// spaces. Results are memoised in the aligner's cache.
func (a *Aligner) Normalize(text string) string {
	return a.cache.normalize(text)
}

// Levenshtein returns the character-level edit distance between s1 and s2,
// memoised in the aligner's cache.
func (a *Aligner) Levenshtein(s1, s2 string) int {
	return a.cache.levenshtein(s1, s2)
}

// Align returns the edit script turning original into corrected.
//
// nil slices are treated as empty. The result is ordered by position in the
// documents: every original word and every corrected word appears exactly
// once, in increasing index order.
func (a *Aligner) Align(original, corrected []string, opts ...Option) []WordAlignment {
	var o alignOptions
	for _, opt := range opts {
		opt(&o)
	}

	origNorm := make([]string, len(original))
	for i, w := range original {
		origNorm[i] = a.key(w, o.caseSensitive)
	}
	corrNorm := make([]string, len(corrected))
	for j, w := range corrected {
		corrNorm[j] = a.key(w, o.caseSensitive)
	}

	dp := costTable(origNorm, corrNorm)

	n, m := len(original), len(corrected)
	out := make([]WordAlignment, 0, max(n, m))
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0:
			cost := substitutionCost(origNorm[i-1], corrNorm[j-1])
			switch {
			case dp[i][j] == dp[i-1][j-1]+cost:
				op := OpMatch
				if cost == 1 {
					op = OpSubstitute
				}
				out = append(out, WordAlignment{
					OriginalIndex:  i - 1,
					CorrectedIndex: j - 1,
					Op:             op,
					OriginalWord:   original[i-1],
					CorrectedWord:  corrected[j-1],
				})
				i--
				j--
			case dp[i][j] == dp[i-1][j]+1:
				out = append(out, deletion(i-1, original[i-1]))
				i--
			default:
				out = append(out, insertion(j-1, corrected[j-1]))
				j--
			}
		case i > 0:
			out = append(out, deletion(i-1, original[i-1]))
			i--
		default:
			out = append(out, insertion(j-1, corrected[j-1]))
			j--
		}
	}

	slices.Reverse(out)
	return out
}

// key is the comparison form of a word.
func (a *Aligner) key(w string, caseSensitive bool) string {
	if caseSensitive {
		return strings.TrimSpace(w)
	}
	return a.cache.normalize(w)
}

// Align is a convenience wrapper that aligns with a fresh [Aligner].
func Align(original, corrected []string, opts ...Option) []WordAlignment {
	return New(nil).Align(original, corrected, opts...)
}

// costTable builds the (n+1)×(m+1) Wagner–Fischer table. dp[i][j] is the
// minimum number of edits aligning a[:i] with b[:j].
func costTable(a, b []string) [][]int {
	n, m := len(a), len(b)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
		dp[i][0] = i
	}
	for j := 0; j <= m; j++ {
		dp[0][j] = j
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			dp[i][j] = min(
				dp[i-1][j-1]+substitutionCost(a[i-1], b[j-1]),
				dp[i-1][j]+1,
				dp[i][j-1]+1,
			)
		}
	}
	return dp
}

func substitutionCost(a, b string) int {
	if a == b {
		return 0
	}
	return 1
}

func deletion(origIdx int, word string) WordAlignment {
	return WordAlignment{
		OriginalIndex:  origIdx,
		CorrectedIndex: NoIndex,
		Op:             OpDelete,
		OriginalWord:   word,
	}
}

func insertion(corrIdx int, word string) WordAlignment {
	return WordAlignment{
		OriginalIndex:  NoIndex,
		CorrectedIndex: corrIdx,
		Op:             OpInsert,
		CorrectedWord:  word,
	}
}
