// Package phonetic decides whether a corrected word sounds like the word it
// replaced, using Double Metaphone encoding combined with Jaro-Winkler string
// similarity.
//
// ASR errors are mostly mishearings: the recogniser produces a word that
// sounds like the spoken one. A substitution whose two sides sound alike is
// therefore most likely a genuine ASR fix, while a substitution between
// unrelated-sounding words is a rewrite by the correction model.
//
// The comparison proceeds in two stages:
//
//  1. Phonetic filtering: Double Metaphone codes are computed for every token
//     on both sides. If any code overlaps, the pair is a phonetic candidate
//     and is accepted when its Jaro-Winkler score reaches the phonetic
//     threshold (default 0.70).
//
//  2. Fuzzy fallback: pairs without code overlap are accepted only when the
//     Jaro-Winkler score reaches the higher fuzzy threshold (default 0.85).
//
// Multi-word inputs are supported: the best pairwise token score counts.
package phonetic

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// pair with overlapping phonetic codes. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when the
// phonetic codes do not overlap. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher compares word pairs by pronunciation. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a new [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Compare scores how alike original and corrected sound.
//
// Surrounding punctuation and letter case are ignored. score is the best
// Jaro-Winkler similarity in [0, 1]; alike reports whether the pair passed
// the phonetic or fuzzy threshold. Empty input on either side yields (0, false).
func (m *Matcher) Compare(original, corrected string) (score float64, alike bool) {
	origTokens := tokens(original)
	corrTokens := tokens(corrected)
	if len(origTokens) == 0 || len(corrTokens) == 0 {
		return 0, false
	}

	score = bestJWScore(origTokens, corrTokens, strings.Join(origTokens, " "), strings.Join(corrTokens, " "))
	if codesOverlap(codesForTokens(origTokens), codesForTokens(corrTokens)) {
		return score, score >= m.phoneticThreshold
	}
	return score, score >= m.fuzzyThreshold
}

// SoundsAlike reports whether original and corrected pass [Matcher.Compare].
func (m *Matcher) SoundsAlike(original, corrected string) bool {
	_, alike := m.Compare(original, corrected)
	return alike
}

// tokens lowercases s, splits it on whitespace, and trims punctuation from
// each token. Tokens that are pure punctuation are dropped.
func tokens(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the highest Jaro-Winkler similarity over three views of the
// pair: the full strings, the space-stripped strings (only when either side
// has several tokens), and every token pair.
func bestJWScore(aTokens, bTokens []string, aFull, bFull string) float64 {
	score := matchr.JaroWinkler(aFull, bFull, false)

	if len(aTokens) > 1 || len(bTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(aTokens, ""), strings.Join(bTokens, ""), false); s > score {
			score = s
		}
	}

	for _, at := range aTokens {
		for _, bt := range bTokens {
			if s := matchr.JaroWinkler(at, bt, false); s > score {
				score = s
			}
		}
	}
	return score
}
