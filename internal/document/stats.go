package document

import (
	"fmt"
	"strings"

	"github.com/MrWong99/transcorrect/internal/transcript/align"
	"github.com/MrWong99/transcorrect/internal/transcript/phonetic"
	"github.com/MrWong99/transcorrect/pkg/types"
)

// CorrectionStats summarises what applying a set of alignments changes.
type CorrectionStats struct {
	// TotalWords counts original words: matched, substituted and deleted.
	TotalWords       int `json:"totalWords"`
	MatchedWords     int `json:"matchedWords"`
	SubstitutedWords int `json:"substitutedWords"`
	InsertedWords    int `json:"insertedWords"`
	DeletedWords     int `json:"deletedWords"`

	// PhoneticSubstitutions counts substitutions whose two words sound alike,
	// the typical shape of an ASR mishearing.
	PhoneticSubstitutions int `json:"phoneticSubstitutions"`

	// SubstitutedCharacters sums the character-level edit distance of every
	// substitution, compared case-insensitively. A low value per substitution
	// points at spelling fixes rather than replaced words.
	SubstitutedCharacters int `json:"substitutedCharacters"`

	// CorrectionRate is (substituted+inserted+deleted)/TotalWords, or 0 when
	// there are no words.
	CorrectionRate float64 `json:"correctionRate"`
}

// RatePercent formats CorrectionRate as a percentage with two decimals, or
// "0%" when there are no words.
func (s CorrectionStats) RatePercent() string {
	if s.TotalWords == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", s.CorrectionRate*100)
}

// Stats computes [CorrectionStats] for applying alignments to doc. Turns
// without a non-empty alignment count all their words as matched.
func Stats(doc *Document, alignments []types.SegmentAlignment) CorrectionStats {
	byIndex := make(map[int]types.SegmentAlignment, len(alignments))
	for _, a := range alignments {
		byIndex[a.SegmentIndex] = a
	}

	aligner := align.New(nil)
	matcher := phonetic.New()
	var st CorrectionStats
	for _, seg := range Segments(doc) {
		a, ok := byIndex[seg.Index]
		if !ok || a.CorrectedText == "" {
			st.TotalWords += len(seg.Words)
			st.MatchedWords += len(seg.Words)
			continue
		}

		original := make([]string, len(seg.Words))
		for i, w := range seg.Words {
			original[i] = w.Text
		}
		for _, wa := range aligner.Align(original, strings.Fields(a.CorrectedText)) {
			switch wa.Op {
			case align.OpMatch:
				st.MatchedWords++
				st.TotalWords++
			case align.OpSubstitute:
				st.SubstitutedWords++
				st.TotalWords++
				if matcher.SoundsAlike(wa.OriginalWord, wa.CorrectedWord) {
					st.PhoneticSubstitutions++
				}
				st.SubstitutedCharacters += aligner.Levenshtein(aligner.Normalize(wa.OriginalWord), aligner.Normalize(wa.CorrectedWord))
			case align.OpInsert:
				st.InsertedWords++
			case align.OpDelete:
				st.DeletedWords++
				st.TotalWords++
			}
		}
	}
	if st.TotalWords > 0 {
		st.CorrectionRate = float64(st.SubstitutedWords+st.InsertedWords+st.DeletedWords) / float64(st.TotalWords)
	}
	return st
}

// PlainText renders doc as "Speaker: text" paragraphs separated by blank
// lines. Words are joined by single spaces except before closing
// punctuation.
func PlainText(doc *Document) string {
	if doc == nil {
		return ""
	}
	var paragraphs []string
	for i := range doc.Content {
		sp := &doc.Content[i]
		if sp.Type != TypeSpeaker {
			continue
		}
		words := collectWords(sp, "", nil)
		if len(words) == 0 {
			continue
		}
		var b strings.Builder
		for j, w := range words {
			if j > 0 && !startsWithClosingPunct(w.Text) {
				b.WriteByte(' ')
			}
			b.WriteString(w.Text)
		}
		paragraphs = append(paragraphs, speakerName(sp)+": "+b.String())
	}
	return strings.Join(paragraphs, "\n\n")
}
