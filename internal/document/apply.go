package document

import (
	"strings"

	"github.com/MrWong99/transcorrect/internal/correction"
	"github.com/MrWong99/transcorrect/internal/transcript/align"
	"github.com/MrWong99/transcorrect/pkg/types"
)

// InsertedWordDuration is the duration given to a word the correction
// inserted, since no audio timing exists for it.
const InsertedWordDuration = 0.3

// Apply returns a new document with the corrected text of alignments applied
// to the speaker turns of doc. doc is not modified.
//
// Matched and substituted words take the corrected text and keep the
// original word's timing. Deleted words are dropped. Inserted words start
// where the previously emitted word ended (the turn's first word start when
// nothing was emitted yet, 0 for a turn without words) and last
// [InsertedWordDuration]. Turns without an alignment, or whose alignment has
// an empty corrected text, are copied with their original words.
//
// When alignments contain several entries for one segment index the last
// one wins.
func Apply(doc *Document, alignments []types.SegmentAlignment) *Document {
	byIndex := make(map[int]types.SegmentAlignment, len(alignments))
	for _, a := range alignments {
		byIndex[a.SegmentIndex] = a
	}

	aligner := align.New(nil)
	out := &Document{Type: TypeDoc}
	for _, seg := range Segments(doc) {
		words := seg.Words
		if a, ok := byIndex[seg.Index]; ok && a.CorrectedText != "" {
			words = correctWords(aligner, seg, a.CorrectedText)
		}
		out.Content = append(out.Content, speakerNode(seg, words))
	}
	return out
}

// ApplyBlocks applies the alignments of the completed blocks; blocks with
// any other status are ignored.
func ApplyBlocks(doc *Document, blocks []correction.BlockResult) *Document {
	var alignments []types.SegmentAlignment
	for _, b := range blocks {
		if b.Status == correction.StatusCompleted {
			alignments = append(alignments, b.Alignments...)
		}
	}
	return Apply(doc, alignments)
}

func correctWords(aligner *align.Aligner, seg Segment, correctedText string) []ExtractedWord {
	original := make([]string, len(seg.Words))
	for i, w := range seg.Words {
		original[i] = w.Text
	}
	corrected := strings.Fields(correctedText)

	out := make([]ExtractedWord, 0, len(corrected))
	for _, wa := range aligner.Align(original, corrected) {
		switch wa.Op {
		case align.OpMatch, align.OpSubstitute:
			ow := seg.Words[wa.OriginalIndex]
			out = append(out, ExtractedWord{
				Text:       wa.CorrectedWord,
				Start:      ow.Start,
				End:        ow.End,
				SpeakerTag: ow.SpeakerTag,
			})
		case align.OpInsert:
			var start float64
			switch {
			case len(out) > 0:
				start = out[len(out)-1].End
			case len(seg.Words) > 0:
				start = seg.Words[0].Start
			}
			out = append(out, ExtractedWord{
				Text:       wa.CorrectedWord,
				Start:      start,
				End:        start + InsertedWordDuration,
				SpeakerTag: seg.SpeakerTag,
			})
		}
	}
	return out
}

// speakerNode renders one turn. The speaker attributes are taken from the
// source node so alternatives survive unchanged.
func speakerNode(seg Segment, words []ExtractedWord) Node {
	attrs := &Attrs{DataName: seg.SpeakerTag}
	if src := seg.source; src != nil && src.Attrs != nil {
		attrs.ID = src.Attrs.ID
		attrs.Topic = src.Attrs.Topic
		attrs.Alternatives = src.Attrs.Alternatives
	}

	para := Node{Type: TypeParagraph}
	for i, w := range words {
		if i > 0 && !startsWithClosingPunct(w.Text) {
			para.Content = append(para.Content, Node{Type: TypeText, Text: " "})
		}
		para.Content = append(para.Content, Node{
			Type:  TypeWordNode,
			Attrs: &Attrs{Text: w.Text, Start: ptr(w.Start), End: ptr(w.End)},
		})
	}
	return Node{Type: TypeSpeaker, Attrs: attrs, Content: []Node{para}}
}

func startsWithClosingPunct(s string) bool {
	if s == "" {
		return false
	}
	switch s[0] {
	case '.', ',', ';', ':', '!', '?', ')', ']', '}', '"', '\'':
		return true
	}
	return strings.HasPrefix(s, "»")
}
