package document

import (
	"strings"

	"github.com/MrWong99/transcorrect/pkg/types"
)

// UnknownSpeaker names speaker nodes without a data-name.
const UnknownSpeaker = "Unknown Speaker"

// ExtractedWord is one timed word read from a document.
type ExtractedWord struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	SpeakerTag string  `json:"speakerTag"`
}

// Segment is one speaker turn read from a document.
type Segment struct {
	// Index counts speaker turns that have words, from 0.
	Index        int
	StartTime    float64
	EndTime      float64
	Text         string
	SpeakerTag   string
	Words        []ExtractedWord
	Alternatives []Alternative

	source *Node
}

// Timed returns the segment as a [types.TimedSegment].
func (s Segment) Timed() types.TimedSegment {
	return types.TimedSegment{
		Index:      s.Index,
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		Text:       s.Text,
		SpeakerTag: s.SpeakerTag,
	}
}

// Segments extracts the speaker turns of doc in document order. Speaker
// nodes without words are skipped and do not consume an index.
//
// A turn whose last word ends at or before its first word starts gets the
// latest word end as its end time, or start+1s when no word ends later.
func Segments(doc *Document) []Segment {
	if doc == nil {
		return nil
	}
	var segs []Segment
	for i := range doc.Content {
		sp := &doc.Content[i]
		if sp.Type != TypeSpeaker {
			continue
		}
		speaker := speakerName(sp)
		words := collectWords(sp, speaker, nil)
		if len(words) == 0 {
			continue
		}

		start := words[0].Start
		end := words[len(words)-1].End
		if end <= start {
			maxEnd := end
			for _, w := range words {
				maxEnd = max(maxEnd, w.End)
			}
			if maxEnd > start {
				end = maxEnd
			} else {
				end = start + 1
			}
		}

		texts := make([]string, len(words))
		for j, w := range words {
			texts[j] = w.Text
		}

		var alts []Alternative
		if sp.Attrs != nil {
			alts = parseAlternatives(sp.Attrs.Alternatives)
		}
		segs = append(segs, Segment{
			Index:        len(segs),
			StartTime:    start,
			EndTime:      end,
			Text:         strings.Join(strings.Fields(strings.Join(texts, " ")), " "),
			SpeakerTag:   speaker,
			Words:        words,
			Alternatives: alts,
			source:       sp,
		})
	}
	return segs
}

// TimedSegments returns the [types.TimedSegment] of every turn in doc.
func TimedSegments(doc *Document) []types.TimedSegment {
	segs := Segments(doc)
	out := make([]types.TimedSegment, len(segs))
	for i, s := range segs {
		out[i] = s.Timed()
	}
	return out
}

func speakerName(n *Node) string {
	if n.Attrs != nil && n.Attrs.DataName != "" {
		return n.Attrs.DataName
	}
	return UnknownSpeaker
}

// collectWords appends the words below n to words in document order.
// Untimed plain text (punctuation outside a word) becomes a word placed at
// the end of the previous one. Whitespace-only text is ignored.
func collectWords(n *Node, speaker string, words []ExtractedWord) []ExtractedWord {
	switch n.Type {
	case TypeWordNode:
		if n.Attrs == nil {
			break
		}
		text := n.Attrs.Text
		if text == "" && len(n.Content) > 0 {
			text = n.Content[0].Text
		}
		if strings.TrimSpace(text) == "" {
			return words
		}
		return append(words, ExtractedWord{
			Text:       strings.TrimSpace(text),
			Start:      deref(n.Attrs.Start),
			End:        deref(n.Attrs.End),
			SpeakerTag: speaker,
		})
	case TypeText:
		text := strings.TrimSpace(n.Text)
		if text == "" {
			return words
		}
		if m := wordMark(n.Marks); m != nil {
			return append(words, ExtractedWord{Text: text, Start: m.Start, End: m.End, SpeakerTag: speaker})
		}
		var at float64
		if len(words) > 0 {
			at = words[len(words)-1].End
		}
		return append(words, ExtractedWord{Text: text, Start: at, End: at, SpeakerTag: speaker})
	}
	for i := range n.Content {
		words = collectWords(&n.Content[i], speaker, words)
	}
	return words
}

func wordMark(marks []Mark) *MarkAttrs {
	for _, m := range marks {
		if m.Type == MarkWord {
			if m.Attrs == nil {
				return &MarkAttrs{}
			}
			return m.Attrs
		}
	}
	return nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
