// Package document reads and writes the structured transcript format: a
// "doc" node holding one "speaker" node per speaker turn, each wrapping a
// paragraph of timed words.
//
// Two word encodings are accepted on input. The current one is a "wordNode"
// whose attrs carry text, start and end. The legacy one is a "text" node
// with a "word" mark whose attrs carry start and end. Output always uses
// wordNode, with single-space text nodes between words.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Node types.
const (
	TypeDoc       = "doc"
	TypeSpeaker   = "speaker"
	TypeParagraph = "paragraph"
	TypeWordNode  = "wordNode"
	TypeText      = "text"
	MarkWord      = "word"
)

// ErrNotDocument is returned by [Parse] when the input is JSON but its root
// is not a doc node.
var ErrNotDocument = errors.New("document: root node is not a doc")

// Document is the root of a structured transcript.
type Document = Node

// Node is one node of the transcript tree.
type Node struct {
	Type    string `json:"type"`
	Attrs   *Attrs `json:"attrs,omitempty"`
	Content []Node `json:"content,omitempty"`
	Text    string `json:"text,omitempty"`
	Marks   []Mark `json:"marks,omitempty"`
}

// Attrs holds the attributes used by speaker and word nodes.
type Attrs struct {
	// DataName is the speaker name of a speaker node.
	DataName string  `json:"data-name,omitempty"`
	ID       string  `json:"id,omitempty"`
	Topic    *string `json:"topic,omitempty"`

	// Alternatives are ASR hypotheses of a speaker turn, stored either as a
	// JSON array or as a string holding one. They are passed through as-is.
	Alternatives json.RawMessage `json:"alternatives,omitempty"`

	// Text, Start and End describe a wordNode.
	Text  string   `json:"text,omitempty"`
	Start *float64 `json:"start,omitempty"`
	End   *float64 `json:"end,omitempty"`
}

// Mark is an inline annotation of a text node.
type Mark struct {
	Type  string     `json:"type"`
	Attrs *MarkAttrs `json:"attrs,omitempty"`
}

// MarkAttrs are the attributes of a word mark.
type MarkAttrs struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	ID         string  `json:"id,omitempty"`
	Lang       string  `json:"lang,omitempty"`
	Spellcheck string  `json:"spellcheck,omitempty"`
}

// Alternative is one ranked ASR hypothesis for a speaker turn.
type Alternative struct {
	Rank       int     `json:"rank"`
	Text       string  `json:"text"`
	AvgLogprob float64 `json:"avg_logprob"`
}

// Parse decodes a structured transcript.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("document: parse: %w", err)
	}
	if doc.Type != TypeDoc {
		return nil, ErrNotDocument
	}
	return &doc, nil
}

// Marshal encodes doc as indented JSON.
func Marshal(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("document: marshal: %w", err)
	}
	return data, nil
}

// parseAlternatives decodes raw alternatives in either of their encodings.
// Malformed values yield nil.
func parseAlternatives(raw json.RawMessage) []Alternative {
	if len(raw) == 0 {
		return nil
	}
	var alts []Alternative
	if err := json.Unmarshal(raw, &alts); err == nil {
		return alts
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(s), &alts); err != nil {
		return nil
	}
	return alts
}

func ptr(v float64) *float64 { return &v }
