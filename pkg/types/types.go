// Package types defines the records shared between the alignment, correction,
// and document packages.
//
// They are intentionally minimal. Each package owns its own domain types;
// only structures that cross package boundaries (and would otherwise cause
// import cycles) live here.
package types

// TimedSegment is one speaker turn of a transcript with its time span.
// Segments are immutable once extracted from the source transcript.
type TimedSegment struct {
	// Index is a stable, file-wide identifier used for resumability. It is
	// not required to be contiguous.
	Index int `json:"index"`

	// StartTime and EndTime are offsets in seconds from the start of the
	// recording.
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`

	// Text is the whitespace-joined text of the segment's words.
	Text string `json:"text"`

	// SpeakerTag names the speaker of this turn. May be empty.
	SpeakerTag string `json:"speakerTag,omitempty"`
}

// SegmentAlignment attributes a sub-range of a corrected word array to one
// original segment. StartWordIndex and EndWordIndex index into the corrected
// word array of the block the segment belonged to; EndWordIndex is exclusive.
//
// A segment that received no corrected words has an empty CorrectedText and
// a zero-length range.
type SegmentAlignment struct {
	SegmentIndex   int    `json:"segmentIndex"`
	StartWordIndex int    `json:"startWordIndex"`
	EndWordIndex   int    `json:"endWordIndex"`
	OriginalText   string `json:"originalText"`
	CorrectedText  string `json:"correctedText"`
}
