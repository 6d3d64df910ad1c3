package document

import (
	"testing"

	"github.com/MrWong99/transcorrect/internal/correction"
	"github.com/MrWong99/transcorrect/pkg/types"
)

// outWords returns the wordNodes of every speaker in doc.
func outWords(doc *Document) [][]Node {
	var out [][]Node
	for _, sp := range doc.Content {
		var words []Node
		for _, para := range sp.Content {
			for _, n := range para.Content {
				if n.Type == TypeWordNode {
					words = append(words, n)
				}
			}
		}
		out = append(out, words)
	}
	return out
}

func TestApply_InsertedWordTiming(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		words     []Node
		corrected string
		wantText  []string
		wantStart []float64
		wantEnd   []float64
	}{
		{
			name:      "after previous word",
			words:     []Node{word("tere", 2.0, 2.5)},
			corrected: "tere õhtust",
			wantText:  []string{"tere", "õhtust"},
			wantStart: []float64{2.0, 2.5},
			wantEnd:   []float64{2.5, 2.8},
		},
		{
			name:      "chained insertions",
			words:     []Node{word("tere", 1.0, 1.4)},
			corrected: "tere head inimesed",
			wantText:  []string{"tere", "head", "inimesed"},
			wantStart: []float64{1.0, 1.4, 1.7},
			wantEnd:   []float64{1.4, 1.7, 2.0},
		},
		{
			name:      "before the first word",
			words:     []Node{word("tere", 2.0, 2.5)},
			corrected: "ja tere",
			wantText:  []string{"ja", "tere"},
			wantStart: []float64{2.0, 2.0},
			wantEnd:   []float64{2.3, 2.5},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			doc := newDoc(speaker("Mari", tc.words...))
			out := Apply(doc, []types.SegmentAlignment{{SegmentIndex: 0, CorrectedText: tc.corrected}})

			words := outWords(out)[0]
			if len(words) != len(tc.wantText) {
				t.Fatalf("words = %d, want %d", len(words), len(tc.wantText))
			}
			for i, w := range words {
				if w.Attrs.Text != tc.wantText[i] || !approx(*w.Attrs.Start, tc.wantStart[i]) || !approx(*w.Attrs.End, tc.wantEnd[i]) {
					t.Errorf("word %d = %q [%v, %v], want %q [%v, %v]",
						i, w.Attrs.Text, *w.Attrs.Start, *w.Attrs.End, tc.wantText[i], tc.wantStart[i], tc.wantEnd[i])
				}
			}
		})
	}
}

func TestApply(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(fixture))
	if err != nil {
		t.Fatal(err)
	}
	before := PlainText(doc)

	out := Apply(doc, []types.SegmentAlignment{
		{SegmentIndex: 0, CorrectedText: "Tere õhtust!"},
		{SegmentIndex: 1, CorrectedText: "kõik vaatajad , tere"},
		{SegmentIndex: 7, CorrectedText: "unknown segment"},
	})

	if PlainText(doc) != before {
		t.Error("Apply modified its input")
	}
	if len(out.Content) != 3 {
		t.Fatalf("speakers = %d, want 3", len(out.Content))
	}

	want := "Mari: Tere õhtust!\n\nJaan: kõik vaatajad, tere\n\nUnknown Speaker: head aega."
	if got := PlainText(out); got != want {
		t.Errorf("PlainText(out) =\n%q\nwant\n%q", got, want)
	}

	words := outWords(out)
	// Substitution keeps the original timing.
	if w := words[0][1]; w.Attrs.Text != "õhtust!" || !approx(*w.Attrs.Start, 1.0) || !approx(*w.Attrs.End, 1.6) {
		t.Errorf("substituted word = %q [%v, %v]", w.Attrs.Text, *w.Attrs.Start, *w.Attrs.End)
	}
	// Insertions follow the last emitted word.
	if w := words[1][2]; w.Attrs.Text != "," || !approx(*w.Attrs.Start, 3.1) || !approx(*w.Attrs.End, 3.4) {
		t.Errorf("inserted comma = %q [%v, %v]", w.Attrs.Text, *w.Attrs.Start, *w.Attrs.End)
	}
	if w := words[1][3]; !approx(*w.Attrs.Start, 3.4) || !approx(*w.Attrs.End, 3.7) {
		t.Errorf("inserted word = %q [%v, %v]", w.Attrs.Text, *w.Attrs.Start, *w.Attrs.End)
	}
	// The unaligned turn keeps its words and timing.
	if w := words[2][1]; w.Attrs.Text != "aega" || !approx(*w.Attrs.Start, 4.2) {
		t.Errorf("copied word = %q [%v]", w.Attrs.Text, *w.Attrs.Start)
	}

	// No space node before closing punctuation.
	para := out.Content[1].Content[0].Content
	for i, n := range para {
		if n.Type == TypeWordNode && n.Attrs.Text == "," && para[i-1].Type == TypeText {
			t.Error("space emitted before a comma")
		}
	}

	// Speaker attributes survive.
	if out.Content[0].Attrs.DataName != "Mari" || len(out.Content[0].Attrs.Alternatives) == 0 {
		t.Errorf("speaker attrs = %+v, want name and alternatives kept", out.Content[0].Attrs)
	}
	if alts := Segments(out)[1].Alternatives; len(alts) != 1 || alts[0].Text != "kõik" {
		t.Errorf("alternatives after apply = %+v", alts)
	}
}

func TestApply_DeletedAndEmpty(t *testing.T) {
	t.Parallel()

	doc := newDoc(
		speaker("A", word("üks", 0, 1), word("kaks", 1, 2), word("kolm", 2, 3)),
		speaker("B", word("neli", 3, 4)),
	)
	out := Apply(doc, []types.SegmentAlignment{
		{SegmentIndex: 0, CorrectedText: "üks kolm"},
		{SegmentIndex: 1, CorrectedText: ""},
	})

	words := outWords(out)
	if len(words[0]) != 2 || words[0][1].Attrs.Text != "kolm" || !approx(*words[0][1].Attrs.Start, 2) {
		t.Errorf("turn A = %+v, want üks and kolm with kolm's timing", words[0])
	}
	if len(words[1]) != 1 || words[1][0].Attrs.Text != "neli" {
		t.Errorf("turn B = %+v, want copied unchanged", words[1])
	}
}

func TestApplyBlocks(t *testing.T) {
	t.Parallel()

	doc := newDoc(
		speaker("A", word("tere", 0, 1)),
		speaker("B", word("head", 1, 2)),
	)
	out := ApplyBlocks(doc, []correction.BlockResult{
		{BlockIndex: 0, Status: correction.StatusCompleted, Alignments: []types.SegmentAlignment{{SegmentIndex: 0, CorrectedText: "Tere!"}}},
		{BlockIndex: 1, Status: correction.StatusError, Alignments: []types.SegmentAlignment{{SegmentIndex: 1, CorrectedText: "Head!"}}},
	})

	if got := PlainText(out); got != "A: Tere!\n\nB: head" {
		t.Errorf("PlainText = %q, want only the completed block applied", got)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	doc := newDoc(
		speaker("A", word("tere", 0, 1), word("ohtust", 1, 2), word("kass", 2, 3)),
		speaker("B", word("üks", 3, 4), word("kaks", 4, 5)),
		speaker("C", word("puutumata", 5, 6)),
		speaker("D", word("kolm", 6, 7)),
	)
	st := Stats(doc, []types.SegmentAlignment{
		{SegmentIndex: 0, CorrectedText: "tere õhtust elevant"},
		{SegmentIndex: 1, CorrectedText: "üks"},
		{SegmentIndex: 3, CorrectedText: "kolm neli"},
	})

	want := CorrectionStats{
		TotalWords:            7,
		MatchedWords:          4,
		SubstitutedWords:      2,
		InsertedWords:         1,
		DeletedWords:          1,
		PhoneticSubstitutions: 1,
		SubstitutedCharacters: 7,
	}
	got := st
	got.CorrectionRate = 0
	if got != want {
		t.Errorf("Stats = %+v, want %+v", got, want)
	}
	if !approx(st.CorrectionRate, 4.0/7.0) {
		t.Errorf("CorrectionRate = %v, want %v", st.CorrectionRate, 4.0/7.0)
	}
	if p := st.RatePercent(); p != "57.14%" {
		t.Errorf("RatePercent = %q, want 57.14%%", p)
	}
}

func TestStats_NoWords(t *testing.T) {
	t.Parallel()

	st := Stats(newDoc(), nil)
	if st != (CorrectionStats{}) {
		t.Errorf("Stats(empty) = %+v", st)
	}
	if p := st.RatePercent(); p != "0%" {
		t.Errorf("RatePercent = %q, want 0%%", p)
	}
}
