package align_test

import (
	"math"
	"sync"
	"testing"

	"github.com/MrWong99/transcorrect/internal/transcript/align"
)

func TestMeasure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		original  []string
		corrected []string
		want      align.Metrics
	}{
		{
			name: "empty",
			want: align.Metrics{},
		},
		{
			name:      "only insertions",
			corrected: []string{"a", "b"},
			want:      align.Metrics{Insertions: 2, EditDistance: 2},
		},
		{
			name:      "identical",
			original:  []string{"a", "b", "c", "d"},
			corrected: []string{"a", "b", "c", "d"},
			want:      align.Metrics{TotalWords: 4, Matches: 4, Similarity: 1},
		},
		{
			name:      "one substitution in four",
			original:  []string{"a", "b", "c", "d"},
			corrected: []string{"a", "x", "c", "d"},
			want:      align.Metrics{TotalWords: 4, Matches: 3, Substitutions: 1, EditDistance: 1, Similarity: 0.75},
		},
		{
			// Shifted tail: diagonal steps win ties, so two substitutions.
			name:      "shifted tail",
			original:  []string{"a", "b", "c"},
			corrected: []string{"a", "c", "d"},
			want:      align.Metrics{TotalWords: 3, Matches: 1, Substitutions: 2, EditDistance: 2, Similarity: 1.0 / 3.0},
		},
		{
			name:      "trailing deletion",
			original:  []string{"a", "b"},
			corrected: []string{"a"},
			want:      align.Metrics{TotalWords: 2, Matches: 1, Deletions: 1, EditDistance: 1, Similarity: 0.5},
		},
		{
			name:      "more insertions than words",
			original:  []string{"a"},
			corrected: []string{"a", "b", "c"},
			want:      align.Metrics{TotalWords: 1, Matches: 1, Insertions: 2, EditDistance: 2, Similarity: -1},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := align.Measure(align.Align(tc.original, tc.corrected))
			if math.Abs(got.Similarity-tc.want.Similarity) > 1e-9 {
				t.Errorf("Similarity = %f, want %f", got.Similarity, tc.want.Similarity)
			}
			got.Similarity, tc.want.Similarity = 0, 0
			if got != tc.want {
				t.Errorf("Measure = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestCache_NormalizeAndClear(t *testing.T) {
	t.Parallel()

	a := align.New(nil)
	if got := a.Normalize("  Tere   ÕHTUST\tkõik "); got != "tere õhtust kõik" {
		t.Errorf("Normalize = %q, want %q", got, "tere õhtust kõik")
	}
	if got := a.Levenshtein("kitten", "sitting"); got != 3 {
		t.Errorf("Levenshtein(kitten, sitting) = %d, want 3", got)
	}
	if got := a.Levenshtein("sitting", "kitten"); got != 3 {
		t.Errorf("Levenshtein(sitting, kitten) = %d, want 3", got)
	}
	if got := a.Levenshtein("", "õun"); got != 3 {
		t.Errorf("Levenshtein(\"\", õun) = %d, want 3 (runes, not bytes)", got)
	}

	norm, dist := a.Cache().Len()
	if norm != 1 {
		t.Errorf("normalized entries = %d, want 1", norm)
	}
	if dist != 2 {
		t.Errorf("distance entries = %d, want 2 (symmetric pairs share an entry)", dist)
	}

	a.Cache().Clear()
	if norm, dist := a.Cache().Len(); norm != 0 || dist != 0 {
		t.Errorf("after Clear: Len = (%d, %d), want (0, 0)", norm, dist)
	}
}

func TestAligner_ConcurrentUse(t *testing.T) {
	t.Parallel()

	a := align.New(align.NewCache())
	orig := []string{"tere", "õhtust", "kõik", "vaatajad"}
	corr := []string{"Tere", "õhtust", "kõigile", "vaatajatele"}

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 50 {
				got := a.Align(orig, corr)
				if m := align.Measure(got); m.Substitutions != 2 || m.Matches != 2 {
					t.Errorf("concurrent Align metrics = %+v", m)
					return
				}
			}
		})
	}
	wg.Wait()
}
