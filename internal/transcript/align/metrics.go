package align

// Metrics summarises an edit script.
type Metrics struct {
	// TotalWords counts the original words: matches, substitutions, and
	// deletions. Insertions have no original counterpart and are excluded.
	TotalWords int

	Matches       int
	Substitutions int
	Insertions    int
	Deletions     int

	// EditDistance is Substitutions + Insertions + Deletions.
	EditDistance int

	// Similarity is 1 - EditDistance/TotalWords, or 0 when TotalWords is 0.
	// It can be negative when insertions outnumber the original words.
	Similarity float64
}

// Measure computes [Metrics] for alignments. It has no side effects.
func Measure(alignments []WordAlignment) Metrics {
	var m Metrics
	for _, a := range alignments {
		switch a.Op {
		case OpMatch:
			m.Matches++
		case OpSubstitute:
			m.Substitutions++
		case OpInsert:
			m.Insertions++
		case OpDelete:
			m.Deletions++
		}
	}
	m.TotalWords = m.Matches + m.Substitutions + m.Deletions
	m.EditDistance = m.Substitutions + m.Insertions + m.Deletions
	if m.TotalWords > 0 {
		m.Similarity = 1 - float64(m.EditDistance)/float64(m.TotalWords)
	}
	return m
}

// WordDistance returns the word-level Levenshtein distance between a and b,
// comparing words after normalisation. It is computed independently of
// [Aligner.Align] and is used to cross-check edit scripts.
func WordDistance(a, b []string) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)
	for i := range prev {
		prev[i] = i
	}
	for j := 1; j <= len(b); j++ {
		curr[0] = j
		bw := Normalize(b[j-1])
		for i := 1; i <= len(a); i++ {
			cost := 1
			if Normalize(a[i-1]) == bw {
				cost = 0
			}
			curr[i] = min(prev[i]+1, curr[i-1]+1, prev[i-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(a)]
}
