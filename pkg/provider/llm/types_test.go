package llm

import "testing"

func TestEstimateTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		messages []Message
		want     int
	}{
		{"none", nil, 0},
		{"empty message", []Message{{Content: ""}}, 4},
		{"counts runes not bytes", []Message{{Content: "Tere õhtust"}}, 4 + 4},
		{"several", []Message{{Content: "abcdef"}, {Content: "abcdefg"}}, 2 + 4 + 3 + 4},
	}
	for _, tc := range tests {
		if got := EstimateTokens(tc.messages); got != tc.want {
			t.Errorf("%s: EstimateTokens = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestClampMaxTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		limit, requested, want int
	}{
		{0, 16384, 16384},
		{4096, 16384, 4096},
		{32768, 16384, 16384},
		{4096, 0, 0},
	}
	for _, tc := range tests {
		caps := ModelCapabilities{MaxOutputTokens: tc.limit}
		if got := caps.ClampMaxTokens(tc.requested); got != tc.want {
			t.Errorf("limit %d: ClampMaxTokens(%d) = %d, want %d", tc.limit, tc.requested, got, tc.want)
		}
	}
}
