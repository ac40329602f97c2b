package domain

import "testing"

func TestHashText_Deterministic(t *testing.T) {
	a := HashText("refund issues")
	b := HashText("refund issues")
	if a != b {
		t.Fatalf("hash not deterministic: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if HashText("refund issue") == a {
		t.Error("different texts produced the same hash")
	}
}

func TestHashText_KnownValue(t *testing.T) {
	// sha256("")
	const want = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := HashText(""); got != want {
		t.Errorf("HashText(\"\") = %q, want %q", got, want)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		chars, want int
	}{
		{0, 1},
		{3, 1},
		{8, 2},
		{400, 100},
	}
	for _, tc := range tests {
		if got := EstimateTokens(tc.chars); got != tc.want {
			t.Errorf("EstimateTokens(%d) = %d, want %d", tc.chars, got, tc.want)
		}
	}
}
