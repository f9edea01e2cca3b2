package timeparse

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"1d 2h 3m 4s", 24*time.Hour + 2*time.Hour + 3*time.Minute + 4*time.Second},
		{"3m", 3 * time.Minute},
		{"2h30s", 2*time.Hour + 30*time.Second},
		{"45s", 45 * time.Second},
		{"0s", 0},
		{"", 0},
		{"I can't wait!", 0},
		{"no numbers here", 0},
		// Commentary around the expression is tolerated.
		{"Sure, I'd wait about 2h before replying.", 2 * time.Hour},
		// Leftmost occurrence per unit wins.
		{"I would wait 55s no wait, 14s", 55 * time.Second},
		{"10m then another 5m", 10 * time.Minute},
		// Units can arrive in any order.
		{"4s 3m 2h 1d", 24*time.Hour + 2*time.Hour + 3*time.Minute + 4*time.Second},
	}
	for _, tc := range cases {
		if got := Parse(tc.in); got != tc.want {
			t.Errorf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseOverflowDigitsIgnored(t *testing.T) {
	// A run of digits too large for int64 is treated as absent, not an error.
	if got := Parse("99999999999999999999d 5m"); got != 5*time.Minute {
		t.Errorf("got %v, want 5m", got)
	}
}
