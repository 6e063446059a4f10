package stt

import (
	"strings"
	"testing"
)

func TestEstimateConfidence(t *testing.T) {
	longText := strings.Repeat("patient remains stable overnight ", 10)

	cases := []struct {
		name     string
		text     string
		segments int
		want     float64
	}{
		{"empty", "", 0, 0},
		{"clean long transcript", longText, 12, 0.85},
		{"inaudible marker", longText + " [inaudible] ", 12, 0.70},
		{"short text", "BP stable.", 12, 0.75},
		{"few segments", longText, 2, 0.80},
		{"all penalties stack", "[inaudible]", 1, 0.55},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EstimateConfidence(tc.text, tc.segments)
			if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
