package stt

import (
	"math"
	"strings"
)

const (
	baseConfidence        = 0.85
	inaudiblePenalty      = 0.15
	shortTextPenalty      = 0.10
	fewSegmentsPenalty    = 0.05
	shortTextThreshold    = 100
	fewSegmentsThreshold  = 5
	minEstimateConfidence = 0.5
)

// EstimateConfidence derives a confidence score for a transcript. The
// hosted speech APIs do not return one, so we start from a base score and
// penalize inaudible markers, very short output, and very few segments,
// clamped to [0.5, 1.0]. This is a heuristic, not a calibrated
// probability.
func EstimateConfidence(text string, segmentCount int) float64 {
	if text == "" {
		return 0
	}

	conf := baseConfidence
	if strings.Contains(strings.ToLower(text), "[inaudible]") {
		conf -= inaudiblePenalty
	}
	if len(text) < shortTextThreshold {
		conf -= shortTextPenalty
	}
	if segmentCount < fewSegmentsThreshold {
		conf -= fewSegmentsPenalty
	}

	return math.Max(minEstimateConfidence, math.Min(1.0, conf))
}
