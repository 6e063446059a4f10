package sbar

import (
	"math"
	"regexp"
	"strings"
)

var (
	vitalsMention     = regexp.MustCompile(`(?i)\d+/\d+|HR|BP|temp|O2 sat|SpO2`)
	medicationMention = regexp.MustCompile(`(?i)medication|drug|dose|mg|ml`)
	allergyMention    = regexp.MustCompile(`(?i)allerg|NKDA`)
	taskMention       = regexp.MustCompile(`(?i)follow.?up|monitor|continue|discharge|pending`)

	sentenceSplit = regexp.MustCompile(`[.!?]+`)
	whitespace    = regexp.MustCompile(`\s+`)
	nonLetter     = regexp.MustCompile(`[^a-z]`)
	vowelCluster  = regexp.MustCompile(`[aeiouy]+`)
)

// completenessScore is the fraction of {vitals, medications, allergies,
// tasks} detected across the merged sections, always a quarter
// increment in [0, 1].
func completenessScore(situation, background, assessment, recommendation string) float64 {
	checks := []bool{
		vitalsMention.MatchString(situation + " " + assessment),
		medicationMention.MatchString(background),
		allergyMention.MatchString(background),
		taskMention.MatchString(recommendation),
	}

	present := 0
	for _, ok := range checks {
		if ok {
			present++
		}
	}
	return float64(present) / float64(len(checks))
}

// readabilityScore is a simplified Flesch reading-ease estimate mapped
// into [0, 1]. Syllables are approximated by vowel-cluster counting.
func readabilityScore(sections ...string) float64 {
	text := strings.TrimSpace(strings.Join(sections, " "))
	if text == "" {
		return 0
	}

	sentences := 0
	for _, s := range sentenceSplit.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	if sentences == 0 {
		sentences = 1
	}

	words := whitespace.Split(text, -1)
	wordCount := 0
	syllables := 0
	for _, w := range words {
		if w == "" {
			continue
		}
		wordCount++
		syllables += countSyllables(w)
	}
	if wordCount == 0 {
		return 0
	}

	flesch := 206.835 - 1.015*(float64(wordCount)/float64(sentences)) - 84.6*(float64(syllables)/float64(wordCount))

	// 60-100 reads comfortably; map 40-100 onto [0,1].
	return math.Max(0, math.Min(1, (flesch-40)/60))
}

func countSyllables(word string) int {
	word = nonLetter.ReplaceAllString(strings.ToLower(word), "")
	clusters := vowelCluster.FindAllString(word, -1)
	if len(clusters) == 0 {
		return 1
	}
	return len(clusters)
}
