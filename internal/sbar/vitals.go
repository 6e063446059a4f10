package sbar

import "regexp"

// Vital-sign extraction is a regex heuristic, not a clinical-grade
// parser. It is kept behind this function so a stricter structured
// extractor can replace it without touching the versioning algorithm.

const (
	FieldBloodPressure    = "bloodPressure"
	FieldHeartRate        = "heartRate"
	FieldTemperature      = "temperature"
	FieldOxygenSaturation = "oxygenSaturation"
)

var vitalPatterns = []struct {
	field string
	re    *regexp.Regexp
}{
	{FieldBloodPressure, regexp.MustCompile(`(?i)(?:BP|blood pressure)[:\s]+(\d{2,3}/\d{2,3})`)},
	{FieldHeartRate, regexp.MustCompile(`(?i)(?:HR|heart rate)[:\s]+(\d{2,3})`)},
	{FieldTemperature, regexp.MustCompile(`(?i)(?:temp|temperature)[:\s]+(\d+\.?\d*\s*°?\s*[FC])`)},
	{FieldOxygenSaturation, regexp.MustCompile(`(?i)(?:O2 sat|SpO2)[:\s]+(\d{2,3}%)`)},
}

// ExtractVitals pulls structured vital-sign values out of free text.
func ExtractVitals(text string) map[string]string {
	vitals := map[string]string{}
	for _, p := range vitalPatterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			vitals[p.field] = m[1]
		}
	}
	return vitals
}
