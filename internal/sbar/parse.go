package sbar

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParse means the model output could not be interpreted as the
// required four-section JSON shape. Retryable: a re-sampled completion
// may parse.
var ErrParse = errors.New("sbar response not parseable")

// ErrValidation means the output parsed but section content was
// insufficient. Retryable under the same policy as ErrParse.
var ErrValidation = errors.New("sbar validation failed")

var (
	fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	bareObject = regexp.MustCompile(`(?s)\{.*\}`)
)

// sectionPayload is the JSON shape the model is instructed to return.
// Structured extracts are kept raw and stored verbatim.
type sectionPayload struct {
	Situation      string `json:"situation"`
	Background     string `json:"background"`
	Assessment     string `json:"assessment"`
	Recommendation string `json:"recommendation"`

	VitalSigns   json.RawMessage `json:"vitalSigns"`
	Medications  json.RawMessage `json:"medications"`
	Allergies    json.RawMessage `json:"allergies"`
	PendingTasks json.RawMessage `json:"pendingTasks"`
}

// parseResponse extracts the SBAR JSON object from a completion,
// tolerating surrounding code-fence markup.
func parseResponse(content string) (*sectionPayload, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty completion", ErrParse)
	}

	jsonText := content
	if m := fencedJSON.FindStringSubmatch(content); m != nil {
		jsonText = m[1]
	} else if m := bareObject.FindString(content); m != "" {
		jsonText = m
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	for _, key := range []string{"situation", "background", "assessment", "recommendation"} {
		if _, ok := raw[key]; !ok {
			return nil, fmt.Errorf("%w: missing required key %q", ErrParse, key)
		}
	}

	var payload sectionPayload
	if err := json.Unmarshal([]byte(jsonText), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	payload.Situation = strings.TrimSpace(payload.Situation)
	payload.Background = strings.TrimSpace(payload.Background)
	payload.Assessment = strings.TrimSpace(payload.Assessment)
	payload.Recommendation = strings.TrimSpace(payload.Recommendation)
	return &payload, nil
}
