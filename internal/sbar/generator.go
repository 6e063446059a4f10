package sbar

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/eclipselink/handoff-backend/internal/models"
	"github.com/eclipselink/handoff-backend/internal/providers/llm"
	"github.com/eclipselink/handoff-backend/internal/utils"
)

const (
	generationTemperature = 0.3
	initialMaxTokens      = 2500
	updateMaxTokens       = 2000
	minSectionLength      = 10
)

// stableMarker is the literal placeholder the model emits for a section
// it judges unchanged, e.g. "[Stable - see v2]".
var stableMarker = regexp.MustCompile(`(?i)\[Stable - see v\d+\]`)

type PatientContext struct {
	ID               string
	MRN              string
	FirstName        string
	LastName         string
	DateOfBirth      string
	Gender           string
	RoomNumber       string
	KnownAllergies   []string
	KnownMedications []string
}

type GenerateInput struct {
	HandoffID  string
	Transcript string
	Patient    PatientContext
	IsInitial  bool
	// Previous is the committed prior version; required when IsInitial
	// is false.
	Previous *models.SBARDocument
}

// Generator turns (transcript, patient context, previous document?) into
// the next SBAR document version.
type Generator struct {
	provider llm.Provider
	logger   *logrus.Logger
}

func NewGenerator(provider llm.Provider, logger *logrus.Logger) *Generator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Generator{provider: provider, logger: logger}
}

func (g *Generator) Generate(ctx context.Context, in GenerateInput) (*models.SBARDocument, error) {
	const op = "sbar.Generator.Generate"
	start := time.Now()

	if in.Transcript == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "transcript is required", nil)
	}
	if !in.IsInitial && in.Previous == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "previous document is required for an update handoff", nil)
	}

	maxTokens := initialMaxTokens
	if !in.IsInitial {
		maxTokens = updateMaxTokens
	}

	completion, err := g.provider.Complete(ctx, buildMessages(in), llm.Options{
		Temperature:      generationTemperature,
		MaxTokens:        maxTokens,
		TopP:             0.95,
		FrequencyPenalty: 0.2,
		PresencePenalty:  0.1,
	})
	if err != nil {
		return nil, err
	}

	payload, err := parseResponse(completion.Content)
	if err != nil {
		return nil, err
	}

	var changes []models.SBARChange
	if !in.IsInitial {
		mergeStableSections(payload, in.Previous)
		changes = detectChanges(payload, in.Previous)
	}

	if err := validateSections(payload, in.IsInitial); err != nil {
		return nil, err
	}

	doc := &models.SBARDocument{
		ID:        uuid.NewString(),
		HandoffID: in.HandoffID,
		PatientID: in.Patient.ID,

		Situation:      payload.Situation,
		Background:     payload.Background,
		Assessment:     payload.Assessment,
		Recommendation: payload.Recommendation,

		VitalSigns:   datatypes.JSON(payload.VitalSigns),
		Medications:  datatypes.JSON(payload.Medications),
		Allergies:    datatypes.JSON(payload.Allergies),
		PendingTasks: datatypes.JSON(payload.PendingTasks),

		Changes: changes,

		Model:            completion.Model,
		PromptTokens:     completion.PromptTokens,
		CompletionTokens: completion.CompletionTokens,
		GenerationMS:     time.Since(start).Milliseconds(),
	}

	if in.IsInitial {
		doc.Version = 1
		doc.IsInitial = true
	} else {
		doc.Version = in.Previous.Version + 1
		prevID := in.Previous.ID
		doc.PreviousVersionID = &prevID
	}
	doc.IsLatest = true

	doc.CompletenessScore = completenessScore(doc.Situation, doc.Background, doc.Assessment, doc.Recommendation)
	doc.ReadabilityScore = readabilityScore(doc.Situation, doc.Background, doc.Assessment, doc.Recommendation)

	g.logger.WithFields(logrus.Fields{
		"handoff_id":   in.HandoffID,
		"version":      doc.Version,
		"is_initial":   doc.IsInitial,
		"changes":      len(changes),
		"completeness": doc.CompletenessScore,
		"readability":  doc.ReadabilityScore,
		"tokens":       completion.TotalTokens,
	}).Info("sbar document generated")

	return doc, nil
}

// mergeStableSections replaces any section the model marked stable with
// the previous version's text, verbatim. This runs unconditionally for
// updates; it is what prevents section loss across versions.
func mergeStableSections(payload *sectionPayload, previous *models.SBARDocument) {
	if stableMarker.MatchString(payload.Situation) {
		payload.Situation = previous.Situation
	}
	if stableMarker.MatchString(payload.Background) {
		payload.Background = previous.Background
	}
	if stableMarker.MatchString(payload.Assessment) {
		payload.Assessment = previous.Assessment
	}
	if stableMarker.MatchString(payload.Recommendation) {
		payload.Recommendation = previous.Recommendation
	}
}

// detectChanges compares merged sections against the previous version
// through structured vitals extraction rather than raw text diff, so
// cosmetic rewording does not flood the change list.
func detectChanges(payload *sectionPayload, previous *models.SBARDocument) []models.SBARChange {
	newSituation := ExtractVitals(payload.Situation)
	newAssessment := ExtractVitals(payload.Assessment)
	oldSituation := ExtractVitals(previous.Situation)
	oldAssessment := ExtractVitals(previous.Assessment)

	newVitals := combineVitals(newSituation, newAssessment)
	oldVitals := combineVitals(oldSituation, oldAssessment)

	var changes []models.SBARChange
	for _, p := range vitalPatterns {
		oldVal, hadOld := oldVitals[p.field]
		newVal, hasNew := newVitals[p.field]

		switch {
		case hadOld && hasNew && oldVal != newVal:
			changes = append(changes, models.SBARChange{
				Section:       vitalSection(p.field, newSituation),
				Type:          models.ChangeUpdate,
				Field:         p.field,
				PreviousValue: oldVal,
				NewValue:      newVal,
				Significance:  models.SignificanceHigh,
			})
		case !hadOld && hasNew:
			changes = append(changes, models.SBARChange{
				Section:      vitalSection(p.field, newSituation),
				Type:         models.ChangeAddition,
				Field:        p.field,
				NewValue:     newVal,
				Significance: models.SignificanceHigh,
			})
		case hadOld && !hasNew:
			changes = append(changes, models.SBARChange{
				Section:       vitalSection(p.field, oldSituation),
				Type:          models.ChangeRemoval,
				Field:         p.field,
				PreviousValue: oldVal,
				Significance:  models.SignificanceHigh,
			})
		}
	}

	if payload.Background != previous.Background && medicationMention.MatchString(payload.Background+" "+previous.Background) {
		changes = append(changes, models.SBARChange{
			Section:      models.SectionBackground,
			Type:         models.ChangeUpdate,
			Field:        "medications",
			Significance: models.SignificanceMedium,
		})
	}

	return changes
}

// combineVitals merges per-section extractions, situation first, which
// mirrors reading the sections in order.
func combineVitals(situation, assessment map[string]string) map[string]string {
	out := make(map[string]string, len(situation)+len(assessment))
	for k, v := range assessment {
		out[k] = v
	}
	for k, v := range situation {
		out[k] = v
	}
	return out
}

// vitalSection attributes a vital to the section its value was read
// from.
func vitalSection(field string, situation map[string]string) models.SBARSection {
	if _, ok := situation[field]; ok {
		return models.SectionSituation
	}
	return models.SectionAssessment
}

// validateSections enforces minimum content after merge. An update must
// have all four sections pass; the initial version may miss one.
func validateSections(payload *sectionPayload, isInitial bool) error {
	sections := map[models.SBARSection]string{
		models.SectionSituation:      payload.Situation,
		models.SectionBackground:     payload.Background,
		models.SectionAssessment:     payload.Assessment,
		models.SectionRecommendation: payload.Recommendation,
	}

	passing := 0
	var firstShort models.SBARSection
	for _, name := range sectionOrder {
		if len(sections[name]) >= minSectionLength {
			passing++
		} else if firstShort == "" {
			firstShort = name
		}
	}

	if isInitial {
		if passing < 3 {
			return fmt.Errorf("%w: initial version has only %d of 4 usable sections", ErrValidation, passing)
		}
		return nil
	}
	if passing < 4 {
		return fmt.Errorf("%w: section %q missing or too short after merge", ErrValidation, firstShort)
	}
	return nil
}
