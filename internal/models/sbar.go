package models

import (
	"time"

	"gorm.io/datatypes"
)

type SBARSection string

const (
	SectionSituation      SBARSection = "situation"
	SectionBackground     SBARSection = "background"
	SectionAssessment     SBARSection = "assessment"
	SectionRecommendation SBARSection = "recommendation"
)

type ChangeType string

const (
	ChangeAddition  ChangeType = "addition"
	ChangeRemoval   ChangeType = "removal"
	ChangeUpdate    ChangeType = "update"
	ChangeUnchanged ChangeType = "unchanged"
)

type Significance string

const (
	SignificanceHigh   Significance = "high"
	SignificanceMedium Significance = "medium"
	SignificanceLow    Significance = "low"
)

// SBARChange is one detected delta between consecutive document versions.
type SBARChange struct {
	Section       SBARSection  `json:"section"`
	Type          ChangeType   `json:"type"`
	Field         string       `json:"field,omitempty"`
	PreviousValue string       `json:"previous_value,omitempty"`
	NewValue      string       `json:"new_value,omitempty"`
	Significance  Significance `json:"significance"`
}

// SBARDocument is one committed version of a patient's evolving clinical
// note. Versions for one patient form a linear chain through
// PreviousVersionID; exactly one document per chain is the latest.
type SBARDocument struct {
	ID        string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	HandoffID string `gorm:"column:handoff_id;type:uuid;uniqueIndex:uniq_handoff_version" json:"handoff_id"`
	PatientID string `gorm:"column:patient_id;type:uuid;index" json:"patient_id"`

	Version           int     `gorm:"column:version;uniqueIndex:uniq_handoff_version" json:"version"`
	PreviousVersionID *string `gorm:"column:previous_version_id;type:uuid" json:"previous_version_id,omitempty"`
	IsInitial         bool    `gorm:"column:is_initial" json:"is_initial"`
	IsLatest          bool    `gorm:"column:is_latest;index" json:"is_latest"`

	Situation      string `gorm:"column:situation;type:text" json:"situation"`
	Background     string `gorm:"column:background;type:text" json:"background"`
	Assessment     string `gorm:"column:assessment;type:text" json:"assessment"`
	Recommendation string `gorm:"column:recommendation;type:text" json:"recommendation"`

	// Structured extracts as emitted by the model, stored verbatim.
	VitalSigns   datatypes.JSON `gorm:"column:vital_signs;type:jsonb" json:"vital_signs,omitempty"`
	Medications  datatypes.JSON `gorm:"column:medications;type:jsonb" json:"medications,omitempty"`
	Allergies    datatypes.JSON `gorm:"column:allergies;type:jsonb" json:"allergies,omitempty"`
	PendingTasks datatypes.JSON `gorm:"column:pending_tasks;type:jsonb" json:"pending_tasks,omitempty"`

	Changes []SBARChange `gorm:"column:changes;type:jsonb;serializer:json" json:"changes_since_last_version,omitempty"`

	CompletenessScore float64 `gorm:"column:completeness_score" json:"completeness_score"`
	ReadabilityScore  float64 `gorm:"column:readability_score" json:"readability_score"`

	SourceRecordingID string `gorm:"column:source_recording_id;type:uuid" json:"source_recording_id,omitempty"`

	Model            string `gorm:"column:model;type:text" json:"model"`
	PromptTokens     int    `gorm:"column:prompt_tokens" json:"prompt_tokens"`
	CompletionTokens int    `gorm:"column:completion_tokens" json:"completion_tokens"`
	GenerationMS     int64  `gorm:"column:generation_ms" json:"generation_ms"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (SBARDocument) TableName() string { return "sbar_documents" }

// Section returns one of the four section texts by name.
func (d *SBARDocument) Section(s SBARSection) string {
	switch s {
	case SectionSituation:
		return d.Situation
	case SectionBackground:
		return d.Background
	case SectionAssessment:
		return d.Assessment
	case SectionRecommendation:
		return d.Recommendation
	}
	return ""
}
