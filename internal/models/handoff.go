package models

import "time"

type HandoffStatus string

const (
	HandoffDraft        HandoffStatus = "draft"
	HandoffRecording    HandoffStatus = "recording"
	HandoffTranscribing HandoffStatus = "transcribing"
	HandoffGenerating   HandoffStatus = "generating"
	HandoffReady        HandoffStatus = "ready"
	HandoffFailed       HandoffStatus = "failed"
)

// Handoff is one link in a patient's handoff chain. The first handoff of
// a chain has IsInitial=true and no PreviousHandoffID.
type Handoff struct {
	ID        string        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	PatientID string        `gorm:"column:patient_id;type:uuid;index" json:"patient_id"`
	FromStaff string        `gorm:"column:from_staff_id;type:uuid" json:"from_staff_id"`
	ToStaff   string        `gorm:"column:to_staff_id;type:uuid" json:"to_staff_id,omitempty"`
	Status    HandoffStatus `gorm:"column:status;type:text;index" json:"status"`
	Priority  string        `gorm:"column:priority;type:text" json:"priority,omitempty"`

	IsInitial         bool    `gorm:"column:is_initial" json:"is_initial"`
	PreviousHandoffID *string `gorm:"column:previous_handoff_id;type:uuid" json:"previous_handoff_id,omitempty"`

	ErrorMessage string `gorm:"column:error_message;type:text" json:"error_message,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Handoff) TableName() string { return "handoffs" }
