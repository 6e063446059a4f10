package models

import (
	"time"

	"gorm.io/datatypes"
)

type Patient struct {
	ID          string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	MRN         string `gorm:"column:mrn;type:text;uniqueIndex" json:"mrn"`
	FirstName   string `gorm:"column:first_name;type:text" json:"first_name"`
	LastName    string `gorm:"column:last_name;type:text" json:"last_name"`
	DateOfBirth string `gorm:"column:date_of_birth;type:date" json:"date_of_birth"`
	Gender      string `gorm:"column:gender;type:text" json:"gender"`
	RoomNumber  string `gorm:"column:room_number;type:text" json:"room_number,omitempty"`
	BedNumber   string `gorm:"column:bed_number;type:text" json:"bed_number,omitempty"`

	// Baseline clinical context fed into generation prompts.
	KnownAllergies   datatypes.JSON `gorm:"column:known_allergies;type:jsonb" json:"known_allergies,omitempty"`
	KnownMedications datatypes.JSON `gorm:"column:known_medications;type:jsonb" json:"known_medications,omitempty"`

	AdmittedAt *time.Time `gorm:"column:admitted_at;type:timestamptz" json:"admitted_at,omitempty"`
	CreatedAt  time.Time  `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Patient) TableName() string { return "patients" }
