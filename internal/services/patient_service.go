package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/eclipselink/handoff-backend/internal/models"
	"github.com/eclipselink/handoff-backend/internal/repositories/postgres"
	"github.com/eclipselink/handoff-backend/internal/utils"
)

type PatientService interface {
	Create(ctx context.Context, p *models.Patient) (*models.Patient, error)
	Get(ctx context.Context, patientID string) (*models.Patient, error)
}

type patientService struct {
	patients postgres.PatientRepository
}

func NewPatientService(patients postgres.PatientRepository) PatientService {
	return &patientService{patients: patients}
}

func (s *patientService) Create(ctx context.Context, p *models.Patient) (*models.Patient, error) {
	const op = "PatientService.Create"

	if p.MRN == "" || p.FirstName == "" || p.LastName == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "mrn, first_name, and last_name are required", nil)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.patients.Create(ctx, p); err != nil {
		if errors.Is(err, utils.ErrConflict) {
			return nil, utils.E(utils.CodeConflict, op, "a patient with this mrn already exists", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to create patient", err)
	}
	return p, nil
}

func (s *patientService) Get(ctx context.Context, patientID string) (*models.Patient, error) {
	const op = "PatientService.Get"

	if patientID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "patient_id is required", nil)
	}
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "patient not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load patient", err)
	}
	return p, nil
}
