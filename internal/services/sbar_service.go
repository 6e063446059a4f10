package services

import (
	"context"
	"errors"

	"github.com/eclipselink/handoff-backend/internal/models"
	mongorepo "github.com/eclipselink/handoff-backend/internal/repositories/mongo"
	"github.com/eclipselink/handoff-backend/internal/repositories/postgres"
	"github.com/eclipselink/handoff-backend/internal/utils"
)

type SBARService interface {
	GetByHandoff(ctx context.Context, handoffID string) (*models.SBARDocument, error)
	GetLatestForPatient(ctx context.Context, patientID string) (*models.SBARDocument, error)
	History(ctx context.Context, patientID string) ([]models.SBARDocument, error)
	TranscriptForRecording(ctx context.Context, recordingID string) (*models.Transcript, error)
}

type sbarService struct {
	documents   postgres.SBARRepository
	transcripts mongorepo.TranscriptRepository
}

func NewSBARService(documents postgres.SBARRepository, transcripts mongorepo.TranscriptRepository) SBARService {
	return &sbarService{documents: documents, transcripts: transcripts}
}

func (s *sbarService) GetByHandoff(ctx context.Context, handoffID string) (*models.SBARDocument, error) {
	const op = "SBARService.GetByHandoff"

	if handoffID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "handoff_id is required", nil)
	}
	doc, err := s.documents.GetByHandoff(ctx, handoffID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "no document for this handoff", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load document", err)
	}
	return doc, nil
}

func (s *sbarService) GetLatestForPatient(ctx context.Context, patientID string) (*models.SBARDocument, error) {
	const op = "SBARService.GetLatestForPatient"

	if patientID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "patient_id is required", nil)
	}
	doc, err := s.documents.GetLatestForPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "patient has no documents", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load latest document", err)
	}
	return doc, nil
}

func (s *sbarService) History(ctx context.Context, patientID string) ([]models.SBARDocument, error) {
	const op = "SBARService.History"

	if patientID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "patient_id is required", nil)
	}
	docs, err := s.documents.ListVersions(ctx, patientID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list versions", err)
	}
	return docs, nil
}

func (s *sbarService) TranscriptForRecording(ctx context.Context, recordingID string) (*models.Transcript, error) {
	const op = "SBARService.TranscriptForRecording"

	if recordingID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "recording_id is required", nil)
	}
	t, err := s.transcripts.GetByRecordingID(ctx, recordingID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "transcript not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load transcript", err)
	}
	return t, nil
}
