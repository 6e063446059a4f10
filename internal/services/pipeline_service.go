package services

import (
	"context"
	"errors"

	"github.com/eclipselink/handoff-backend/internal/models"
	"github.com/eclipselink/handoff-backend/internal/queue"
	"github.com/eclipselink/handoff-backend/internal/repositories/postgres"
	"github.com/eclipselink/handoff-backend/internal/utils"
)

type StartPipelineInput struct {
	RecordingID        string
	HandoffID          string
	PatientID          string
	IsInitial          bool
	PreviousDocumentID *string
	Language           string
}

// PipelineService is the single entry point into the asynchronous
// transcription and generation pipeline.
type PipelineService interface {
	// Start enqueues exactly one transcribe job for the recording and
	// returns the job id.
	Start(ctx context.Context, in StartPipelineInput) (string, error)
}

type pipelineService struct {
	queue      queue.Queue
	recordings postgres.RecordingRepository
	handoffs   postgres.HandoffRepository
	documents  postgres.SBARRepository
}

func NewPipelineService(q queue.Queue, recordings postgres.RecordingRepository, handoffs postgres.HandoffRepository, documents postgres.SBARRepository) PipelineService {
	return &pipelineService{queue: q, recordings: recordings, handoffs: handoffs, documents: documents}
}

func (s *pipelineService) Start(ctx context.Context, in StartPipelineInput) (string, error) {
	const op = "PipelineService.Start"

	if in.RecordingID == "" || in.HandoffID == "" || in.PatientID == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "recording_id, handoff_id, and patient_id are required", nil)
	}
	if !in.IsInitial && in.PreviousDocumentID == nil {
		return "", utils.E(utils.CodeInvalidArgument, op, "previous_document_id is required for an update handoff", nil)
	}
	if in.IsInitial && in.PreviousDocumentID != nil {
		return "", utils.E(utils.CodeInvalidArgument, op, "initial handoff must not reference a previous document", nil)
	}

	rec, err := s.recordings.GetByID(ctx, in.RecordingID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return "", utils.E(utils.CodeNotFound, op, "recording not found", err)
		}
		return "", utils.E(utils.CodeInternal, op, "failed to load recording", err)
	}
	if rec.HandoffID != in.HandoffID {
		return "", utils.E(utils.CodeInvalidArgument, op, "recording does not belong to this handoff", nil)
	}

	if in.PreviousDocumentID != nil {
		prev, err := s.documents.GetByID(ctx, *in.PreviousDocumentID)
		if err != nil {
			if errors.Is(err, utils.ErrNotFound) {
				return "", utils.E(utils.CodeInvalidArgument, op, "previous document not found", err)
			}
			return "", utils.E(utils.CodeInternal, op, "failed to load previous document", err)
		}
		if prev.PatientID != in.PatientID {
			return "", utils.E(utils.CodeInvalidArgument, op, "previous document belongs to a different patient", nil)
		}
		if !prev.IsLatest {
			return "", utils.E(utils.CodeInvalidArgument, op, "previous document is not the latest version", nil)
		}
	}

	jobID, err := s.queue.Enqueue(ctx, queue.KindTranscribe, queue.TranscribePayload{
		RecordingID:        in.RecordingID,
		HandoffID:          in.HandoffID,
		PatientID:          in.PatientID,
		IsInitial:          in.IsInitial,
		PreviousDocumentID: in.PreviousDocumentID,
		Language:           in.Language,
	}, queue.Options{})
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "failed to enqueue transcribe job", err)
	}

	if err := s.recordings.UpdateStatus(ctx, in.RecordingID, models.RecordingQueued, ""); err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to mark recording queued", err)
	}
	if err := s.recordings.SetJobID(ctx, in.RecordingID, jobID); err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to store job id", err)
	}
	if err := s.handoffs.UpdateStatus(ctx, in.HandoffID, models.HandoffTranscribing, ""); err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to update handoff status", err)
	}

	return jobID, nil
}
