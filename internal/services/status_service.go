package services

import (
	"context"
	"errors"
	"time"

	"github.com/eclipselink/handoff-backend/internal/cache"
	"github.com/eclipselink/handoff-backend/internal/models"
	mongorepo "github.com/eclipselink/handoff-backend/internal/repositories/mongo"
	"github.com/eclipselink/handoff-backend/internal/repositories/postgres"
	"github.com/eclipselink/handoff-backend/internal/utils"
)

const statusCacheTTL = 2 * time.Second

// PipelineStatus is the client-facing projection of where a handoff is
// in the pipeline. It is derived, never stored.
type PipelineStatus struct {
	HandoffID     string `json:"handoff_id"`
	RecordingID   string `json:"recording_id,omitempty"`
	Stage         string `json:"stage"`
	Progress      int    `json:"progress"`
	Version       int    `json:"version,omitempty"`
	DocumentID    string `json:"document_id,omitempty"`
	Transcription string `json:"transcription,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

type StatusService interface {
	Get(ctx context.Context, handoffID string) (*PipelineStatus, error)
	GetByRecording(ctx context.Context, recordingID string) (*PipelineStatus, error)
}

type statusService struct {
	handoffs    postgres.HandoffRepository
	recordings  postgres.RecordingRepository
	documents   postgres.SBARRepository
	transcripts mongorepo.TranscriptRepository
	cache       cache.Cache
}

func NewStatusService(
	handoffs postgres.HandoffRepository,
	recordings postgres.RecordingRepository,
	documents postgres.SBARRepository,
	transcripts mongorepo.TranscriptRepository,
	c cache.Cache,
) StatusService {
	return &statusService{
		handoffs:    handoffs,
		recordings:  recordings,
		documents:   documents,
		transcripts: transcripts,
		cache:       c,
	}
}

func (s *statusService) Get(ctx context.Context, handoffID string) (*PipelineStatus, error) {
	const op = "StatusService.Get"

	if handoffID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "handoff_id is required", nil)
	}

	cacheKey := "status:handoff:" + handoffID
	if s.cache != nil {
		var cached PipelineStatus
		if hit, _ := s.cache.GetJSON(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
	}

	h, err := s.handoffs.GetByID(ctx, handoffID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "handoff not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load handoff", err)
	}

	out := project(h)
	if h.Status == models.HandoffReady {
		if doc, err := s.documents.GetByHandoff(ctx, handoffID); err == nil {
			out.Version = doc.Version
			out.DocumentID = doc.ID
		}
	}

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, cacheKey, out, statusCacheTTL)
	}
	return out, nil
}

func (s *statusService) GetByRecording(ctx context.Context, recordingID string) (*PipelineStatus, error) {
	const op = "StatusService.GetByRecording"

	if recordingID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "recording_id is required", nil)
	}

	cacheKey := "status:recording:" + recordingID
	if s.cache != nil {
		var cached PipelineStatus
		if hit, _ := s.cache.GetJSON(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
	}

	rec, err := s.recordings.GetByID(ctx, recordingID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "recording not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load recording", err)
	}

	out, err := s.Get(ctx, rec.HandoffID)
	if err != nil {
		return nil, err
	}
	out.RecordingID = rec.ID

	// The transcript exists from the moment transcription succeeds,
	// even while generation is still running.
	if rec.Status == models.RecordingTranscribed && s.transcripts != nil {
		if t, err := s.transcripts.GetByRecordingID(ctx, recordingID); err == nil {
			out.Transcription = t.Text
		}
	}

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, cacheKey, out, statusCacheTTL)
	}
	return out, nil
}

// project collapses the persisted handoff state machine into the five
// stages clients poll for.
func project(h *models.Handoff) *PipelineStatus {
	out := &PipelineStatus{HandoffID: h.ID}
	switch h.Status {
	case models.HandoffDraft, models.HandoffRecording:
		out.Stage = "queued"
		out.Progress = 10
	case models.HandoffTranscribing:
		out.Stage = "transcribing"
		out.Progress = 40
	case models.HandoffGenerating:
		out.Stage = "generating"
		out.Progress = 75
	case models.HandoffReady:
		out.Stage = "ready"
		out.Progress = 100
	case models.HandoffFailed:
		out.Stage = "failed"
		out.Progress = 100
		out.ErrorMessage = h.ErrorMessage
	default:
		out.Stage = "queued"
		out.Progress = 10
	}
	return out
}
