package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/eclipselink/handoff-backend/internal/models"
	"github.com/eclipselink/handoff-backend/internal/repositories/postgres"
	"github.com/eclipselink/handoff-backend/internal/storage"
	"github.com/eclipselink/handoff-backend/internal/utils"
)

const (
	maxRecordingBytes = 50 << 20
	downloadURLTTL    = 15 * time.Minute
)

var allowedAudioTypes = map[string]string{
	"audio/webm":   "webm",
	"audio/wav":    "wav",
	"audio/x-wav":  "wav",
	"audio/mpeg":   "mp3",
	"audio/mp4":    "m4a",
	"audio/ogg":    "ogg",
	"video/webm":   "webm",
	"audio/x-m4a":  "m4a",
	"audio/aac":    "aac",
	"audio/flac":   "flac",
	"audio/x-flac": "flac",
}

type UploadRecordingInput struct {
	PatientID          string
	UploadedBy         string
	IsInitial          bool
	PreviousDocumentID *string
	Language           string

	ContentType     string
	Size            int64
	DurationSeconds int
	Audio           io.Reader
}

type UploadRecordingResult struct {
	Handoff   *models.Handoff        `json:"handoff"`
	Recording *models.VoiceRecording `json:"recording"`
	JobID     string                 `json:"job_id"`
}

// VoiceService owns the synchronous half of the pipeline: accept the
// recording, persist it, and hand it to the queue.
type VoiceService interface {
	Upload(ctx context.Context, in UploadRecordingInput) (*UploadRecordingResult, error)
	Get(ctx context.Context, recordingID string) (*models.VoiceRecording, error)
	DownloadURL(ctx context.Context, recordingID string) (string, error)
}

type voiceService struct {
	store      storage.Store
	recordings postgres.RecordingRepository
	handoffs   postgres.HandoffRepository
	patients   postgres.PatientRepository
	pipeline   PipelineService
}

func NewVoiceService(store storage.Store, recordings postgres.RecordingRepository, handoffs postgres.HandoffRepository, patients postgres.PatientRepository, pipeline PipelineService) VoiceService {
	return &voiceService{
		store:      store,
		recordings: recordings,
		handoffs:   handoffs,
		patients:   patients,
		pipeline:   pipeline,
	}
}

func (s *voiceService) Upload(ctx context.Context, in UploadRecordingInput) (*UploadRecordingResult, error) {
	const op = "VoiceService.Upload"

	if in.PatientID == "" || in.UploadedBy == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "patient_id and uploaded_by are required", nil)
	}
	if in.Audio == nil || in.Size <= 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "audio body is required", nil)
	}
	if in.Size > maxRecordingBytes {
		return nil, utils.E(utils.CodeInvalidArgument, op, "recording exceeds maximum size", nil)
	}
	format, ok := allowedAudioTypes[in.ContentType]
	if !ok {
		return nil, utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("unsupported audio type %q", in.ContentType), nil)
	}
	if !in.IsInitial && in.PreviousDocumentID == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "previous_document_id is required for an update handoff", nil)
	}

	if _, err := s.patients.GetByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "patient not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load patient", err)
	}

	now := time.Now().UTC()
	handoff := &models.Handoff{
		ID:        uuid.NewString(),
		PatientID: in.PatientID,
		FromStaff: in.UploadedBy,
		Status:    models.HandoffRecording,
		IsInitial: in.IsInitial,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.handoffs.Create(ctx, handoff); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create handoff", err)
	}

	recordingID := uuid.NewString()
	objectName := path.Join("recordings", in.PatientID, handoff.ID, recordingID+"."+format)

	storedPath, err := s.store.Upload(ctx, objectName, in.ContentType, io.LimitReader(in.Audio, maxRecordingBytes))
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to store recording", err)
	}

	rec := &models.VoiceRecording{
		ID:              recordingID,
		HandoffID:       handoff.ID,
		UploadedBy:      in.UploadedBy,
		Status:          models.RecordingUploaded,
		DurationSeconds: in.DurationSeconds,
		FileSize:        in.Size,
		AudioFormat:     format,
		ObjectPath:      storedPath,
		UploadedAt:      now,
		CreatedAt:       now,
	}
	if err := s.recordings.Create(ctx, rec); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create recording", err)
	}

	jobID, err := s.pipeline.Start(ctx, StartPipelineInput{
		RecordingID:        rec.ID,
		HandoffID:          handoff.ID,
		PatientID:          in.PatientID,
		IsInitial:          in.IsInitial,
		PreviousDocumentID: in.PreviousDocumentID,
		Language:           in.Language,
	})
	if err != nil {
		return nil, err
	}

	rec.Status = models.RecordingQueued
	rec.TranscribeJobID = jobID
	handoff.Status = models.HandoffTranscribing
	return &UploadRecordingResult{Handoff: handoff, Recording: rec, JobID: jobID}, nil
}

func (s *voiceService) Get(ctx context.Context, recordingID string) (*models.VoiceRecording, error) {
	const op = "VoiceService.Get"

	if recordingID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "recording_id is required", nil)
	}
	rec, err := s.recordings.GetByID(ctx, recordingID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "recording not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load recording", err)
	}
	return rec, nil
}

func (s *voiceService) DownloadURL(ctx context.Context, recordingID string) (string, error) {
	const op = "VoiceService.DownloadURL"

	rec, err := s.Get(ctx, recordingID)
	if err != nil {
		return "", err
	}
	url, err := s.store.SignedGetURL(ctx, rec.ObjectPath, downloadURLTTL)
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "failed to sign download url", err)
	}
	return url, nil
}
