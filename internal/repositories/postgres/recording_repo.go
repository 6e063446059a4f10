package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/eclipselink/handoff-backend/internal/models"
	"github.com/eclipselink/handoff-backend/internal/utils"
)

type RecordingRepository interface {
	Create(ctx context.Context, rec *models.VoiceRecording) error
	GetByID(ctx context.Context, id string) (*models.VoiceRecording, error)
	UpdateStatus(ctx context.Context, id string, status models.RecordingStatus, errorMessage string) error
	SetJobID(ctx context.Context, id, jobID string) error
	MarkProcessed(ctx context.Context, id string, at time.Time) error
}

type recordingRepo struct {
	db *gorm.DB
}

func NewRecordingRepo(db *gorm.DB) RecordingRepository {
	return &recordingRepo{db: db}
}

func (r *recordingRepo) Create(ctx context.Context, rec *models.VoiceRecording) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *recordingRepo) GetByID(ctx context.Context, id string) (*models.VoiceRecording, error) {
	var row models.VoiceRecording
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *recordingRepo) UpdateStatus(ctx context.Context, id string, status models.RecordingStatus, errorMessage string) error {
	updates := map[string]any{"status": status}
	if errorMessage != "" {
		updates["error_message"] = errorMessage
	}
	return r.db.WithContext(ctx).
		Model(&models.VoiceRecording{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *recordingRepo) SetJobID(ctx context.Context, id, jobID string) error {
	return r.db.WithContext(ctx).
		Model(&models.VoiceRecording{}).
		Where("id = ?", id).
		Update("transcribe_job_id", jobID).Error
}

func (r *recordingRepo) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.VoiceRecording{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       models.RecordingTranscribed,
			"processed_at": at,
		}).Error
}
