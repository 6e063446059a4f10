package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/eclipselink/handoff-backend/internal/models"
	"github.com/eclipselink/handoff-backend/internal/utils"
)

type HandoffRepository interface {
	Create(ctx context.Context, h *models.Handoff) error
	GetByID(ctx context.Context, id string) (*models.Handoff, error)
	ListByPatient(ctx context.Context, patientID string, limit int) ([]models.Handoff, error)
	UpdateStatus(ctx context.Context, id string, status models.HandoffStatus, errorMessage string) error
}

type handoffRepo struct {
	db *gorm.DB
}

func NewHandoffRepo(db *gorm.DB) HandoffRepository {
	return &handoffRepo{db: db}
}

func (r *handoffRepo) Create(ctx context.Context, h *models.Handoff) error {
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *handoffRepo) GetByID(ctx context.Context, id string) (*models.Handoff, error) {
	var row models.Handoff
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *handoffRepo) ListByPatient(ctx context.Context, patientID string, limit int) ([]models.Handoff, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Handoff
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *handoffRepo) UpdateStatus(ctx context.Context, id string, status models.HandoffStatus, errorMessage string) error {
	updates := map[string]any{"status": status}
	if errorMessage != "" {
		updates["error_message"] = errorMessage
	}
	return r.db.WithContext(ctx).
		Model(&models.Handoff{}).
		Where("id = ?", id).
		Updates(updates).Error
}
