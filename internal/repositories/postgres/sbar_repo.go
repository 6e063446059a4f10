package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eclipselink/handoff-backend/internal/models"
	"github.com/eclipselink/handoff-backend/internal/utils"
)

type SBARRepository interface {
	GetByID(ctx context.Context, id string) (*models.SBARDocument, error)
	GetByHandoff(ctx context.Context, handoffID string) (*models.SBARDocument, error)
	// GetLatestForPatient returns the single is_latest document of the
	// patient's handoff chain, or utils.ErrNotFound.
	GetLatestForPatient(ctx context.Context, patientID string) (*models.SBARDocument, error)
	ListVersions(ctx context.Context, patientID string) ([]models.SBARDocument, error)
	// InsertVersion commits a new document version and flips is_latest
	// off every other document of the chain, atomically. A conflict on
	// (handoff_id, version) means the version already committed; the
	// call is a no-op and inserted is false.
	InsertVersion(ctx context.Context, doc *models.SBARDocument) (inserted bool, err error)
}

type sbarRepo struct {
	db *gorm.DB
}

func NewSBARRepo(db *gorm.DB) SBARRepository {
	return &sbarRepo{db: db}
}

func (r *sbarRepo) GetByID(ctx context.Context, id string) (*models.SBARDocument, error) {
	var row models.SBARDocument
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *sbarRepo) GetByHandoff(ctx context.Context, handoffID string) (*models.SBARDocument, error) {
	var row models.SBARDocument
	err := r.db.WithContext(ctx).Where("handoff_id = ?", handoffID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *sbarRepo) GetLatestForPatient(ctx context.Context, patientID string) (*models.SBARDocument, error) {
	var row models.SBARDocument
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND is_latest", patientID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *sbarRepo) ListVersions(ctx context.Context, patientID string) ([]models.SBARDocument, error) {
	var rows []models.SBARDocument
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("version ASC").
		Find(&rows).Error
	return rows, err
}

func (r *sbarRepo) InsertVersion(ctx context.Context, doc *models.SBARDocument) (bool, error) {
	inserted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "handoff_id"}, {Name: "version"}},
			DoNothing: true,
		}).Create(doc)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already committed by an earlier delivery of the same job.
			return nil
		}
		inserted = true

		return tx.Model(&models.SBARDocument{}).
			Where("patient_id = ? AND id <> ? AND is_latest", doc.PatientID, doc.ID).
			Update("is_latest", false).Error
	})
	return inserted, err
}
