package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/eclipselink/handoff-backend/internal/models"
	"github.com/eclipselink/handoff-backend/internal/utils"
)

type TranscriptRepository interface {
	Upsert(ctx context.Context, t *models.Transcript) error
	GetByRecordingID(ctx context.Context, recordingID string) (*models.Transcript, error)
	ListByHandoff(ctx context.Context, handoffID string, limit int64) ([]models.Transcript, error)
}

type transcriptRepo struct {
	col *mongo.Collection
}

func NewTranscriptRepo(db *mongo.Database) TranscriptRepository {
	return &transcriptRepo{col: db.Collection("transcripts")}
}

// Upsert keys on recording_id so a retried transcription job overwrites
// its own document instead of duplicating it.
func (r *transcriptRepo) Upsert(ctx context.Context, t *models.Transcript) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.UpdateOne(ctx,
		bson.M{"recording_id": t.RecordingID},
		bson.M{"$set": t},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *transcriptRepo) GetByRecordingID(ctx context.Context, recordingID string) (*models.Transcript, error) {
	var row models.Transcript
	err := r.col.FindOne(ctx, bson.M{"recording_id": recordingID}).Decode(&row)
	if err == mongo.ErrNoDocuments {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *transcriptRepo) ListByHandoff(ctx context.Context, handoffID string, limit int64) ([]models.Transcript, error) {
	if limit <= 0 {
		limit = 100
	}
	cur, err := r.col.Find(ctx,
		bson.M{"handoff_id": handoffID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []models.Transcript
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
