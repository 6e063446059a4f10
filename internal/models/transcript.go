package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Transcript is the immutable output of the speech stage, owned by the
// recording it originated from.
type Transcript struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RecordingID string             `bson:"recording_id" json:"recording_id"`
	HandoffID   string             `bson:"handoff_id" json:"handoff_id"`

	Text     string              `bson:"text" json:"text"`
	Segments []TranscriptSegment `bson:"segments,omitempty" json:"segments,omitempty"`

	Confidence float64 `bson:"confidence" json:"confidence"`
	Language   string  `bson:"language" json:"language"`
	DurationMS int64   `bson:"duration_ms" json:"duration_ms"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type TranscriptSegment struct {
	Start float64 `bson:"start" json:"start"`
	End   float64 `bson:"end" json:"end"`
	Text  string  `bson:"text" json:"text"`
}
