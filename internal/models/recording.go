package models

import "time"

type RecordingStatus string

const (
	RecordingUploaded    RecordingStatus = "uploaded"
	RecordingQueued      RecordingStatus = "queued"
	RecordingProcessing  RecordingStatus = "processing"
	RecordingTranscribed RecordingStatus = "transcribed"
	RecordingFailed      RecordingStatus = "failed"
)

type VoiceRecording struct {
	ID         string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	HandoffID  string          `gorm:"column:handoff_id;type:uuid;index" json:"handoff_id"`
	UploadedBy string          `gorm:"column:uploaded_by;type:uuid" json:"uploaded_by"`
	Status     RecordingStatus `gorm:"column:status;type:text;index" json:"status"`

	DurationSeconds int    `gorm:"column:duration_seconds" json:"duration_seconds"`
	FileSize        int64  `gorm:"column:file_size" json:"file_size"`
	AudioFormat     string `gorm:"column:audio_format;type:text" json:"audio_format"`
	ObjectPath      string `gorm:"column:object_path;type:text" json:"object_path"`

	TranscribeJobID string `gorm:"column:transcribe_job_id;type:text" json:"transcribe_job_id,omitempty"`
	ErrorMessage    string `gorm:"column:error_message;type:text" json:"error_message,omitempty"`

	UploadedAt  time.Time  `gorm:"column:uploaded_at;type:timestamptz" json:"uploaded_at"`
	ProcessedAt *time.Time `gorm:"column:processed_at;type:timestamptz" json:"processed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (VoiceRecording) TableName() string { return "voice_recordings" }
