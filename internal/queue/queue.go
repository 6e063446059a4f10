package queue

import (
	"context"
	"encoding/json"
	"time"
)

type Kind string

const (
	KindTranscribe   Kind = "transcribe"
	KindGenerateSBAR Kind = "generate_sbar"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 2 * time.Second
)

// TranscribePayload seeds the transcription stage with everything the
// rest of the pipeline needs to know about the handoff chain.
type TranscribePayload struct {
	RecordingID        string  `json:"recording_id"`
	HandoffID          string  `json:"handoff_id"`
	PatientID          string  `json:"patient_id"`
	IsInitial          bool    `json:"is_initial"`
	PreviousDocumentID *string `json:"previous_document_id,omitempty"`
	Language           string  `json:"language,omitempty"`
}

// GenerateSBARPayload carries the transcript text and chain metadata
// from the transcription stage into the generation stage.
type GenerateSBARPayload struct {
	RecordingID        string  `json:"recording_id"`
	HandoffID          string  `json:"handoff_id"`
	PatientID          string  `json:"patient_id"`
	TranscriptText     string  `json:"transcript_text"`
	IsInitial          bool    `json:"is_initial"`
	PreviousDocumentID *string `json:"previous_document_id,omitempty"`
}

type Options struct {
	MaxAttempts int
	Backoff     time.Duration
	Delay       time.Duration
}

// Job is one delivered unit of queued work. Delivery is at-least-once;
// consumers must tolerate reprocessing a job whose effects already
// committed.
type Job struct {
	ID          string
	Kind        Kind
	Payload     []byte
	Attempt     int
	MaxAttempts int
	Backoff     time.Duration
	EnqueuedAt  time.Time
}

func (j *Job) Decode(dst any) error {
	return json.Unmarshal(j.Payload, dst)
}

// NextBackoff returns the delay before this job's next attempt,
// doubling per attempt already made.
func (j *Job) NextBackoff() time.Duration {
	base := j.Backoff
	if base <= 0 {
		base = DefaultBackoff
	}
	d := base
	for i := 0; i < j.Attempt; i++ {
		d *= 2
	}
	return d
}

type Queue interface {
	// Enqueue serializes payload as JSON and schedules it for delivery,
	// returning the job id.
	Enqueue(ctx context.Context, kind Kind, payload any, opts Options) (string, error)
	// Dequeue blocks up to the queue's poll interval and returns the
	// next job for kind, or (nil, nil) when none became available.
	Dequeue(ctx context.Context, kind Kind, consumer string) (*Job, error)
	// Ack marks the job done.
	Ack(ctx context.Context, job *Job) error
	// Fail re-schedules the job with backoff while attempts remain,
	// dead-lettering it otherwise. It reports whether a retry was
	// scheduled.
	Fail(ctx context.Context, job *Job, cause error) (bool, error)
}
