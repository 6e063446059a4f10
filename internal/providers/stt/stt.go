package stt

import (
	"context"
	"errors"
	"time"
)

// ErrTranscriptionFailed wraps every remote speech failure: transport
// errors, timeouts, and empty transcription results.
var ErrTranscriptionFailed = errors.New("transcription failed")

type Options struct {
	Language    string
	Prompt      string
	Temperature float64
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type Result struct {
	Text       string
	Segments   []Segment
	Language   string
	Confidence float64
	Duration   time.Duration
}

type Provider interface {
	Transcribe(ctx context.Context, audio []byte, opts Options) (*Result, error)
	Close() error
}
