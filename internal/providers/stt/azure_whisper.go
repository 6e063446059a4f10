package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eclipselink/handoff-backend/internal/utils"
)

const defaultWhisperTimeout = 60 * time.Second

// AzureWhisper transcribes audio through an Azure OpenAI Whisper
// deployment using the verbose_json response format.
type AzureWhisper struct {
	endpoint   string
	apiKey     string
	deployment string
	apiVersion string
	httpClient *http.Client
	logger     *logrus.Logger
}

type WhisperOption func(*AzureWhisper)

func WithWhisperHTTPClient(c *http.Client) WhisperOption {
	return func(w *AzureWhisper) {
		if c != nil {
			w.httpClient = c
		}
	}
}

func WithWhisperLogger(l *logrus.Logger) WhisperOption {
	return func(w *AzureWhisper) {
		if l != nil {
			w.logger = l
		}
	}
}

func NewAzureWhisper(endpoint, apiKey, deployment, apiVersion string, opts ...WhisperOption) (*AzureWhisper, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" || strings.TrimSpace(apiKey) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, "stt.NewAzureWhisper", "endpoint and api key are required", nil)
	}
	if deployment == "" {
		deployment = "whisper-deployment-1"
	}
	if apiVersion == "" {
		apiVersion = "2024-02-15-preview"
	}

	w := &AzureWhisper{
		endpoint:   endpoint,
		apiKey:     strings.TrimSpace(apiKey),
		deployment: deployment,
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: defaultWhisperTimeout},
		logger:     logrus.New(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *AzureWhisper) Close() error { return nil }

type whisperSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
	Segments []whisperSegment `json:"segments"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (w *AzureWhisper) Transcribe(ctx context.Context, audio []byte, opts Options) (*Result, error) {
	start := time.Now()

	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio", ErrTranscriptionFailed)
	}

	body, contentType, err := buildWhisperForm(audio, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTranscriptionFailed, err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/audio/transcriptions?api-version=%s",
		w.endpoint, w.deployment, w.apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	req.Header.Set("api-key", w.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTranscriptionFailed, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: http %d: %s", ErrTranscriptionFailed, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed whisperResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrTranscriptionFailed, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%w: api error: %s", ErrTranscriptionFailed, parsed.Error.Message)
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty transcription", ErrTranscriptionFailed)
	}

	segments := make([]Segment, 0, len(parsed.Segments))
	for _, s := range parsed.Segments {
		segments = append(segments, Segment{Start: s.Start, End: s.End, Text: strings.TrimSpace(s.Text)})
	}

	language := parsed.Language
	if language == "" {
		language = opts.Language
	}

	result := &Result{
		Text:       text,
		Segments:   segments,
		Language:   language,
		Confidence: EstimateConfidence(text, len(segments)),
		Duration:   time.Since(start),
	}

	w.logger.WithFields(logrus.Fields{
		"deployment":  w.deployment,
		"text_chars":  len(text),
		"segments":    len(segments),
		"confidence":  result.Confidence,
		"duration_ms": result.Duration.Milliseconds(),
	}).Info("whisper transcription complete")

	return result, nil
}

func buildWhisperForm(audio []byte, opts Options) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	part, err := mw.CreateFormFile("file", "audio.webm")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}

	fields := map[string]string{
		"response_format": "verbose_json",
		"temperature":     strconv.FormatFloat(opts.Temperature, 'f', -1, 64),
	}
	if opts.Language != "" {
		fields["language"] = opts.Language
	}
	if opts.Prompt != "" {
		fields["prompt"] = opts.Prompt
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}
