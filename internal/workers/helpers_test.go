package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/eclipselink/handoff-backend/internal/models"
	"github.com/eclipselink/handoff-backend/internal/providers/llm"
	"github.com/eclipselink/handoff-backend/internal/providers/stt"
	"github.com/eclipselink/handoff-backend/internal/queue"
	"github.com/eclipselink/handoff-backend/internal/utils"
)

type memQueue struct {
	mu       sync.Mutex
	enqueued []*queue.Job
	acked    []string
	failed   []string
	retry    bool
}

func (q *memQueue) Enqueue(ctx context.Context, kind queue.Kind, payload any, opts queue.Options) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	job := &queue.Job{
		ID:          "job-" + string(kind),
		Kind:        kind,
		Payload:     raw,
		MaxAttempts: queue.DefaultMaxAttempts,
		Backoff:     queue.DefaultBackoff,
		EnqueuedAt:  time.Now().UTC(),
	}
	q.enqueued = append(q.enqueued, job)
	return job.ID, nil
}

func (q *memQueue) Dequeue(ctx context.Context, kind queue.Kind, consumer string) (*queue.Job, error) {
	return nil, nil
}

func (q *memQueue) Ack(ctx context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, job.ID)
	return nil
}

func (q *memQueue) Fail(ctx context.Context, job *queue.Job, cause error) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed = append(q.failed, job.ID)
	return q.retry, nil
}

func (q *memQueue) jobsOf(kind queue.Kind) []*queue.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*queue.Job
	for _, j := range q.enqueued {
		if j.Kind == kind {
			out = append(out, j)
		}
	}
	return out
}

type memRecordingRepo struct {
	recordings map[string]*models.VoiceRecording
	statuses   []models.RecordingStatus
	processed  bool
}

func newMemRecordingRepo(recs ...*models.VoiceRecording) *memRecordingRepo {
	f := &memRecordingRepo{recordings: map[string]*models.VoiceRecording{}}
	for _, r := range recs {
		f.recordings[r.ID] = r
	}
	return f
}

func (f *memRecordingRepo) Create(ctx context.Context, rec *models.VoiceRecording) error {
	f.recordings[rec.ID] = rec
	return nil
}

func (f *memRecordingRepo) GetByID(ctx context.Context, id string) (*models.VoiceRecording, error) {
	rec, ok := f.recordings[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return rec, nil
}

func (f *memRecordingRepo) UpdateStatus(ctx context.Context, id string, status models.RecordingStatus, errorMessage string) error {
	f.statuses = append(f.statuses, status)
	if rec, ok := f.recordings[id]; ok {
		rec.Status = status
		rec.ErrorMessage = errorMessage
	}
	return nil
}

func (f *memRecordingRepo) SetJobID(ctx context.Context, id, jobID string) error { return nil }

func (f *memRecordingRepo) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	f.processed = true
	if rec, ok := f.recordings[id]; ok {
		rec.Status = models.RecordingTranscribed
		rec.ProcessedAt = &at
	}
	return nil
}

type memHandoffRepo struct {
	handoffs map[string]*models.Handoff
}

func newMemHandoffRepo(hs ...*models.Handoff) *memHandoffRepo {
	f := &memHandoffRepo{handoffs: map[string]*models.Handoff{}}
	for _, h := range hs {
		f.handoffs[h.ID] = h
	}
	return f
}

func (f *memHandoffRepo) Create(ctx context.Context, h *models.Handoff) error {
	f.handoffs[h.ID] = h
	return nil
}

func (f *memHandoffRepo) GetByID(ctx context.Context, id string) (*models.Handoff, error) {
	h, ok := f.handoffs[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return h, nil
}

func (f *memHandoffRepo) ListByPatient(ctx context.Context, patientID string, limit int) ([]models.Handoff, error) {
	return nil, nil
}

func (f *memHandoffRepo) UpdateStatus(ctx context.Context, id string, status models.HandoffStatus, errorMessage string) error {
	if h, ok := f.handoffs[id]; ok {
		h.Status = status
		if errorMessage != "" {
			h.ErrorMessage = errorMessage
		}
	}
	return nil
}

type memPatientRepo struct {
	patients map[string]*models.Patient
}

func newMemPatientRepo(ps ...*models.Patient) *memPatientRepo {
	f := &memPatientRepo{patients: map[string]*models.Patient{}}
	for _, p := range ps {
		f.patients[p.ID] = p
	}
	return f
}

func (f *memPatientRepo) Create(ctx context.Context, p *models.Patient) error {
	f.patients[p.ID] = p
	return nil
}

func (f *memPatientRepo) GetByID(ctx context.Context, id string) (*models.Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return p, nil
}

type memSBARRepo struct {
	docs     map[string]*models.SBARDocument
	inserted int
	dupe     bool
}

func newMemSBARRepo(docs ...*models.SBARDocument) *memSBARRepo {
	f := &memSBARRepo{docs: map[string]*models.SBARDocument{}}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *memSBARRepo) GetByID(ctx context.Context, id string) (*models.SBARDocument, error) {
	d, ok := f.docs[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return d, nil
}

func (f *memSBARRepo) GetByHandoff(ctx context.Context, handoffID string) (*models.SBARDocument, error) {
	for _, d := range f.docs {
		if d.HandoffID == handoffID {
			return d, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (f *memSBARRepo) GetLatestForPatient(ctx context.Context, patientID string) (*models.SBARDocument, error) {
	for _, d := range f.docs {
		if d.PatientID == patientID && d.IsLatest {
			return d, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (f *memSBARRepo) ListVersions(ctx context.Context, patientID string) ([]models.SBARDocument, error) {
	return nil, nil
}

func (f *memSBARRepo) InsertVersion(ctx context.Context, doc *models.SBARDocument) (bool, error) {
	if f.dupe {
		return false, nil
	}
	for _, d := range f.docs {
		if d.PatientID == doc.PatientID {
			d.IsLatest = false
		}
	}
	f.docs[doc.ID] = doc
	f.inserted++
	return true, nil
}

type memTranscriptRepo struct {
	byRecording map[string]*models.Transcript
}

func newMemTranscriptRepo() *memTranscriptRepo {
	return &memTranscriptRepo{byRecording: map[string]*models.Transcript{}}
}

func (f *memTranscriptRepo) Upsert(ctx context.Context, t *models.Transcript) error {
	f.byRecording[t.RecordingID] = t
	return nil
}

func (f *memTranscriptRepo) GetByRecordingID(ctx context.Context, recordingID string) (*models.Transcript, error) {
	t, ok := f.byRecording[recordingID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return t, nil
}

func (f *memTranscriptRepo) ListByHandoff(ctx context.Context, handoffID string, limit int64) ([]models.Transcript, error) {
	return nil, nil
}

type memStorage struct {
	objects map[string][]byte
	err     error
}

func (f *memStorage) Download(ctx context.Context, objectName string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[objectName]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type fakeSTT struct {
	result *stt.Result
	err    error
	calls  int
}

func (f *fakeSTT) Transcribe(ctx context.Context, audio []byte, opts stt.Options) (*stt.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeSTT) Close() error { return nil }

type fakeLLM struct {
	content string
	err     error
}

func (f *fakeLLM) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.Completion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{Content: f.content, Model: "gpt-4", PromptTokens: 800, CompletionTokens: 300, TotalTokens: 1100}, nil
}

func (f *fakeLLM) Close() error { return nil }

type memNotifier struct {
	ready  []string
	failed []string
}

func (n *memNotifier) HandoffReady(ctx context.Context, handoffID string, version int) error {
	n.ready = append(n.ready, handoffID)
	return nil
}

func (n *memNotifier) HandoffFailed(ctx context.Context, handoffID string, reason string) error {
	n.failed = append(n.failed, handoffID)
	return nil
}
