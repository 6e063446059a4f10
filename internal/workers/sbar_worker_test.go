package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/eclipselink/handoff-backend/internal/models"
	"github.com/eclipselink/handoff-backend/internal/providers/llm"
	"github.com/eclipselink/handoff-backend/internal/queue"
	"github.com/eclipselink/handoff-backend/internal/sbar"
)

const sbarResponse = `{
  "situation": "Admitted with community acquired pneumonia, day three.",
  "background": "History of COPD, on azithromycin 500mg daily.",
  "assessment": "BP: 130/85, HR: 84. Improving on antibiotics.",
  "recommendation": "Continue antibiotics, monitor oxygen requirements."
}`

func generateJob(t *testing.T, payload queue.GenerateSBARPayload) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &queue.Job{
		ID:          "job-g1",
		Kind:        queue.KindGenerateSBAR,
		Payload:     raw,
		MaxAttempts: queue.DefaultMaxAttempts,
		Backoff:     queue.DefaultBackoff,
	}
}

func newSBARPool(q *memQueue, provider llm.Provider, docs *memSBARRepo, patients *memPatientRepo, handoffs *memHandoffRepo, notifier *memNotifier) *SBARWorkerPool {
	return &SBARWorkerPool{
		Queue:      q,
		Generator:  sbar.NewGenerator(provider, quietLogger()),
		Documents:  docs,
		Patients:   patients,
		Handoffs:   handoffs,
		Notifier:   notifier,
		JobTimeout: 5 * time.Second,
		Logger:     quietLogger(),
	}
}

func TestSBARHandleInitialCommitsVersion(t *testing.T) {
	q := &memQueue{}
	docs := newMemSBARRepo()
	patients := newMemPatientRepo(&models.Patient{ID: "p-1", MRN: "MRN-1", FirstName: "Maria", LastName: "Santos"})
	handoffs := newMemHandoffRepo(&models.Handoff{ID: "h-1", PatientID: "p-1"})
	notifier := &memNotifier{}

	pool := newSBARPool(q, &fakeLLM{content: sbarResponse}, docs, patients, handoffs, notifier)
	pool.handle(context.Background(), generateJob(t, queue.GenerateSBARPayload{
		RecordingID:    "rec-1",
		HandoffID:      "h-1",
		PatientID:      "p-1",
		TranscriptText: "overnight report",
		IsInitial:      true,
	}))

	if len(q.acked) != 1 {
		t.Fatalf("expected job acked, got %v", q.acked)
	}
	if docs.inserted != 1 {
		t.Fatalf("expected one committed version, got %d", docs.inserted)
	}

	doc, err := docs.GetByHandoff(context.Background(), "h-1")
	if err != nil {
		t.Fatalf("document not committed: %v", err)
	}
	if doc.Version != 1 || !doc.IsLatest || doc.PatientID != "p-1" || doc.SourceRecordingID != "rec-1" {
		t.Fatalf("unexpected document %+v", doc)
	}

	h, _ := handoffs.GetByID(context.Background(), "h-1")
	if h.Status != models.HandoffReady {
		t.Fatalf("handoff status: got %v, want ready", h.Status)
	}
	if len(notifier.ready) != 1 || notifier.ready[0] != "h-1" {
		t.Fatalf("expected ready notification, got %v", notifier.ready)
	}
}

func TestSBARHandleUpdateFlipsLatest(t *testing.T) {
	prev := &models.SBARDocument{
		ID:        "doc-v1",
		HandoffID: "h-1",
		PatientID: "p-1",
		Version:   1,
		IsLatest:  true,

		Situation:      "Admitted with community acquired pneumonia.",
		Background:     "History of COPD, on azithromycin 500mg.",
		Assessment:     "BP: 145/90, HR: 92. Stable.",
		Recommendation: "Continue IV antibiotics.",
	}
	prevID := prev.ID

	q := &memQueue{}
	docs := newMemSBARRepo(prev)
	patients := newMemPatientRepo(&models.Patient{ID: "p-1", MRN: "MRN-1"})
	handoffs := newMemHandoffRepo(&models.Handoff{ID: "h-2", PatientID: "p-1"})

	pool := newSBARPool(q, &fakeLLM{content: sbarResponse}, docs, patients, handoffs, &memNotifier{})
	pool.handle(context.Background(), generateJob(t, queue.GenerateSBARPayload{
		RecordingID:        "rec-2",
		HandoffID:          "h-2",
		PatientID:          "p-1",
		TranscriptText:     "update report",
		PreviousDocumentID: &prevID,
	}))

	doc, err := docs.GetByHandoff(context.Background(), "h-2")
	if err != nil {
		t.Fatalf("document not committed: %v", err)
	}
	if doc.Version != 2 {
		t.Fatalf("expected version 2, got %d", doc.Version)
	}
	if doc.PreviousVersionID == nil || *doc.PreviousVersionID != "doc-v1" {
		t.Fatalf("chain broken: %v", doc.PreviousVersionID)
	}
	if prev.IsLatest {
		t.Fatal("previous version should no longer be latest")
	}
	if !doc.IsLatest {
		t.Fatal("new version should be latest")
	}
}

func TestSBARHandleDuplicateDeliveryIsIdempotent(t *testing.T) {
	q := &memQueue{}
	docs := newMemSBARRepo()
	docs.dupe = true // version already committed by an earlier delivery
	patients := newMemPatientRepo(&models.Patient{ID: "p-1"})
	handoffs := newMemHandoffRepo(&models.Handoff{ID: "h-1", PatientID: "p-1"})
	notifier := &memNotifier{}

	pool := newSBARPool(q, &fakeLLM{content: sbarResponse}, docs, patients, handoffs, notifier)
	pool.handle(context.Background(), generateJob(t, queue.GenerateSBARPayload{
		RecordingID:    "rec-1",
		HandoffID:      "h-1",
		PatientID:      "p-1",
		TranscriptText: "report",
		IsInitial:      true,
	}))

	if docs.inserted != 0 {
		t.Fatalf("duplicate delivery must not insert, got %d", docs.inserted)
	}
	if len(q.acked) != 1 {
		t.Fatal("duplicate delivery should still ack")
	}
	h, _ := handoffs.GetByID(context.Background(), "h-1")
	if h.Status != models.HandoffReady {
		t.Fatalf("handoff should still end ready, got %v", h.Status)
	}
	if len(notifier.ready) != 0 {
		t.Fatalf("ready event fires once per committed version, got %d repeats", len(notifier.ready))
	}
}

func TestSBARHandleExhaustedMarksFailed(t *testing.T) {
	q := &memQueue{retry: false}
	patients := newMemPatientRepo(&models.Patient{ID: "p-1"})
	handoffs := newMemHandoffRepo(&models.Handoff{ID: "h-1", PatientID: "p-1"})
	notifier := &memNotifier{}

	provider := &fakeLLM{err: fmt.Errorf("%w: http 503", llm.ErrCompletionFailed)}
	pool := newSBARPool(q, provider, newMemSBARRepo(), patients, handoffs, notifier)
	pool.handle(context.Background(), generateJob(t, queue.GenerateSBARPayload{
		RecordingID:    "rec-1",
		HandoffID:      "h-1",
		PatientID:      "p-1",
		TranscriptText: "report",
		IsInitial:      true,
	}))

	h, _ := handoffs.GetByID(context.Background(), "h-1")
	if h.Status != models.HandoffFailed {
		t.Fatalf("handoff status: got %v, want failed", h.Status)
	}
	if len(notifier.failed) != 1 {
		t.Fatalf("expected failure notification, got %v", notifier.failed)
	}
	if len(q.acked) != 0 {
		t.Fatal("terminal failure path must not ack the job itself")
	}
}

func TestSBARHandleUnparseableOutputRetries(t *testing.T) {
	q := &memQueue{retry: true}
	patients := newMemPatientRepo(&models.Patient{ID: "p-1"})
	handoffs := newMemHandoffRepo(&models.Handoff{ID: "h-1", PatientID: "p-1"})

	pool := newSBARPool(q, &fakeLLM{content: "sorry, I cannot do that"}, newMemSBARRepo(), patients, handoffs, &memNotifier{})
	pool.handle(context.Background(), generateJob(t, queue.GenerateSBARPayload{
		RecordingID:    "rec-1",
		HandoffID:      "h-1",
		PatientID:      "p-1",
		TranscriptText: "report",
		IsInitial:      true,
	}))

	if len(q.failed) != 1 {
		t.Fatalf("expected Fail call for unparseable output, got %d", len(q.failed))
	}
	h, _ := handoffs.GetByID(context.Background(), "h-1")
	if h.Status == models.HandoffFailed {
		t.Fatal("handoff must not be terminally failed while retries remain")
	}
}
