package services

import (
	"context"
	"testing"

	"github.com/eclipselink/handoff-backend/internal/models"
	"github.com/eclipselink/handoff-backend/internal/utils"
)

type fakeTranscriptRepo struct {
	byRecording map[string]*models.Transcript
}

func newFakeTranscriptRepo(ts ...*models.Transcript) *fakeTranscriptRepo {
	f := &fakeTranscriptRepo{byRecording: map[string]*models.Transcript{}}
	for _, t := range ts {
		f.byRecording[t.RecordingID] = t
	}
	return f
}

func (f *fakeTranscriptRepo) Upsert(ctx context.Context, t *models.Transcript) error {
	f.byRecording[t.RecordingID] = t
	return nil
}

func (f *fakeTranscriptRepo) GetByRecordingID(ctx context.Context, recordingID string) (*models.Transcript, error) {
	t, ok := f.byRecording[recordingID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return t, nil
}

func (f *fakeTranscriptRepo) ListByHandoff(ctx context.Context, handoffID string, limit int64) ([]models.Transcript, error) {
	var out []models.Transcript
	for _, t := range f.byRecording {
		if t.HandoffID == handoffID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func TestStatusProjection(t *testing.T) {
	cases := []struct {
		status       models.HandoffStatus
		wantStage    string
		wantProgress int
	}{
		{models.HandoffDraft, "queued", 10},
		{models.HandoffRecording, "queued", 10},
		{models.HandoffTranscribing, "transcribing", 40},
		{models.HandoffGenerating, "generating", 75},
		{models.HandoffReady, "ready", 100},
		{models.HandoffFailed, "failed", 100},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			h := &models.Handoff{ID: "h-1", Status: tc.status, ErrorMessage: "stt unavailable"}
			svc := NewStatusService(newFakeHandoffRepo(h), newFakeRecordingRepo(), newFakeSBARRepo(), newFakeTranscriptRepo(), nil)

			st, err := svc.Get(context.Background(), "h-1")
			if err != nil {
				t.Fatalf("Get returned error: %v", err)
			}
			if st.Stage != tc.wantStage {
				t.Fatalf("stage: got %q, want %q", st.Stage, tc.wantStage)
			}
			if st.Progress != tc.wantProgress {
				t.Fatalf("progress: got %d, want %d", st.Progress, tc.wantProgress)
			}
			if tc.status == models.HandoffFailed && st.ErrorMessage == "" {
				t.Fatal("failed status should expose the error message")
			}
			if tc.status != models.HandoffFailed && st.ErrorMessage != "" {
				t.Fatalf("non-failed status should not expose errors, got %q", st.ErrorMessage)
			}
		})
	}
}

func TestStatusReadyIncludesDocument(t *testing.T) {
	h := &models.Handoff{ID: "h-1", Status: models.HandoffReady}
	doc := &models.SBARDocument{ID: "doc-v3", HandoffID: "h-1", PatientID: "p-1", Version: 3, IsLatest: true}
	svc := NewStatusService(newFakeHandoffRepo(h), newFakeRecordingRepo(), newFakeSBARRepo(doc), newFakeTranscriptRepo(), nil)

	st, err := svc.Get(context.Background(), "h-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if st.Version != 3 || st.DocumentID != "doc-v3" {
		t.Fatalf("expected document metadata, got %+v", st)
	}
}

func TestStatusByRecordingIncludesTranscription(t *testing.T) {
	h := &models.Handoff{ID: "h-1", Status: models.HandoffGenerating}
	rec := &models.VoiceRecording{ID: "r-1", HandoffID: "h-1", Status: models.RecordingTranscribed}
	tr := &models.Transcript{RecordingID: "r-1", HandoffID: "h-1", Text: "Patient stable overnight."}
	svc := NewStatusService(newFakeHandoffRepo(h), newFakeRecordingRepo(rec), newFakeSBARRepo(), newFakeTranscriptRepo(tr), nil)

	st, err := svc.GetByRecording(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("GetByRecording returned error: %v", err)
	}
	if st.RecordingID != "r-1" || st.Stage != "generating" {
		t.Fatalf("unexpected projection: %+v", st)
	}
	if st.Transcription != "Patient stable overnight." {
		t.Fatalf("transcription: got %q", st.Transcription)
	}
}

func TestStatusByRecordingBeforeTranscription(t *testing.T) {
	h := &models.Handoff{ID: "h-1", Status: models.HandoffTranscribing}
	rec := &models.VoiceRecording{ID: "r-1", HandoffID: "h-1", Status: models.RecordingProcessing}
	svc := NewStatusService(newFakeHandoffRepo(h), newFakeRecordingRepo(rec), newFakeSBARRepo(), newFakeTranscriptRepo(), nil)

	st, err := svc.GetByRecording(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("GetByRecording returned error: %v", err)
	}
	if st.Transcription != "" {
		t.Fatalf("transcription should be empty mid-flight, got %q", st.Transcription)
	}
}

func TestStatusUnknownHandoff(t *testing.T) {
	svc := NewStatusService(newFakeHandoffRepo(), newFakeRecordingRepo(), newFakeSBARRepo(), newFakeTranscriptRepo(), nil)
	if _, err := svc.Get(context.Background(), "missing"); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Get(context.Background(), ""); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, err := svc.GetByRecording(context.Background(), "missing"); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("expected not found for recording, got %v", err)
	}
}
