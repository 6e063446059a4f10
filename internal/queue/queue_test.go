package queue

import (
	"encoding/json"
	"testing"
	"time"
)

func TestJobNextBackoffDoubles(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{3, 16 * time.Second},
	}
	for _, tc := range cases {
		j := &Job{Attempt: tc.attempt, Backoff: DefaultBackoff}
		if got := j.NextBackoff(); got != tc.want {
			t.Fatalf("attempt %d: got %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestJobNextBackoffDefaultsBase(t *testing.T) {
	j := &Job{Attempt: 1}
	if got := j.NextBackoff(); got != 2*DefaultBackoff {
		t.Fatalf("got %v, want %v", got, 2*DefaultBackoff)
	}
}

func TestJobDecode(t *testing.T) {
	payload := TranscribePayload{
		RecordingID: "rec-1",
		HandoffID:   "handoff-1",
		PatientID:   "patient-1",
		IsInitial:   true,
		Language:    "en",
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	j := &Job{Kind: KindTranscribe, Payload: raw}
	var got TranscribePayload
	if err := j.Decode(&got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.RecordingID != "rec-1" || !got.IsInitial || got.Language != "en" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if got.PreviousDocumentID != nil {
		t.Fatalf("expected nil previous document id, got %v", got.PreviousDocumentID)
	}
}

func TestJobDecodeRejectsGarbage(t *testing.T) {
	j := &Job{Payload: []byte("not json")}
	var got GenerateSBARPayload
	if err := j.Decode(&got); err == nil {
		t.Fatal("expected decode error")
	}
}
