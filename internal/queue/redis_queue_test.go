package queue

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// commandHook intercepts every command before a connection is dialed,
// records the command name, and fabricates a success reply, so queue
// command ordering can be asserted without a server.
type commandHook struct {
	calls  *[]string
	claims *[][]redis.XMessage
}

func (h commandHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h commandHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error { return nil }
}

func (h commandHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		*h.calls = append(*h.calls, cmd.Name())
		switch c := cmd.(type) {
		case *redis.IntCmd:
			c.SetVal(1)
		case *redis.StringCmd:
			c.SetVal("1-1")
		case *redis.StatusCmd:
			c.SetVal("OK")
		case *redis.XAutoClaimCmd:
			if h.claims != nil && len(*h.claims) > 0 {
				msgs := (*h.claims)[0]
				*h.claims = (*h.claims)[1:]
				c.SetVal(msgs, "0-0")
			} else {
				c.SetVal(nil, "0-0")
			}
		}
		return nil
	}
}

func newHookedQueue(calls *[]string, claims *[][]redis.XMessage) *RedisQueue {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	rdb.AddHook(commandHook{calls: calls, claims: claims})

	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewRedisQueue(rdb, l)
}

func TestFailSchedulesRetryBeforeAck(t *testing.T) {
	var calls []string
	q := newHookedQueue(&calls, nil)

	job := &Job{
		ID:          "1-0",
		Kind:        KindTranscribe,
		Payload:     []byte(`{"recording_id":"rec-1"}`),
		Attempt:     0,
		MaxAttempts: 3,
		Backoff:     2 * time.Second,
	}
	retrying, err := q.Fail(context.Background(), job, errors.New("stt unavailable"))
	if err != nil {
		t.Fatalf("Fail returned error: %v", err)
	}
	if !retrying {
		t.Fatal("expected a retry to be scheduled")
	}

	// The retry must be recorded before the delivery is acked; with the
	// opposite order a crash in between loses the job.
	want := []string{"zadd", "xack"}
	if !reflect.DeepEqual(calls, want) {
		t.Fatalf("command order: got %v, want %v", calls, want)
	}
}

func TestFailDeadLettersBeforeAck(t *testing.T) {
	var calls []string
	q := newHookedQueue(&calls, nil)

	job := &Job{
		ID:          "1-0",
		Kind:        KindGenerateSBAR,
		Payload:     []byte(`{"handoff_id":"h-1"}`),
		Attempt:     2,
		MaxAttempts: 3,
		Backoff:     2 * time.Second,
	}
	retrying, err := q.Fail(context.Background(), job, errors.New("llm unavailable"))
	if err != nil {
		t.Fatalf("Fail returned error: %v", err)
	}
	if retrying {
		t.Fatal("exhausted job must not retry")
	}

	want := []string{"lpush", "xack"}
	if !reflect.DeepEqual(calls, want) {
		t.Fatalf("command order: got %v, want %v", calls, want)
	}
}

func TestReclaimRequeuesStalledDelivery(t *testing.T) {
	var calls []string
	claims := [][]redis.XMessage{{{
		ID: "9-0",
		Values: map[string]any{
			"payload":      `{"recording_id":"rec-1"}`,
			"attempt":      "0",
			"max_attempts": "3",
			"backoff_ms":   "2000",
			"enqueued_at":  "1",
		},
	}}}
	q := newHookedQueue(&calls, &claims)

	q.reclaimOnce(context.Background(), KindTranscribe)

	// The stalled entry is claimed, rescheduled as a delayed retry, and
	// only then acked out of the pending list.
	want := []string{"xautoclaim", "zadd", "xack"}
	if !reflect.DeepEqual(calls, want) {
		t.Fatalf("command order: got %v, want %v", calls, want)
	}
}

func TestReclaimDeadLettersExhaustedDelivery(t *testing.T) {
	var calls []string
	claims := [][]redis.XMessage{{{
		ID: "9-0",
		Values: map[string]any{
			"payload":      `{"recording_id":"rec-1"}`,
			"attempt":      "2",
			"max_attempts": "3",
			"backoff_ms":   "2000",
			"enqueued_at":  "1",
		},
	}}}
	q := newHookedQueue(&calls, &claims)

	q.reclaimOnce(context.Background(), KindTranscribe)

	want := []string{"xautoclaim", "lpush", "xack"}
	if !reflect.DeepEqual(calls, want) {
		t.Fatalf("command order: got %v, want %v", calls, want)
	}
}

func TestReclaimStopsWhenNothingPending(t *testing.T) {
	var calls []string
	claims := [][]redis.XMessage{}
	q := newHookedQueue(&calls, &claims)

	q.reclaimOnce(context.Background(), KindTranscribe)

	want := []string{"xautoclaim"}
	if !reflect.DeepEqual(calls, want) {
		t.Fatalf("command order: got %v, want %v", calls, want)
	}
}
