package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	streamPrefix  = "pipeline:"
	delayedPrefix = "pipeline:delayed:"
	deadPrefix    = "pipeline:dead:"
	group         = "pipeline-workers"

	dequeueBlock  = 5 * time.Second
	promotePeriod = 500 * time.Millisecond

	// Reclaim thresholds must exceed the longest job wall clock, or a
	// slow-but-alive worker gets its job stolen.
	reclaimPeriod   = 30 * time.Second
	reclaimMinIdle  = 5 * time.Minute
	reclaimConsumer = "reclaimer"
)

// RedisQueue is a durable job queue on Redis Streams. One stream and
// consumer group per job kind; delayed deliveries sit in a sorted set
// until a promoter goroutine moves them onto the stream.
type RedisQueue struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

func NewRedisQueue(rdb *redis.Client, logger *logrus.Logger) *RedisQueue {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisQueue{rdb: rdb, logger: logger}
}

type envelope struct {
	Kind        Kind            `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	BackoffMS   int64           `json:"backoff_ms"`
	EnqueuedAt  int64           `json:"enqueued_at"`
}

func streamFor(kind Kind) string  { return streamPrefix + string(kind) }
func delayedFor(kind Kind) string { return delayedPrefix + string(kind) }
func deadFor(kind Kind) string    { return deadPrefix + string(kind) }

// EnsureGroups creates the consumer groups; BUSYGROUP means they
// already exist.
func (q *RedisQueue) EnsureGroups(ctx context.Context, kinds ...Kind) {
	for _, kind := range kinds {
		_ = q.rdb.XGroupCreateMkStream(ctx, streamFor(kind), group, "0").Err()
	}
}

// StartPromoters launches one goroutine per kind moving due delayed
// jobs onto their stream. They stop when ctx is done.
func (q *RedisQueue) StartPromoters(ctx context.Context, kinds ...Kind) {
	for _, kind := range kinds {
		go q.promote(ctx, kind)
	}
}

func (q *RedisQueue) promote(ctx context.Context, kind Kind) {
	ticker := time.NewTicker(promotePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := strconv.FormatInt(time.Now().UnixMilli(), 10)
		members, err := q.rdb.ZRangeByScore(ctx, delayedFor(kind), &redis.ZRangeBy{
			Min: "-inf", Max: now, Count: 64,
		}).Result()
		if err != nil || len(members) == 0 {
			continue
		}

		for _, member := range members {
			var env envelope
			if err := json.Unmarshal([]byte(member), &env); err != nil {
				q.logger.WithError(err).Warn("dropping unreadable delayed job")
				_ = q.rdb.ZRem(ctx, delayedFor(kind), member).Err()
				continue
			}
			if err := q.add(ctx, kind, env); err != nil {
				continue
			}
			_ = q.rdb.ZRem(ctx, delayedFor(kind), member).Err()
		}
	}
}

// StartReclaimers launches one goroutine per kind sweeping entries left
// pending by crashed consumers back through the retry path.
func (q *RedisQueue) StartReclaimers(ctx context.Context, kinds ...Kind) {
	for _, kind := range kinds {
		go q.reclaim(ctx, kind)
	}
}

func (q *RedisQueue) reclaim(ctx context.Context, kind Kind) {
	ticker := time.NewTicker(reclaimPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		q.reclaimOnce(ctx, kind)
	}
}

var errStalled = errors.New("delivery stalled, consumer never acked")

// reclaimOnce claims every entry idle past the threshold and runs it
// through Fail, so a stalled delivery costs an attempt and eventually
// dead-letters instead of looping forever.
func (q *RedisQueue) reclaimOnce(ctx context.Context, kind Kind) {
	start := "0-0"
	for {
		msgs, next, err := q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   streamFor(kind),
			Group:    group,
			Consumer: reclaimConsumer,
			MinIdle:  reclaimMinIdle,
			Start:    start,
			Count:    16,
		}).Result()
		if err != nil {
			return
		}
		for i := range msgs {
			job := jobFromMessage(kind, msgs[i])
			if _, ferr := q.Fail(ctx, job, errStalled); ferr != nil {
				q.logger.WithError(ferr).WithField("kind", kind).Warn("failed to requeue stalled job")
			}
		}
		if len(msgs) == 0 || next == "0-0" {
			return
		}
		start = next
	}
}

func (q *RedisQueue) add(ctx context.Context, kind Kind, env envelope) error {
	return q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamFor(kind),
		Values: map[string]any{
			"payload":      string(env.Payload),
			"attempt":      env.Attempt,
			"max_attempts": env.MaxAttempts,
			"backoff_ms":   env.BackoffMS,
			"enqueued_at":  env.EnqueuedAt,
		},
	}).Err()
}

func (q *RedisQueue) Enqueue(ctx context.Context, kind Kind, payload any, opts Options) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}

	env := envelope{
		Kind:        kind,
		Payload:     raw,
		MaxAttempts: opts.MaxAttempts,
		BackoffMS:   opts.Backoff.Milliseconds(),
		EnqueuedAt:  time.Now().UnixMilli(),
	}

	if opts.Delay > 0 {
		return q.enqueueDelayed(ctx, kind, env, opts.Delay)
	}

	id, err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamFor(kind),
		Values: map[string]any{
			"payload":      string(raw),
			"attempt":      0,
			"max_attempts": env.MaxAttempts,
			"backoff_ms":   env.BackoffMS,
			"enqueued_at":  env.EnqueuedAt,
		},
	}).Result()
	if err != nil {
		return "", err
	}
	return id, nil
}

func (q *RedisQueue) enqueueDelayed(ctx context.Context, kind Kind, env envelope, delay time.Duration) (string, error) {
	member, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	readyAt := time.Now().Add(delay).UnixMilli()
	if err := q.rdb.ZAdd(ctx, delayedFor(kind), redis.Z{
		Score:  float64(readyAt),
		Member: string(member),
	}).Err(); err != nil {
		return "", err
	}
	return "delayed:" + strconv.FormatInt(readyAt, 10), nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, kind Kind, consumer string) (*Job, error) {
	res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{streamFor(kind), ">"},
		Count:    1,
		Block:    dequeueBlock,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	for _, stream := range res {
		for _, msg := range stream.Messages {
			return jobFromMessage(kind, msg), nil
		}
	}
	return nil, nil
}

func jobFromMessage(kind Kind, msg redis.XMessage) *Job {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}
	getInt := func(k string) int64 {
		n, _ := strconv.ParseInt(getStr(k), 10, 64)
		return n
	}

	job := &Job{
		ID:          msg.ID,
		Kind:        kind,
		Payload:     []byte(getStr("payload")),
		Attempt:     int(getInt("attempt")),
		MaxAttempts: int(getInt("max_attempts")),
		Backoff:     time.Duration(getInt("backoff_ms")) * time.Millisecond,
	}
	if ts := getInt("enqueued_at"); ts > 0 {
		job.EnqueuedAt = time.UnixMilli(ts)
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = DefaultMaxAttempts
	}
	return job
}

func (q *RedisQueue) Ack(ctx context.Context, job *Job) error {
	return q.rdb.XAck(ctx, streamFor(job.Kind), group, job.ID).Err()
}

// Fail records the outcome first, either a delayed retry with
// exponential backoff or a dead-letter once attempts are exhausted, and
// only then acknowledges the delivery. A crash between the two steps
// leaves the entry pending for the reclaim sweep, so the job is
// duplicated rather than lost.
func (q *RedisQueue) Fail(ctx context.Context, job *Job, cause error) (bool, error) {
	nextAttempt := job.Attempt + 1
	if nextAttempt < job.MaxAttempts {
		env := envelope{
			Kind:        job.Kind,
			Payload:     job.Payload,
			Attempt:     nextAttempt,
			MaxAttempts: job.MaxAttempts,
			BackoffMS:   job.Backoff.Milliseconds(),
			EnqueuedAt:  time.Now().UnixMilli(),
		}
		if _, err := q.enqueueDelayed(ctx, job.Kind, env, job.NextBackoff()); err != nil {
			return false, err
		}
		if err := q.Ack(ctx, job); err != nil {
			return true, err
		}
		q.logger.WithFields(logrus.Fields{
			"kind":    job.Kind,
			"attempt": nextAttempt,
			"backoff": job.NextBackoff().String(),
			"cause":   cause.Error(),
		}).Warn("job retry scheduled")
		return true, nil
	}

	dead, err := json.Marshal(envelope{
		Kind:        job.Kind,
		Payload:     job.Payload,
		Attempt:     nextAttempt,
		MaxAttempts: job.MaxAttempts,
		EnqueuedAt:  time.Now().UnixMilli(),
	})
	if err != nil {
		return false, err
	}
	if err := q.rdb.LPush(ctx, deadFor(job.Kind), string(dead)).Err(); err != nil {
		return false, err
	}
	if err := q.Ack(ctx, job); err != nil {
		return false, err
	}
	q.logger.WithFields(logrus.Fields{
		"kind":     job.Kind,
		"attempts": nextAttempt,
		"cause":    cause.Error(),
	}).Error("job dead-lettered")
	return false, nil
}
