package workers

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eclipselink/handoff-backend/internal/models"
	"github.com/eclipselink/handoff-backend/internal/notifications"
	"github.com/eclipselink/handoff-backend/internal/providers/stt"
	"github.com/eclipselink/handoff-backend/internal/queue"
	"github.com/eclipselink/handoff-backend/internal/ratelimit"
	mongorepo "github.com/eclipselink/handoff-backend/internal/repositories/mongo"
	"github.com/eclipselink/handoff-backend/internal/repositories/postgres"
	"github.com/eclipselink/handoff-backend/internal/storage"
	"github.com/eclipselink/handoff-backend/internal/utils"
)

const (
	defaultTranscribeWorkers = 5
	defaultTranscribeTimeout = 60 * time.Second
	transcribeRatePerMinute  = 10
)

// TranscriptionWorkerPool consumes transcribe jobs: it pulls the audio
// object, runs speech-to-text, persists the transcript, and chains the
// SBAR generation job.
type TranscriptionWorkerPool struct {
	Queue       queue.Queue
	Storage     storage.Downloader
	STT         stt.Provider
	Transcripts mongorepo.TranscriptRepository
	Recordings  postgres.RecordingRepository
	Handoffs    postgres.HandoffRepository
	Notifier    notifications.Notifier

	NumWorkers int
	JobTimeout time.Duration
	Limiter    *ratelimit.Limiter

	Logger *logrus.Logger

	ConsumerPrefix string
}

func (p *TranscriptionWorkerPool) Start(ctx context.Context) error {
	if p.Queue == nil || p.Storage == nil || p.STT == nil || p.Transcripts == nil || p.Recordings == nil || p.Handoffs == nil {
		return errors.New("TranscriptionWorkerPool missing dependency: Queue/Storage/STT/Transcripts/Recordings/Handoffs must be set")
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = defaultTranscribeWorkers
	}
	if p.JobTimeout <= 0 {
		p.JobTimeout = defaultTranscribeTimeout
	}
	if p.Limiter == nil {
		p.Limiter = ratelimit.New(transcribeRatePerMinute, time.Minute)
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "stt"
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *TranscriptionWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.Queue.Dequeue(ctx, queue.KindTranscribe, consumer)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if job == nil {
			continue
		}

		// Outbound STT calls share a pool-wide rate budget.
		if err := p.Limiter.Wait(ctx); err != nil {
			return
		}
		p.handle(ctx, job)
	}
}

func (p *TranscriptionWorkerPool) handle(ctx context.Context, job *queue.Job) {
	var payload queue.TranscribePayload
	if err := job.Decode(&payload); err != nil {
		p.Logger.WithError(err).WithField("job_id", job.ID).Error("transcribe payload malformed, dropping")
		_ = p.Queue.Ack(ctx, job)
		return
	}

	log := p.Logger.WithFields(logrus.Fields{
		"job_id":       job.ID,
		"recording_id": payload.RecordingID,
		"handoff_id":   payload.HandoffID,
		"attempt":      job.Attempt,
	})

	if err := p.process(ctx, payload, log); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = utils.E(utils.CodeTimeout, "TranscriptionWorkerPool.process", "transcription exceeded the job time limit", err)
		}
		retrying, ferr := p.Queue.Fail(ctx, job, err)
		if ferr != nil {
			log.WithError(ferr).Error("failed to reschedule transcribe job")
		}
		if !retrying {
			p.markTerminalFailure(ctx, payload, err, log)
		}
		return
	}

	if err := p.Queue.Ack(ctx, job); err != nil {
		log.WithError(err).Warn("ack failed after successful transcription")
	}
}

func (p *TranscriptionWorkerPool) process(ctx context.Context, payload queue.TranscribePayload, log *logrus.Entry) error {
	jobCtx, cancel := context.WithTimeout(ctx, p.JobTimeout)
	defer cancel()

	rec, err := p.Recordings.GetByID(jobCtx, payload.RecordingID)
	if err != nil {
		return err
	}

	_ = p.Recordings.UpdateStatus(jobCtx, rec.ID, models.RecordingProcessing, "")
	_ = p.Handoffs.UpdateStatus(jobCtx, payload.HandoffID, models.HandoffTranscribing, "")

	r, err := p.Storage.Download(jobCtx, rec.ObjectPath)
	if err != nil {
		return err
	}
	audio, err := io.ReadAll(r)
	_ = r.Close()
	if err != nil {
		return err
	}

	started := time.Now()
	result, err := p.STT.Transcribe(jobCtx, audio, stt.Options{Language: payload.Language})
	if err != nil {
		return err
	}

	segments := make([]models.TranscriptSegment, 0, len(result.Segments))
	for _, s := range result.Segments {
		segments = append(segments, models.TranscriptSegment{Start: s.Start, End: s.End, Text: s.Text})
	}
	transcript := &models.Transcript{
		RecordingID: rec.ID,
		HandoffID:   payload.HandoffID,
		Text:        result.Text,
		Segments:    segments,
		Confidence:  result.Confidence,
		Language:    result.Language,
		DurationMS:  result.Duration.Milliseconds(),
	}
	if err := p.Transcripts.Upsert(jobCtx, transcript); err != nil {
		return err
	}

	next := queue.GenerateSBARPayload{
		RecordingID:        rec.ID,
		HandoffID:          payload.HandoffID,
		PatientID:          payload.PatientID,
		TranscriptText:     result.Text,
		IsInitial:          payload.IsInitial,
		PreviousDocumentID: payload.PreviousDocumentID,
	}
	if _, err := p.Queue.Enqueue(jobCtx, queue.KindGenerateSBAR, next, queue.Options{}); err != nil {
		return err
	}

	if err := p.Recordings.MarkProcessed(jobCtx, rec.ID, time.Now().UTC()); err != nil {
		return err
	}
	_ = p.Handoffs.UpdateStatus(jobCtx, payload.HandoffID, models.HandoffGenerating, "")

	log.WithFields(logrus.Fields{
		"confidence": result.Confidence,
		"chars":      len(result.Text),
		"took_ms":    time.Since(started).Milliseconds(),
	}).Info("recording transcribed")
	return nil
}

func (p *TranscriptionWorkerPool) markTerminalFailure(ctx context.Context, payload queue.TranscribePayload, cause error, log *logrus.Entry) {
	msg := cause.Error()
	if err := p.Recordings.UpdateStatus(ctx, payload.RecordingID, models.RecordingFailed, msg); err != nil {
		log.WithError(err).Error("failed to mark recording failed")
	}
	if err := p.Handoffs.UpdateStatus(ctx, payload.HandoffID, models.HandoffFailed, msg); err != nil {
		log.WithError(err).Error("failed to mark handoff failed")
	}
	if p.Notifier != nil {
		_ = p.Notifier.HandoffFailed(ctx, payload.HandoffID, msg)
	}
	log.WithError(cause).Error("transcription exhausted retries")
}
