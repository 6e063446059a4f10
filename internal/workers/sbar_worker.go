package workers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/eclipselink/handoff-backend/internal/models"
	"github.com/eclipselink/handoff-backend/internal/notifications"
	"github.com/eclipselink/handoff-backend/internal/queue"
	"github.com/eclipselink/handoff-backend/internal/ratelimit"
	"github.com/eclipselink/handoff-backend/internal/repositories/postgres"
	"github.com/eclipselink/handoff-backend/internal/sbar"
	"github.com/eclipselink/handoff-backend/internal/utils"
)

const (
	defaultSBARWorkers = 3
	defaultSBARTimeout = 120 * time.Second
	sbarRatePerMinute  = 5
)

// SBARWorkerPool consumes generate_sbar jobs: it loads patient context
// and the previous version, runs the generator, and commits the new
// document version exactly once.
type SBARWorkerPool struct {
	Queue     queue.Queue
	Generator *sbar.Generator
	Documents postgres.SBARRepository
	Patients  postgres.PatientRepository
	Handoffs  postgres.HandoffRepository
	Notifier  notifications.Notifier

	NumWorkers int
	JobTimeout time.Duration
	Limiter    *ratelimit.Limiter

	Logger *logrus.Logger

	ConsumerPrefix string
}

func (p *SBARWorkerPool) Start(ctx context.Context) error {
	if p.Queue == nil || p.Generator == nil || p.Documents == nil || p.Patients == nil || p.Handoffs == nil {
		return errors.New("SBARWorkerPool missing dependency: Queue/Generator/Documents/Patients/Handoffs must be set")
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = defaultSBARWorkers
	}
	if p.JobTimeout <= 0 {
		p.JobTimeout = defaultSBARTimeout
	}
	if p.Limiter == nil {
		p.Limiter = ratelimit.New(sbarRatePerMinute, time.Minute)
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "sbar"
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

func (p *SBARWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.Queue.Dequeue(ctx, queue.KindGenerateSBAR, consumer)
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

		if err := p.Limiter.Wait(ctx); err != nil {
			return
		}
		p.handle(ctx, job)
	}
}

func (p *SBARWorkerPool) handle(ctx context.Context, job *queue.Job) {
	var payload queue.GenerateSBARPayload
	if err := job.Decode(&payload); err != nil {
		p.Logger.WithError(err).WithField("job_id", job.ID).Error("generate_sbar payload malformed, dropping")
		_ = p.Queue.Ack(ctx, job)
		return
	}

	log := p.Logger.WithFields(logrus.Fields{
		"job_id":     job.ID,
		"handoff_id": payload.HandoffID,
		"patient_id": payload.PatientID,
		"attempt":    job.Attempt,
	})

	if err := p.process(ctx, payload, log); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = utils.E(utils.CodeTimeout, "SBARWorkerPool.process", "generation exceeded the job time limit", err)
		}
		retrying, ferr := p.Queue.Fail(ctx, job, err)
		if ferr != nil {
			log.WithError(ferr).Error("failed to reschedule generate_sbar job")
		}
		if !retrying {
			p.markTerminalFailure(ctx, payload, err, log)
		}
		return
	}

	if err := p.Queue.Ack(ctx, job); err != nil {
		log.WithError(err).Warn("ack failed after successful generation")
	}
}

func (p *SBARWorkerPool) process(ctx context.Context, payload queue.GenerateSBARPayload, log *logrus.Entry) error {
	jobCtx, cancel := context.WithTimeout(ctx, p.JobTimeout)
	defer cancel()

	_ = p.Handoffs.UpdateStatus(jobCtx, payload.HandoffID, models.HandoffGenerating, "")

	patient, err := p.Patients.GetByID(jobCtx, payload.PatientID)
	if err != nil {
		return err
	}

	var previous *models.SBARDocument
	if !payload.IsInitial {
		if payload.PreviousDocumentID == nil {
			return errors.New("update handoff missing previous document id")
		}
		previous, err = p.Documents.GetByID(jobCtx, *payload.PreviousDocumentID)
		if err != nil {
			return err
		}
	}

	doc, err := p.Generator.Generate(jobCtx, sbar.GenerateInput{
		HandoffID:  payload.HandoffID,
		Transcript: payload.TranscriptText,
		Patient:    patientContext(patient),
		IsInitial:  payload.IsInitial,
		Previous:   previous,
	})
	if err != nil {
		return err
	}
	doc.PatientID = payload.PatientID
	doc.SourceRecordingID = payload.RecordingID

	inserted, err := p.Documents.InsertVersion(jobCtx, doc)
	if err != nil {
		return err
	}
	if !inserted {
		// A previous delivery of this job already committed the version.
		log.WithField("version", doc.Version).Info("document version already committed, skipping")
	}

	if err := p.Handoffs.UpdateStatus(jobCtx, payload.HandoffID, models.HandoffReady, ""); err != nil {
		return err
	}
	// The ready event fires once per committed version; a redelivered
	// job that found its version already committed stays quiet.
	if inserted && p.Notifier != nil {
		_ = p.Notifier.HandoffReady(jobCtx, payload.HandoffID, doc.Version)
	}

	log.WithFields(logrus.Fields{
		"version":      doc.Version,
		"completeness": doc.CompletenessScore,
		"inserted":     inserted,
	}).Info("sbar document ready")
	return nil
}

func (p *SBARWorkerPool) markTerminalFailure(ctx context.Context, payload queue.GenerateSBARPayload, cause error, log *logrus.Entry) {
	msg := cause.Error()
	if err := p.Handoffs.UpdateStatus(ctx, payload.HandoffID, models.HandoffFailed, msg); err != nil {
		log.WithError(err).Error("failed to mark handoff failed")
	}
	if p.Notifier != nil {
		_ = p.Notifier.HandoffFailed(ctx, payload.HandoffID, msg)
	}
	log.WithError(cause).Error("sbar generation exhausted retries")
}

func patientContext(p *models.Patient) sbar.PatientContext {
	return sbar.PatientContext{
		ID:               p.ID,
		MRN:              p.MRN,
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		DateOfBirth:      p.DateOfBirth,
		Gender:           p.Gender,
		RoomNumber:       p.RoomNumber,
		KnownAllergies:   decodeStringList(p.KnownAllergies),
		KnownMedications: decodeStringList(p.KnownMedications),
	}
}

func decodeStringList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
