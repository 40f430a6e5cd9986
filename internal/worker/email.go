package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-lms/registration/internal/metrics"
	"github.com/aura-lms/registration/pkg/mailer"
	"github.com/aura-lms/registration/pkg/queue"
)

// Email delivery outcomes recorded in metrics.
const (
	emailSent    = "sent"
	emailRetried = "retried"
	emailFailed  = "failed"
)

// JobQueue is the subset of the Redis queue the processor consumes.
type JobQueue interface {
	Dequeue(ctx context.Context, key string, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) (exhausted bool, err error)
}

// DeliveryLog records delivery state on the email log row.
type DeliveryLog interface {
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, final bool) error
}

// Mailer sends one message.
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// EmailProcessor delivers queued registration emails and records the outcome.
type EmailProcessor struct {
	queue       JobQueue
	logs        DeliveryLog
	mailer      Mailer
	metrics     *metrics.Metrics
	pollTimeout time.Duration
	backoff     time.Duration
	logger      *zap.Logger
}

// NewEmailProcessor creates an email delivery processor.
func NewEmailProcessor(q JobQueue, logs DeliveryLog, m Mailer, mx *metrics.Metrics, pollTimeout time.Duration, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &EmailProcessor{
		queue:       q,
		logs:        logs,
		mailer:      m,
		metrics:     mx,
		pollTimeout: pollTimeout,
		backoff:     queue.RetryBackoff,
		logger:      logger,
	}
}

// Process sends the email carried by job and marks its log sent.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	payload, err := decodeEmail(job)
	if err != nil {
		return err
	}
	err = p.mailer.Send(ctx, mailer.Message{To: payload.RecipientEmail, Subject: payload.Subject, Body: payload.Body})
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if err := p.logs.MarkSent(ctx, payload.EmailLogID); err != nil {
		// Delivered already, so the job is not retried.
		p.logger.Error("mark email sent failed", zap.Error(err), zap.String("email_log_id", payload.EmailLogID.String()))
	}
	p.metrics.IncrementEmail(emailSent)
	p.logger.Info("email sent", zap.String("job_id", job.ID), zap.String("email_type", payload.EmailType),
		zap.String("email_log_id", payload.EmailLogID.String()))
	return nil
}

func decodeEmail(job *queue.Job) (*queue.EmailPayload, error) {
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &payload, nil
}

// Run dequeues and processes email jobs until ctx is cancelled. Failed jobs
// are retried, then parked in the DLQ and their log marked failed.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, queue.QueueEmails, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, p.backoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			p.fail(ctx, job, err)
			sleep(ctx, p.backoff)
		}
	}
}

func (p *EmailProcessor) fail(ctx context.Context, job *queue.Job, cause error) {
	exhausted, err := p.queue.Retry(ctx, job)
	if err != nil {
		p.logger.Error("retry enqueue failed", zap.Error(err), zap.String("job_id", job.ID))
	}
	if exhausted {
		p.metrics.IncrementEmail(emailFailed)
	} else {
		p.metrics.IncrementEmail(emailRetried)
	}

	payload, err := decodeEmail(job)
	if err != nil || payload.EmailLogID == uuid.Nil {
		return
	}
	if err := p.logs.MarkFailed(ctx, payload.EmailLogID, cause.Error(), exhausted); err != nil {
		p.logger.Warn("mark email failed", zap.Error(err), zap.String("email_log_id", payload.EmailLogID.String()))
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
