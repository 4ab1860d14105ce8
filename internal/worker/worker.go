package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gatherhub/backend/internal/emaillogs"
	"github.com/gatherhub/backend/internal/models"
	"github.com/gatherhub/backend/pkg/queue"
)

// NotificationProcessor processes notification email jobs: record the email
// log, hand off to the mail sender, update delivery status.
type NotificationProcessor struct {
	emailRepo *emaillogs.Repository
	queue     *queue.Queue
	send      SendFunc
	logger    *zap.Logger
}

// SendFunc delivers one email. Wired to the platform mailer in production;
// tests and minimal deployments use a no-op.
type SendFunc func(ctx context.Context, recipient, subject string) error

// NewNotificationProcessor creates a notification job processor. send may be
// nil, in which case deliveries are logged only.
func NewNotificationProcessor(emailRepo *emaillogs.Repository, q *queue.Queue, send SendFunc, logger *zap.Logger) *NotificationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationProcessor{emailRepo: emailRepo, queue: q, send: send, logger: logger}
}

// Process executes one notification job.
func (p *NotificationProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeNotification {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.NotificationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	userID := payload.UserID
	el := &models.EmailLog{
		UserID:    &userID,
		EmailType: payload.EmailType,
		Recipient: payload.Recipient,
		Subject:   payload.Subject,
		Status:    models.EmailLogStatusPending,
	}
	if err := p.emailRepo.Create(ctx, el); err != nil {
		return fmt.Errorf("create email log: %w", err)
	}

	if p.send != nil {
		if err := p.send(ctx, payload.Recipient, payload.Subject); err != nil {
			if logErr := p.emailRepo.MarkFailed(ctx, el.ID, err.Error()); logErr != nil {
				p.logger.Error("mark email failed", zap.Error(logErr), zap.String("email_log_id", el.ID.String()))
			}
			return fmt.Errorf("send email: %w", err)
		}
	}

	if err := p.emailRepo.MarkSent(ctx, el.ID, time.Now()); err != nil {
		p.logger.Error("mark email sent", zap.Error(err), zap.String("email_log_id", el.ID.String()))
	}

	p.logger.Info("notification processed",
		zap.String("email_type", payload.EmailType),
		zap.String("recipient", payload.Recipient))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *NotificationProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
