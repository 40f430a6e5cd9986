// Package notifications delivers registration emails through the job queue
// and in-app notices to tenant administrators.
package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aura-lms/registration/internal/models"
	"github.com/aura-lms/registration/pkg/queue"
)

// maxFanOut bounds concurrent in-app deliveries per tenant notice.
const maxFanOut = 8

// EmailLogStore records outbound email.
type EmailLogStore interface {
	Create(ctx context.Context, el *models.EmailLog, body string) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, final bool) error
}

// Enqueuer hands email jobs to the worker.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) (string, error)
}

// InAppStore persists in-app notifications.
type InAppStore interface {
	Insert(ctx context.Context, n *models.Notification) error
}

// Publisher pushes in-app notifications to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, n *models.Notification) error
}

// AdminDirectory lists tenant administrators.
type AdminDirectory interface {
	ListAdmins(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)
}

// Email is an outbound message about a registration.
type Email struct {
	Type           string
	To             string
	Subject        string
	Body           string
	RegistrationID *uuid.UUID
}

// Service implements email and in-app delivery.
type Service struct {
	logs      EmailLogStore
	queue     Enqueuer
	inApp     InAppStore
	publisher Publisher
	admins    AdminDirectory
	reviewURL string
	logger    *zap.Logger
}

// NewService creates a notification service. publisher may be nil.
// reviewURL is linked from tenant administrator notices.
func NewService(logs EmailLogStore, q Enqueuer, inApp InAppStore, publisher Publisher, admins AdminDirectory, reviewURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logs: logs, queue: q, inApp: inApp, publisher: publisher, admins: admins, reviewURL: reviewURL, logger: logger}
}

// SendEmail logs the email as pending and queues it for delivery.
func (s *Service) SendEmail(ctx context.Context, e Email) error {
	el := &models.EmailLog{
		RegistrationID: e.RegistrationID,
		EmailType:      e.Type,
		RecipientEmail: e.To,
		Subject:        e.Subject,
	}
	if err := s.logs.Create(ctx, el, e.Body); err != nil {
		return fmt.Errorf("create email log: %w", err)
	}
	_, err := s.queue.EnqueueEmail(ctx, queue.EmailPayload{
		EmailLogID:     el.ID,
		EmailType:      e.Type,
		RegistrationID: e.RegistrationID,
		RecipientEmail: e.To,
		Subject:        e.Subject,
		Body:           e.Body,
	})
	if err != nil {
		if mErr := s.logs.MarkFailed(ctx, el.ID, err.Error(), true); mErr != nil {
			s.logger.Warn("mark email log failed", zap.Error(mErr), zap.String("email_log_id", el.ID.String()))
		}
		return fmt.Errorf("enqueue email: %w", err)
	}
	return nil
}

// SendInApp stores n and pushes it to live subscribers. Push failures are only logged.
func (s *Service) SendInApp(ctx context.Context, n *models.Notification) error {
	if err := s.inApp.Insert(ctx, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, n); err != nil {
			s.logger.Warn("publish notification failed", zap.Error(err), zap.String("user_id", n.UserID.String()))
		}
	}
	return nil
}

// NotifyTenantAdmins sends an in-app notice of the given kind to every
// administrator of the registration's tenant. All admins are attempted; the
// first error is returned.
func (s *Service) NotifyTenantAdmins(ctx context.Context, reg *models.Registration, kind string) error {
	subject, body := subjectConfirmed, bodyConfirmed
	if kind == models.NotificationRegistrationUpdated {
		subject, body = subjectUpdated, bodyUpdated
	}

	admins, err := s.admins.ListAdmins(ctx, reg.TenantID)
	if err != nil {
		return fmt.Errorf("list tenant admins: %w", err)
	}

	regID := reg.ID
	var g errgroup.Group
	g.SetLimit(maxFanOut)
	for _, adminID := range admins {
		adminID := adminID
		g.Go(func() error {
			return s.SendInApp(ctx, &models.Notification{
				UserID:         adminID,
				Kind:           kind,
				Subject:        subject,
				Body:           body,
				URL:            s.reviewURL,
				RegistrationID: &regID,
			})
		})
	}
	return g.Wait()
}
