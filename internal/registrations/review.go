package registrations

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-lms/registration/internal/auth"
	"github.com/aura-lms/registration/internal/models"
	"github.com/aura-lms/registration/internal/notifications"
)

// MaxReasonLength is the longest rejection or edit-request reason, in characters.
const MaxReasonLength = 500

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Actor is the administrator performing a review action.
type Actor struct {
	UserID      uuid.UUID
	GlobalAdmin bool
}

// SanitizeReason strips markup and surrounding space from an administrator's reason.
func SanitizeReason(reason string) (string, error) {
	clean := strings.TrimSpace(tagPattern.ReplaceAllString(reason, ""))
	if clean == "" || utf8.RuneCountInString(clean) > MaxReasonLength {
		return "", ErrInvalidReason
	}
	return clean, nil
}

func accountError(err error) error {
	if errors.Is(err, auth.ErrAccountExists) {
		return ErrAccountExists
	}
	return err
}

func (s *Service) authorize(ctx context.Context, actor Actor, tenantID uuid.UUID) error {
	if actor.GlobalAdmin {
		return nil
	}
	ok, err := s.tenants.IsTenantAdmin(ctx, tenantID, actor.UserID)
	if err != nil {
		return fmt.Errorf("check tenant admin: %w", err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// loadForReview returns a record the actor may act on. Authorization is
// checked before the record's state is considered.
func (s *Service) loadForReview(ctx context.Context, actor Actor, id uuid.UUID) (*models.Registration, error) {
	reg, err := s.store.Find(ctx, Lookup{ID: id})
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, reg.TenantID); err != nil {
		return nil, err
	}
	if !reg.Confirmed || !reg.Approved.Actionable() {
		return nil, ErrInvalidState
	}
	return reg, nil
}

// Approve provisions the host account and records the actor as assessor.
// The welcome email is sent last and never undoes the approval.
func (s *Service) Approve(ctx context.Context, actor Actor, id uuid.UUID) (*models.Registration, error) {
	reg, err := s.loadForReview(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	user, temp, err := s.provision(ctx, reg, actor.UserID)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementReview("approve")
	s.logger.Info("registration approved", zap.String("registration_id", reg.ID.String()),
		zap.String("assessor", actor.UserID.String()))
	s.sendWelcome(ctx, reg, user, temp)
	return reg, nil
}

// Reject records the rejection and mails the reason to the applicant.
func (s *Service) Reject(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*models.Registration, error) {
	reg, err := s.loadForReview(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	clean, err := SanitizeReason(reason)
	if err != nil {
		return nil, err
	}
	if err := s.setReview(ctx, reg, models.ApprovalRejected, actor.UserID); err != nil {
		return nil, err
	}
	s.metrics.IncrementReview("reject")
	s.logger.Info("registration rejected", zap.String("registration_id", reg.ID.String()),
		zap.String("assessor", actor.UserID.String()))

	data := s.emailData(reg)
	data.Reason = clean
	s.sendEmail(ctx, reg, models.EmailTypeRejection, notifications.RenderRejection, data)
	return reg, nil
}

// Notify asks the applicant to edit and resubmit, mailing the reason and a
// fresh edit link.
func (s *Service) Notify(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*models.Registration, error) {
	reg, err := s.loadForReview(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	clean, err := SanitizeReason(reason)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Encode(reg.Email)
	if err != nil {
		return nil, fmt.Errorf("encode edit token: %w", err)
	}
	if err := s.setReview(ctx, reg, models.ApprovalNotified, actor.UserID); err != nil {
		return nil, err
	}
	s.metrics.IncrementReview("notify")
	s.logger.Info("registration returned for edit", zap.String("registration_id", reg.ID.String()),
		zap.String("assessor", actor.UserID.String()))

	data := s.emailData(reg)
	data.Reason = clean
	data.Link = s.Link(ViewEdit, reg.ID, token)
	s.sendEmail(ctx, reg, models.EmailTypeEditRequest, notifications.RenderEditRequest, data)
	return reg, nil
}

func (s *Service) setReview(ctx context.Context, reg *models.Registration, status models.ApprovalStatus, assessor uuid.UUID) error {
	now := s.now()
	if err := s.store.SetReview(ctx, reg.ID, status, assessor, now); err != nil {
		return fmt.Errorf("record %s: %w", status, err)
	}
	reg.Approved = status
	reg.Assessor = &assessor
	reg.UpdatedAt = &now
	return nil
}

// EmailHistory returns the email sent about a registration the actor administers.
func (s *Service) EmailHistory(ctx context.Context, actor Actor, id uuid.UUID) ([]*models.EmailLog, error) {
	reg, err := s.store.Find(ctx, Lookup{ID: id})
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, reg.TenantID); err != nil {
		return nil, err
	}
	logs, err := s.emails.ListByRegistration(ctx, reg.ID)
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	return logs, nil
}
