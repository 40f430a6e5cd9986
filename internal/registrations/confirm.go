package registrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-lms/registration/internal/models"
	"github.com/aura-lms/registration/internal/notifications"
)

// Outcome is the result of following a confirmation link.
type Outcome string

const (
	OutcomeInvalidToken     Outcome = "invalid_token"
	OutcomeAlreadyConfirmed Outcome = "already_confirmed"
	OutcomeExpired          Outcome = "expired"
	OutcomeWriteFailed      Outcome = "write_failed"
	OutcomeAutoApproved     Outcome = "auto_approved"
	OutcomeHeld             Outcome = "held"
)

// ConfirmResult carries the outcome and, once the record was found, the record.
type ConfirmResult struct {
	Outcome      Outcome
	Registration *models.Registration
}

// Confirm processes a confirmation link for record id. The returned error is
// non-nil only when the store could not be read; every other failure is an Outcome.
//
// Retrying after the record was marked confirmed yields AlreadyConfirmed, so
// provisioning is attempted at most once per record.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, token string) (ConfirmResult, error) {
	res, err := s.confirm(ctx, id, token)
	if err == nil {
		s.metrics.IncrementConfirmation(string(res.Outcome))
	}
	return res, err
}

func (s *Service) confirm(ctx context.Context, id uuid.UUID, token string) (ConfirmResult, error) {
	log := s.logger.With(zap.String("registration_id", id.String()))

	if id == uuid.Nil {
		log.Info("confirmation link carries no record id")
		return ConfirmResult{Outcome: OutcomeInvalidToken}, nil
	}
	email, err := s.tokens.Decode(token)
	if err != nil {
		log.Info("confirmation token rejected")
		return ConfirmResult{Outcome: OutcomeInvalidToken}, nil
	}

	reg, err := s.store.Find(ctx, Lookup{ID: id, Email: email})
	if errors.Is(err, ErrNotFound) {
		log.Info("confirmation token does not match record")
		return ConfirmResult{Outcome: OutcomeInvalidToken}, nil
	}
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("find registration: %w", err)
	}

	if reg.Confirmed {
		return ConfirmResult{Outcome: OutcomeAlreadyConfirmed, Registration: reg}, nil
	}
	if s.expiry.Expired(reg.CreatedAt) {
		return ConfirmResult{Outcome: OutcomeExpired, Registration: reg}, nil
	}

	now := s.now()
	if err := s.store.SetConfirmed(ctx, reg.ID, now); err != nil {
		if errors.Is(err, ErrWriteFailed) {
			// A concurrent click may have confirmed it first.
			if cur, ferr := s.store.Find(ctx, Lookup{ID: reg.ID}); ferr == nil && cur.Confirmed {
				return ConfirmResult{Outcome: OutcomeAlreadyConfirmed, Registration: cur}, nil
			}
		}
		log.Error("mark registration confirmed failed", zap.Error(err))
		return ConfirmResult{Outcome: OutcomeWriteFailed, Registration: reg}, nil
	}
	reg.Confirmed = true
	reg.UpdatedAt = &now

	outcome := OutcomeHeld
	if IsTrusted(reg.Email, s.opts.TrustedDomains) {
		if s.autoApprove(ctx, reg) {
			outcome = OutcomeAutoApproved
		}
	}

	s.notifyAdmins(ctx, reg, models.NotificationRegistrationConfirmed)
	log.Info("registration confirmed", zap.String("outcome", string(outcome)))
	return ConfirmResult{Outcome: outcome, Registration: reg}, nil
}

// autoApprove provisions an account for a trusted confirmation. On any
// failure the record stays pending for manual review.
func (s *Service) autoApprove(ctx context.Context, reg *models.Registration) bool {
	user, temp, err := s.provision(ctx, reg, s.opts.SystemAssessor)
	if err != nil {
		s.logger.Warn("auto-approval failed, holding for review", zap.Error(err),
			zap.String("registration_id", reg.ID.String()))
		return false
	}
	s.sendWelcome(ctx, reg, user, temp)
	return true
}

// provision creates the host account, records the approval and attaches the
// account to the tenant. If the approval cannot be recorded the account is
// deleted again so no account exists for an unapproved record.
func (s *Service) provision(ctx context.Context, reg *models.Registration, assessor uuid.UUID) (*models.User, string, error) {
	log := s.logger.With(zap.String("registration_id", reg.ID.String()))

	user, temp, err := s.accounts.CreateAccount(ctx, reg)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrProvisioning, accountError(err))
	}

	now := s.now()
	if err := s.store.SetReview(ctx, reg.ID, models.ApprovalApproved, assessor, now); err != nil {
		if dErr := s.accounts.DeleteAccount(ctx, user.ID); dErr != nil {
			log.Error("delete account after failed approval", zap.Error(dErr), zap.String("user_id", user.ID.String()))
		}
		return nil, "", fmt.Errorf("record approval: %w", err)
	}
	reg.Approved = models.ApprovalApproved
	reg.Assessor = &assessor
	reg.UpdatedAt = &now

	if err := s.tenants.AttachAccount(ctx, reg.TenantID, user.ID); err != nil {
		log.Warn("attach account to tenant failed", zap.Error(err),
			zap.String("tenant_id", reg.TenantID.String()), zap.String("user_id", user.ID.String()))
	}
	return user, temp, nil
}

func (s *Service) sendWelcome(ctx context.Context, reg *models.Registration, user *models.User, temp string) {
	data := s.emailData(reg)
	data.Email = user.Email
	data.TemporaryPassword = temp
	data.Link = s.opts.PublicBaseURL + "/login"
	s.sendEmail(ctx, reg, models.EmailTypeWelcome, notifications.RenderWelcome, data)
}
