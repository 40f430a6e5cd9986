package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-lms/registration/internal/models"
	"github.com/aura-lms/registration/pkg/utils"
)

const tempPasswordLength = 14

// UserStore is the persistence used by Accounts.
type UserStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByNamePrefix(ctx context.Context, firstName, lastName string) (*models.User, error)
}

// Accounts provisions host accounts for approved registrations.
type Accounts struct {
	users  UserStore
	logger *zap.Logger
}

// NewAccounts creates an account provisioner.
func NewAccounts(users UserStore, logger *zap.Logger) *Accounts {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accounts{users: users, logger: logger}
}

// EmailExists reports whether a host account already uses email.
func (a *Accounts) EmailExists(ctx context.Context, email string) (bool, error) {
	return a.users.EmailExists(ctx, email)
}

// CreateAccount creates a host account from a registration record with a
// random temporary password that must be changed on first login. The
// plaintext temporary password is returned so it can be mailed once.
func (a *Accounts) CreateAccount(ctx context.Context, reg *models.Registration) (*models.User, string, error) {
	temp, err := utils.GenerateTempPassword(tempPasswordLength)
	if err != nil {
		return nil, "", fmt.Errorf("temp password: %w", err)
	}
	hash, err := utils.HashPassword(temp)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{
		Email:     strings.ToLower(strings.TrimSpace(reg.Email)),
		Password:  hash,
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
		Role:      models.RoleUser,
		Country:   reg.Country,
		Profile: models.Profile{
			Gender:    reg.Gender,
			Position:  reg.Position,
			Domain:    reg.Domain,
			Interests: reg.Interests,
		},
		ForcePasswordChange: true,
	}
	if err := a.users.Create(ctx, u); err != nil {
		return nil, "", err
	}
	a.logger.Info("account provisioned", zap.String("user_id", u.ID.String()), zap.String("registration_id", reg.ID.String()))
	return u, temp, nil
}

// DeleteAccount removes an account created for a registration whose approval could not be recorded.
func (a *Accounts) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	return a.users.Delete(ctx, id)
}

// FindSimilar returns an existing account whose names start with the given
// first and last names, or nil when there is none.
func (a *Accounts) FindSimilar(ctx context.Context, firstName, lastName string) (*models.User, error) {
	u, err := a.users.FindByNamePrefix(ctx, firstName, lastName)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil
	}
	return u, err
}
