// Package privacy exports and erases the personal data held in registration records.
package privacy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-lms/registration/internal/models"
	"github.com/aura-lms/registration/pkg/storage"
)

// ErrNoData is returned when no registration exists for the email.
var ErrNoData = errors.New("no registration data for this email")

// ErrInvalidEmail is returned for a blank subject email.
var ErrInvalidEmail = errors.New("email is required")

// ErrExportDisabled is returned by Export when no object store is configured.
var ErrExportDisabled = errors.New("object storage not configured")

// Records reads and erases registration records by email.
type Records interface {
	ListByEmail(ctx context.Context, email string) ([]*models.Registration, error)
	DeleteByEmail(ctx context.Context, email string) (int64, error)
}

// EmailHistory lists emails sent about a registration.
type EmailHistory interface {
	ListByRegistration(ctx context.Context, registrationID uuid.UUID) ([]*models.EmailLog, error)
}

// ObjectStore uploads exports and signs download links.
type ObjectStore interface {
	ExportsBucket() string
	PresignExpire() time.Duration
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) error
	GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
}

// Export is the exported data for one email.
type Export struct {
	Email         string                 `json:"email"`
	ExportedAt    time.Time              `json:"exported_at"`
	Registrations []*models.Registration `json:"registrations"`
	Emails        []*models.EmailLog     `json:"emails"`
}

// ExportResult locates an uploaded export.
type ExportResult struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Records   int       `json:"records"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service handles data subject requests.
type Service struct {
	records Records
	emails  EmailHistory
	store   ObjectStore
	now     func() time.Time
	logger  *zap.Logger
}

// NewService creates a privacy service. store may be nil when object
// storage is not configured; Export then fails.
func NewService(records Records, emails EmailHistory, store ObjectStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{records: records, emails: emails, store: store, now: time.Now, logger: logger}
}

func normalize(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// Export writes every registration record and email log for email to the
// exports bucket as JSON and returns a presigned download link.
func (s *Service) Export(ctx context.Context, email string) (*ExportResult, error) {
	email, err := normalize(email)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, ErrExportDisabled
	}
	regs, err := s.records.ListByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	if len(regs) == 0 {
		return nil, ErrNoData
	}

	now := s.now().UTC()
	export := Export{Email: email, ExportedAt: now, Registrations: regs, Emails: []*models.EmailLog{}}
	for _, reg := range regs {
		logs, err := s.emails.ListByRegistration(ctx, reg.ID)
		if err != nil {
			return nil, fmt.Errorf("list email logs: %w", err)
		}
		export.Emails = append(export.Emails, logs...)
	}
	body, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}

	key := storage.ExportKey(regs[0].ID.String(), now)
	bucket := s.store.ExportsBucket()
	if err := s.store.Upload(ctx, bucket, key, "application/json", bytes.NewReader(body)); err != nil {
		return nil, err
	}
	expires := s.store.PresignExpire()
	url, err := s.store.GeneratePresignedDownloadURL(ctx, bucket, key, expires)
	if err != nil {
		return nil, err
	}
	s.logger.Info("privacy export created", zap.String("registration_id", regs[0].ID.String()), zap.String("key", key))
	return &ExportResult{Key: key, URL: url, Records: len(regs), ExpiresAt: now.Add(expires)}, nil
}

// Erase deletes every registration record for email and returns how many were removed.
func (s *Service) Erase(ctx context.Context, email string) (int64, error) {
	email, err := normalize(email)
	if err != nil {
		return 0, err
	}
	n, err := s.records.DeleteByEmail(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("delete registrations: %w", err)
	}
	s.logger.Info("privacy erase completed", zap.Int64("deleted", n))
	return n, nil
}
