package emaillogs

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-lms/registration/internal/models"
)

// ErrNotFound is returned when an email log does not exist.
var ErrNotFound = errors.New("email log not found")

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a pending log row for an email about to be queued. body is kept for resends.
func (r *Repository) Create(ctx context.Context, el *models.EmailLog, body string) error {
	const q = `INSERT INTO email_logs (registration_id, email_type, recipient_email, subject, body, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	el.Status = models.EmailLogStatusPending
	return r.pool.QueryRow(ctx, q, el.RegistrationID, el.EmailType, el.RecipientEmail, el.Subject, body, el.Status).
		Scan(&el.ID, &el.CreatedAt)
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE email_logs SET status = $2, sent_at = NOW(), attempts = attempts + 1, error_message = NULL WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, models.EmailLogStatusSent)
	return err
}

// MarkFailed records a failed delivery attempt. final marks the log failed; otherwise it stays pending.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, final bool) error {
	status := models.EmailLogStatusPending
	if final {
		status = models.EmailLogStatusFailed
	}
	const q = `UPDATE email_logs SET status = $2, attempts = attempts + 1, error_message = $3 WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, status, errMsg)
	return err
}

// MarkPending resets a log before a manual resend.
func (r *Repository) MarkPending(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = $2 WHERE id = $1`, id, models.EmailLogStatusPending)
	return err
}

// Get returns a log and its stored body.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.EmailLog, string, error) {
	const q = `SELECT id, registration_id, email_type, recipient_email, COALESCE(subject, ''), body, status, attempts, sent_at, COALESCE(error_message, ''), created_at
		FROM email_logs WHERE id = $1`
	var el models.EmailLog
	var body string
	err := r.pool.QueryRow(ctx, q, id).Scan(&el.ID, &el.RegistrationID, &el.EmailType, &el.RecipientEmail, &el.Subject, &body,
		&el.Status, &el.Attempts, &el.SentAt, &el.ErrorMessage, &el.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return &el, body, nil
}

// ListByRegistration returns email logs for a registration, newest first.
func (r *Repository) ListByRegistration(ctx context.Context, registrationID uuid.UUID) ([]*models.EmailLog, error) {
	const q = `SELECT id, registration_id, email_type, recipient_email, COALESCE(subject, ''), status, attempts, sent_at, COALESCE(error_message, ''), created_at
		FROM email_logs
		WHERE registration_id = $1
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, registrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.EmailLog
	for rows.Next() {
		var el models.EmailLog
		if err := rows.Scan(&el.ID, &el.RegistrationID, &el.EmailType, &el.RecipientEmail, &el.Subject, &el.Status,
			&el.Attempts, &el.SentAt, &el.ErrorMessage, &el.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}
