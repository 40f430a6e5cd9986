package registrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-lms/registration/internal/models"
	"github.com/aura-lms/registration/pkg/database"
)

// Lookup selects a registration by id, email, or both. With both set the
// record must match both.
type Lookup struct {
	ID    uuid.UUID
	Email string
}

// ReviewFilter narrows the administrator grid. A nil TenantIDs means every tenant.
type ReviewFilter struct {
	TenantIDs []uuid.UUID
	Limit     int
	Offset    int
}

// Store persists registration records.
//
// Concurrent writers are not serialised: the last write to a field wins.
// Uniqueness of email and the conditional confirmation flip are enforced
// by the database.
type Store interface {
	Insert(ctx context.Context, reg *models.Registration) error
	Find(ctx context.Context, l Lookup) (*models.Registration, error)
	SetConfirmed(ctx context.Context, id uuid.UUID, at time.Time) error
	SetReview(ctx context.Context, id uuid.UUID, status models.ApprovalStatus, assessor uuid.UUID, at time.Time) error
	ResetForResubmission(ctx context.Context, reg *models.Registration, at time.Time) error
	DeleteExpired(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
	ListForReview(ctx context.Context, f ReviewFilter) ([]*models.Registration, int, error)
	ListByEmail(ctx context.Context, email string) ([]*models.Registration, error)
	DeleteByEmail(ctx context.Context, email string) (int64, error)
}

const emailConstraint = "registrations_email_key"

const selectColumns = `id, tenant_id, first_name, last_name, email, country, gender, position, domain, comments,
	interests, confirmed, approved, assessor, created_at, updated_at`

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	var interests []byte
	var approved int16
	err := row.Scan(&reg.ID, &reg.TenantID, &reg.FirstName, &reg.LastName, &reg.Email, &reg.Country, &reg.Gender,
		&reg.Position, &reg.Domain, &reg.Comments, &interests, &reg.Confirmed, &approved, &reg.Assessor,
		&reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	reg.Approved = models.ApprovalStatus(approved)
	if len(interests) > 0 {
		if err := json.Unmarshal(interests, &reg.Interests); err != nil {
			return nil, fmt.Errorf("decode interests: %w", err)
		}
	}
	return &reg, nil
}

func encodeInterests(in []string) ([]byte, error) {
	if in == nil {
		in = []string{}
	}
	return json.Marshal(in)
}

// Insert creates a pending, unconfirmed record. A duplicate email yields ErrEmailTaken.
func (r *Repository) Insert(ctx context.Context, reg *models.Registration) error {
	interests, err := encodeInterests(reg.Interests)
	if err != nil {
		return err
	}
	const q = `INSERT INTO registrations (tenant_id, first_name, last_name, email, country, gender, position, domain, comments, interests)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, confirmed, approved, created_at`
	var approved int16
	err = r.pool.QueryRow(ctx, q, reg.TenantID, reg.FirstName, reg.LastName, reg.Email, reg.Country, reg.Gender,
		reg.Position, reg.Domain, reg.Comments, interests).
		Scan(&reg.ID, &reg.Confirmed, &approved, &reg.CreatedAt)
	if database.IsUniqueViolation(err, emailConstraint) {
		return ErrEmailTaken
	}
	if err != nil {
		return err
	}
	reg.Approved = models.ApprovalStatus(approved)
	return nil
}

// Find returns the record matching l.
func (r *Repository) Find(ctx context.Context, l Lookup) (*models.Registration, error) {
	var row pgx.Row
	switch {
	case l.ID != uuid.Nil && l.Email != "":
		row = r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM registrations WHERE id = $1 AND email = $2`, l.ID, l.Email)
	case l.ID != uuid.Nil:
		row = r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM registrations WHERE id = $1`, l.ID)
	case l.Email != "":
		row = r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM registrations WHERE email = $1`, l.Email)
	default:
		return nil, ErrInvalidLookup
	}
	reg, err := scanRegistration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return reg, err
}

// SetConfirmed flips confirmed from false to true. ErrWriteFailed if the
// record is missing or already confirmed.
func (r *Repository) SetConfirmed(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `UPDATE registrations SET confirmed = TRUE, updated_at = $2 WHERE id = $1 AND confirmed = FALSE`
	return r.exec(ctx, q, id, at)
}

// SetReview records an approval decision and its assessor in one statement.
func (r *Repository) SetReview(ctx context.Context, id uuid.UUID, status models.ApprovalStatus, assessor uuid.UUID, at time.Time) error {
	const q = `UPDATE registrations SET approved = $2, assessor = $3, updated_at = $4 WHERE id = $1`
	return r.exec(ctx, q, id, int16(status), assessor, at)
}

// ResetForResubmission stores edited applicant fields and returns the record to pending.
func (r *Repository) ResetForResubmission(ctx context.Context, reg *models.Registration, at time.Time) error {
	interests, err := encodeInterests(reg.Interests)
	if err != nil {
		return err
	}
	const q = `UPDATE registrations SET first_name = $2, last_name = $3, country = $4, gender = $5,
		position = $6, domain = $7, comments = $8, interests = $9, approved = $10, updated_at = $11
		WHERE id = $1`
	if err := r.exec(ctx, q, reg.ID, reg.FirstName, reg.LastName, reg.Country, reg.Gender,
		reg.Position, reg.Domain, reg.Comments, interests, int16(models.ApprovalPending), at); err != nil {
		return err
	}
	reg.Approved = models.ApprovalPending
	reg.UpdatedAt = &at
	return nil
}

func (r *Repository) exec(ctx context.Context, q string, args ...any) error {
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWriteFailed
	}
	return nil
}

// DeleteExpired removes unconfirmed records created before cutoff and returns their ids.
func (r *Repository) DeleteExpired(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `DELETE FROM registrations WHERE confirmed = FALSE AND created_at < $1 RETURNING id`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListForReview returns records awaiting review (pending or notified) and the total count.
func (r *Repository) ListForReview(ctx context.Context, f ReviewFilter) ([]*models.Registration, int, error) {
	const where = `WHERE approved IN (0, -2) AND ($1::uuid[] IS NULL OR tenant_id = ANY($1))`
	var tenants []uuid.UUID
	if f.TenantIDs != nil {
		tenants = f.TenantIDs
		if len(tenants) == 0 {
			return nil, 0, nil
		}
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM registrations `+where, tenants).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + selectColumns + ` FROM registrations ` + where + ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, q, tenants, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []*models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, reg)
	}
	return list, total, rows.Err()
}

// ListByEmail returns every record for the email.
func (r *Repository) ListByEmail(ctx context.Context, email string) ([]*models.Registration, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns+` FROM registrations WHERE email = $1 ORDER BY created_at`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, reg)
	}
	return list, rows.Err()
}

// DeleteByEmail erases every record for the email.
func (r *Repository) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM registrations WHERE email = $1`, email)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
