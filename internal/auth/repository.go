package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-lms/registration/internal/models"
	"github.com/aura-lms/registration/pkg/database"
)

var (
	// ErrUserNotFound is returned when no account matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists is returned when an account with the same email already exists.
	ErrAccountExists = errors.New("account already exists")
)

const userColumns = `id, email, password_hash, first_name, last_name, role, country, profile,
	force_password_change, created_at, updated_at`

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	var profile []byte
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FirstName, &u.LastName, &role, &u.Country, &profile,
		&u.ForcePasswordChange, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.Role = models.Role(role)
	if len(profile) > 0 {
		if err := json.Unmarshal(profile, &u.Profile); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by email, compared case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// EmailExists reports whether any account uses email, compared case-insensitively.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1))`, email).Scan(&exists)
	return exists, err
}

// FindByNamePrefix returns the oldest account whose first and last names start
// with the given values, or ErrUserNotFound.
func (r *Repository) FindByNamePrefix(ctx context.Context, firstName, lastName string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users
		WHERE first_name ILIKE $1 AND last_name ILIKE $2
		ORDER BY created_at ASC LIMIT 1`
	return scanUser(r.pool.QueryRow(ctx, q, likePrefix(firstName), likePrefix(lastName)))
}

// FirstAdminID returns the oldest platform administrator.
func (r *Repository) FirstAdminID(ctx context.Context) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM users WHERE role = $1 ORDER BY created_at ASC LIMIT 1`, string(models.RoleAdmin)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrUserNotFound
	}
	return id, err
}

// List returns all users for administrators.
func (r *Repository) List(ctx context.Context) ([]models.UserPublic, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, email, first_name, last_name, role, created_at FROM users ORDER BY last_name, first_name, email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.UserPublic
	for rows.Next() {
		var u models.UserPublic
		var role string
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &role, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = models.Role(role)
		list = append(list, u)
	}
	return list, rows.Err()
}

// Create inserts a new user. A duplicate email yields ErrAccountExists.
func (r *Repository) Create(ctx context.Context, u *models.User) error {
	profile, err := json.Marshal(u.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	const q = `INSERT INTO users (email, password_hash, first_name, last_name, role, country, profile, force_password_change)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	err = r.pool.QueryRow(ctx, q, u.Email, u.Password, u.FirstName, u.LastName, string(u.Role), u.Country, profile, u.ForcePasswordChange).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if database.IsUniqueViolation(err, "") {
		return ErrAccountExists
	}
	return err
}

// Delete removes a user.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func likePrefix(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s) + "%"
}
