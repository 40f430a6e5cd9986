// Package catalog reads the site policies and the selectable profile-field
// options shown on the registration form.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-lms/registration/internal/models"
)

// Repository handles policy and profile-field persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a catalog repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListCurrentPolicies returns the policies an applicant must accept, in display order.
func (r *Repository) ListCurrentPolicies(ctx context.Context) ([]models.Policy, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, url FROM policies WHERE is_current ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Policy
	for rows.Next() {
		var p models.Policy
		if err := rows.Scan(&p.ID, &p.Name, &p.URL); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// FieldOptions returns the options of a profile field. An unknown field has no options.
func (r *Repository) FieldOptions(ctx context.Context, shortname string) ([]string, error) {
	var raw string
	err := r.pool.QueryRow(ctx, `SELECT options FROM profile_fields WHERE shortname = $1`, shortname).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return SplitOptions(raw), nil
}

// ListFields returns every profile field with its options.
func (r *Repository) ListFields(ctx context.Context) ([]models.ProfileField, error) {
	rows, err := r.pool.Query(ctx, `SELECT shortname, name, options FROM profile_fields ORDER BY shortname`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ProfileField
	for rows.Next() {
		var f models.ProfileField
		var raw string
		if err := rows.Scan(&f.ShortName, &f.Name, &raw); err != nil {
			return nil, err
		}
		f.Options = SplitOptions(raw)
		list = append(list, f)
	}
	return list, rows.Err()
}

// SplitOptions splits newline-delimited option text, dropping blank lines.
func SplitOptions(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if v := strings.TrimSpace(line); v != "" {
			out = append(out, v)
		}
	}
	return out
}
