package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"researchllm/backend/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, full_name, company, is_active, created_at, updated_at`

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// Upsert inserts the user or overwrites its profile fields when the id exists.
// A single statement keyed on id; there is no read-then-write window.
func (r *PostgresRepository) Upsert(ctx context.Context, u *domain.User) (*domain.User, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, full_name, company, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			full_name = EXCLUDED.full_name,
			company = EXCLUDED.company,
			updated_at = EXCLUDED.updated_at
		RETURNING `+userColumns,
		u.ID, u.Email, u.FullName, u.Company, u.IsActive, u.CreatedAt, now,
	)
	return scanUser(row)
}

// UpdateProfile updates full_name and/or company for the given id; nil leaves a
// field unchanged. Returns the updated user, or nil if no row matched.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, fullName, company *string) (*domain.User, error) {
	if fullName == nil && company == nil {
		return r.GetByID(ctx, id)
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE users SET
			full_name = COALESCE($2, full_name),
			company = COALESCE($3, company),
			updated_at = $4
		WHERE id = $1
		RETURNING `+userColumns,
		id, fullName, company, time.Now().UTC(),
	)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Company, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
