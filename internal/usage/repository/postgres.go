package repository

import (
	"context"
	"database/sql"
	"time"

	"researchllm/backend/internal/usage/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a usage repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const recordColumns = `id, user_id, model_used, provider, tokens_used, cost, query_type, created_at`

// Insert appends the usage record. It sets rec.ID on success.
func (r *PostgresRepository) Insert(ctx context.Context, rec *domain.Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return r.db.QueryRowContext(ctx, `
		INSERT INTO usage_records (user_id, model_used, provider, tokens_used, cost, query_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		rec.UserID, rec.ModelUsed, rec.Provider, rec.TokensUsed, rec.Cost, rec.QueryType, rec.CreatedAt,
	).Scan(&rec.ID)
}

// ListByUserSince returns the user's records with created_at >= since, oldest first.
func (r *PostgresRepository) ListByUserSince(ctx context.Context, userID string, since time.Time) ([]*domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM usage_records
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at`,
		userID, since,
	)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

// ListAll returns every usage record, oldest first.
func (r *PostgresRepository) ListAll(ctx context.Context) ([]*domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM usage_records ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]*domain.Record, error) {
	defer rows.Close()
	var out []*domain.Record
	for rows.Next() {
		var rec domain.Record
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.ModelUsed, &rec.Provider,
			&rec.TokensUsed, &rec.Cost, &rec.QueryType, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
