// Package repository persists usage records.
package repository

import (
	"context"
	"time"

	"researchllm/backend/internal/usage/domain"
)

// Repository stores and lists usage records.
type Repository interface {
	// Insert appends the record and sets rec.ID on success.
	Insert(ctx context.Context, rec *domain.Record) error
	// ListByUserSince returns the user's records with created_at >= since,
	// oldest first.
	ListByUserSince(ctx context.Context, userID string, since time.Time) ([]*domain.Record, error)
	// ListAll returns every record, oldest first.
	ListAll(ctx context.Context) ([]*domain.Record, error)
}
