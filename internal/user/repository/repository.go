package repository

import (
	"context"

	"researchllm/backend/internal/user/domain"
)

// Repository defines persistence for user profiles.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Upsert inserts the user or, when the id already exists, overwrites the
	// profile fields. Keyed by the provider-issued id so concurrent
	// registrations for the same identity converge instead of racing.
	Upsert(ctx context.Context, u *domain.User) (*domain.User, error)
	// UpdateProfile updates full_name and/or company; nil pointers leave the
	// field unchanged. Returns the updated user, or nil if the id is unknown.
	UpdateProfile(ctx context.Context, id string, fullName, company *string) (*domain.User, error)
}
