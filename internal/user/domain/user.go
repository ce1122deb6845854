package domain

import (
	"errors"
	"time"
)

// User is the profile record for an authenticated principal. Identity and
// credentials live in the managed auth provider; this row holds only the
// profile fields the API serves.
type User struct {
	ID        string
	Email     string
	FullName  string
	Company   string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("id is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	return nil
}
