// Package identity establishes who a caller is: it talks to the managed auth
// provider for credentials, resolves access tokens to user records, and owns
// the register/login/reset flows.
package identity

import (
	"context"
	"errors"
)

// Sentinel errors for auth provider calls; the service maps them to its own taxonomy.
var (
	// ErrProviderDuplicate is returned when the provider already has an account for the email.
	ErrProviderDuplicate = errors.New("email already registered with auth provider")
	// ErrProviderRejected is returned when the provider rejects the credentials or request.
	ErrProviderRejected = errors.New("auth provider rejected the request")
)

// ProviderUser is an identity as known to the managed auth provider.
type ProviderUser struct {
	ID       string
	Email    string
	FullName string
	Company  string
}

// Provider is the managed auth backend: it owns credentials, password reset
// emails, and email verification. Everything here is remote and may fail;
// callers decide what degrades and what surfaces.
type Provider interface {
	// SignUp creates the account and returns the provider-issued user id.
	SignUp(ctx context.Context, email, password, fullName, company string) (*ProviderUser, error)
	// PasswordGrant verifies email/password and returns the identity on success.
	PasswordGrant(ctx context.Context, email, password string) (*ProviderUser, error)
	// SendPasswordReset asks the provider to email reset instructions.
	SendPasswordReset(ctx context.Context, email string) error
	// ResendVerification asks the provider to resend the signup verification email.
	ResendVerification(ctx context.Context, email string) error
	// AdminUpdatePassword sets a new password for the user via the service-role API.
	AdminUpdatePassword(ctx context.Context, userID, newPassword string) error
}
