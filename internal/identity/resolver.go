package identity

import (
	"context"
	"errors"

	"researchllm/backend/internal/security"
	userdomain "researchllm/backend/internal/user/domain"
)

// Sentinel errors for request authentication; the HTTP layer maps them to statuses.
var (
	// ErrUnauthenticated covers every invalid-token cause, including a valid
	// token whose subject no longer exists. The two cases must be
	// indistinguishable to the caller.
	ErrUnauthenticated = errors.New("could not validate credentials")
	// ErrInactive means the token was valid but the account is deactivated.
	ErrInactive = errors.New("inactive user")
)

// UserStore is the minimal user lookup the resolver needs.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// Resolver turns a bearer token into the current user. Both stages — token
// validation and the store lookup — run on every call; activation state can
// change between requests, so nothing is cached across them.
type Resolver struct {
	codec *security.TokenCodec
	users UserStore
}

// NewResolver returns a Resolver using the given codec and user store.
func NewResolver(codec *security.TokenCodec, users UserStore) *Resolver {
	return &Resolver{codec: codec, users: users}
}

// Resolve validates the token and fetches the user it identifies.
// Returns ErrUnauthenticated for any invalid token or unknown subject,
// ErrInactive for a deactivated account, and the user otherwise.
func (r *Resolver) Resolve(ctx context.Context, token string) (*userdomain.User, error) {
	subject, err := r.codec.Validate(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	u, err := r.users.GetByID(ctx, subject)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUnauthenticated
	}
	if !u.IsActive {
		return nil, ErrInactive
	}
	return u, nil
}
