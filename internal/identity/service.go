package identity

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"
	"time"

	"researchllm/backend/internal/security"
	userdomain "researchllm/backend/internal/user/domain"
)

// Sentinel errors for the auth service; the handler maps them to HTTP statuses.
var (
	ErrEmailRequired          = errors.New("a valid email is required")
	ErrFullNameRequired       = errors.New("full name is required")
	ErrCompanyRequired        = errors.New("company is required")
	ErrPasswordRequired       = errors.New("password is required")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("incorrect email or password")
	ErrInvalidResetToken      = errors.New("invalid or expired reset token")
)

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	Upsert(ctx context.Context, u *userdomain.User) (*userdomain.User, error)
	UpdateProfile(ctx context.Context, id string, fullName, company *string) (*userdomain.User, error)
}

// LoginResult holds the outcome of Login: the issued token and the user it identifies.
type LoginResult struct {
	AccessToken string
	ExpiresAt   time.Time
	ExpiresIn   int64 // seconds
	User        *userdomain.User
}

// AuthService implements register, login, profile update, and the
// provider-delegated password/verification flows.
type AuthService struct {
	provider  Provider
	users     UserRepo
	codec     *security.TokenCodec
	accessTTL time.Duration
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(provider Provider, users UserRepo, codec *security.TokenCodec, accessTTL time.Duration) *AuthService {
	return &AuthService{
		provider:  provider,
		users:     users,
		codec:     codec,
		accessTTL: accessTTL,
	}
}

// Register creates the account with the managed auth provider and upserts the
// local profile row keyed by the provider-issued id. The upsert is idempotent:
// retrying a registration that half-completed converges on the same row
// instead of failing, which is also how a partially provisioned account
// (provider record without profile) gets repaired.
func (s *AuthService) Register(ctx context.Context, email, password, fullName, company string) (*userdomain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	fullName = strings.TrimSpace(fullName)
	company = strings.TrimSpace(company)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}
	if fullName == "" {
		return nil, ErrFullNameRequired
	}
	if company == "" {
		return nil, ErrCompanyRequired
	}

	pu, err := s.provider.SignUp(ctx, email, password, fullName, company)
	if err != nil {
		if errors.Is(err, ErrProviderDuplicate) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, err
	}

	u, err := s.users.Upsert(ctx, &userdomain.User{
		ID:       pu.ID,
		Email:    email,
		FullName: fullName,
		Company:  company,
		IsActive: true,
	})
	if err != nil {
		// The provider account exists but the profile write failed; the next
		// register or login attempt repairs it via the same upsert.
		log.Printf("identity: profile upsert after signup failed for %s: %v", pu.ID, err)
		return nil, err
	}
	return u, nil
}

// Login authenticates against the managed provider, ensures the profile row
// exists, and issues an access token for the user.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	pu, err := s.provider.PasswordGrant(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrProviderRejected) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	u, err := s.users.GetByID(ctx, pu.ID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		// Provider account without a profile row: repair from the provider's
		// user metadata.
		u, err = s.users.Upsert(ctx, &userdomain.User{
			ID:       pu.ID,
			Email:    pu.Email,
			FullName: pu.FullName,
			Company:  pu.Company,
			IsActive: true,
		})
		if err != nil {
			return nil, err
		}
	}
	if !u.IsActive {
		return nil, ErrInactive
	}

	token, expiresAt, err := s.codec.Issue(u.ID, s.accessTTL)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		ExpiresIn:   int64(s.accessTTL.Seconds()),
		User:        u,
	}, nil
}

// UpdateProfile changes full_name and/or company for the user. nil leaves a
// field unchanged; blank values are rejected the same way registration rejects them.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, fullName, company *string) (*userdomain.User, error) {
	if fullName != nil {
		trimmed := strings.TrimSpace(*fullName)
		if trimmed == "" {
			return nil, ErrFullNameRequired
		}
		fullName = &trimmed
	}
	if company != nil {
		trimmed := strings.TrimSpace(*company)
		if trimmed == "" {
			return nil, ErrCompanyRequired
		}
		company = &trimmed
	}
	u, err := s.users.UpdateProfile(ctx, userID, fullName, company)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUnauthenticated
	}
	return u, nil
}

// ForgotPassword asks the provider to send reset instructions. It always
// reports success: whether the account exists must not be observable.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return
	}
	if err := s.provider.SendPasswordReset(ctx, email); err != nil {
		log.Printf("identity: password reset email for %s failed: %v", email, err)
	}
}

// ResendVerification asks the provider to resend the signup verification email.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return err
	}
	return s.provider.ResendVerification(ctx, email)
}

// ResetPassword updates the password for the subject of the reset token. The
// token was minted by the provider; its signature is the provider's concern,
// so only the subject is extracted here and the admin API does the update.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if newPassword == "" {
		return ErrPasswordRequired
	}
	subject, err := security.SubjectUnverified(resetToken)
	if err != nil {
		return ErrInvalidResetToken
	}
	if err := s.provider.AdminUpdatePassword(ctx, subject, newPassword); err != nil {
		if errors.Is(err, ErrProviderRejected) {
			return ErrInvalidResetToken
		}
		return err
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return ErrEmailRequired
	}
	return nil
}
