package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"researchllm/backend/internal/security"
	userdomain "researchllm/backend/internal/user/domain"
)

// fakeUserStore implements UserStore for tests.
type fakeUserStore struct {
	users map[string]*userdomain.User
	err   error
	calls int
}

func (f *fakeUserStore) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	// Return a copy so tests mutating the stored user model a store refetch.
	cp := *u
	return &cp, nil
}

func activeUser(id string) *userdomain.User {
	return &userdomain.User{
		ID:       id,
		Email:    id + "@example.com",
		FullName: "Test User",
		Company:  "Acme",
		IsActive: true,
	}
}

func TestResolver_Resolve(t *testing.T) {
	codec, err := security.NewTestTokenCodec()
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	store := &fakeUserStore{users: map[string]*userdomain.User{"u1": activeUser("u1")}}
	r := NewResolver(codec, store)

	token, _, err := codec.Issue("u1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	u, err := r.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if u.ID != "u1" {
		t.Errorf("user ID = %q, want %q", u.ID, "u1")
	}
}

func TestResolver_InvalidToken(t *testing.T) {
	codec, err := security.NewTestTokenCodec()
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	store := &fakeUserStore{users: map[string]*userdomain.User{"u1": activeUser("u1")}}
	r := NewResolver(codec, store)

	if _, err := r.Resolve(context.Background(), "not-a-token"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Resolve invalid token: want ErrUnauthenticated, got %v", err)
	}
	if store.calls != 0 {
		t.Errorf("store lookups = %d, want 0 for invalid tokens", store.calls)
	}
}

func TestResolver_UnknownUserMatchesInvalidToken(t *testing.T) {
	codec, err := security.NewTestTokenCodec()
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	store := &fakeUserStore{users: map[string]*userdomain.User{}}
	r := NewResolver(codec, store)

	token, _, err := codec.Issue("ghost", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, unknownErr := r.Resolve(context.Background(), token)
	_, invalidErr := r.Resolve(context.Background(), "garbage")
	if !errors.Is(unknownErr, ErrUnauthenticated) {
		t.Errorf("unknown subject: want ErrUnauthenticated, got %v", unknownErr)
	}
	// A token for a deleted user must be indistinguishable from a bad token.
	if unknownErr != invalidErr {
		t.Errorf("unknown-user error %v differs from invalid-token error %v", unknownErr, invalidErr)
	}
}

func TestResolver_Inactive(t *testing.T) {
	codec, err := security.NewTestTokenCodec()
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	u := activeUser("u1")
	u.IsActive = false
	store := &fakeUserStore{users: map[string]*userdomain.User{"u1": u}}
	r := NewResolver(codec, store)

	token, _, err := codec.Issue("u1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := r.Resolve(context.Background(), token); !errors.Is(err, ErrInactive) {
		t.Errorf("Resolve inactive user: want ErrInactive, got %v", err)
	}
}

func TestResolver_NoCachingAcrossRequests(t *testing.T) {
	codec, err := security.NewTestTokenCodec()
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	store := &fakeUserStore{users: map[string]*userdomain.User{"u1": activeUser("u1")}}
	r := NewResolver(codec, store)

	token, _, err := codec.Issue("u1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := r.Resolve(context.Background(), token); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}

	// Deactivate between requests; the same token must now be rejected.
	store.users["u1"].IsActive = false
	if _, err := r.Resolve(context.Background(), token); !errors.Is(err, ErrInactive) {
		t.Errorf("Resolve after deactivation: want ErrInactive, got %v", err)
	}
	if store.calls != 2 {
		t.Errorf("store lookups = %d, want one per Resolve", store.calls)
	}
}

func TestResolver_StoreError(t *testing.T) {
	codec, err := security.NewTestTokenCodec()
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	storeErr := errors.New("connection refused")
	store := &fakeUserStore{err: storeErr}
	r := NewResolver(codec, store)

	token, _, err := codec.Issue("u1", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := r.Resolve(context.Background(), token); !errors.Is(err, storeErr) {
		t.Errorf("Resolve with store error: want the store error, got %v", err)
	}
}
