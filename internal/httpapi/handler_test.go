package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"researchllm/backend/internal/identity"
	"researchllm/backend/internal/llm"
	"researchllm/backend/internal/security"
	"researchllm/backend/internal/usage"
	usagedomain "researchllm/backend/internal/usage/domain"
	userdomain "researchllm/backend/internal/user/domain"
)

// fakeProvider implements identity.Provider with a single known account.
type fakeProvider struct {
	id       string
	email    string
	password string
}

func (f *fakeProvider) SignUp(ctx context.Context, email, password, fullName, company string) (*identity.ProviderUser, error) {
	if email == f.email {
		return nil, identity.ErrProviderDuplicate
	}
	return &identity.ProviderUser{ID: "new-user", Email: email, FullName: fullName, Company: company}, nil
}

func (f *fakeProvider) PasswordGrant(ctx context.Context, email, password string) (*identity.ProviderUser, error) {
	if email != f.email || password != f.password {
		return nil, identity.ErrProviderRejected
	}
	return &identity.ProviderUser{ID: f.id, Email: f.email}, nil
}

func (f *fakeProvider) SendPasswordReset(ctx context.Context, email string) error    { return nil }
func (f *fakeProvider) ResendVerification(ctx context.Context, email string) error   { return nil }
func (f *fakeProvider) AdminUpdatePassword(ctx context.Context, id, pw string) error { return nil }

// fakeUsers implements identity.UserRepo and identity.UserStore.
type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*userdomain.User
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Upsert(ctx context.Context, u *userdomain.User) (*userdomain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	f.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeUsers) UpdateProfile(ctx context.Context, id string, fullName, company *string) (*userdomain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	if fullName != nil {
		u.FullName = *fullName
	}
	if company != nil {
		u.Company = *company
	}
	cp := *u
	return &cp, nil
}

// fakeUsageStore implements usage.Store and usage.ListStore.
type fakeUsageStore struct {
	mu        sync.Mutex
	records   []*usagedomain.Record
	insertErr error
	listErr   error
}

func (f *fakeUsageStore) Insert(ctx context.Context, rec *usagedomain.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeUsageStore) ListByUserSince(ctx context.Context, userID string, since time.Time) ([]*usagedomain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*usagedomain.Record
	for _, rec := range f.records {
		if rec.UserID == userID && !rec.CreatedAt.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeUsageStore) ListAll(ctx context.Context) ([]*usagedomain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.records, nil
}

type testEnv struct {
	handler *Handler
	routes  http.Handler
	users   *fakeUsers
	store   *fakeUsageStore
	codec   *security.TokenCodec
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	codec, err := security.NewTestTokenCodec()
	if err != nil {
		t.Fatalf("NewTestTokenCodec: %v", err)
	}
	provider := &fakeProvider{id: "u1", email: "a@x.com", password: "secret"}
	users := &fakeUsers{users: map[string]*userdomain.User{
		"u1": {
			ID: "u1", Email: "a@x.com", FullName: "A", Company: "C",
			IsActive: true, CreatedAt: time.Now().UTC(),
		},
	}}
	store := &fakeUsageStore{}

	auth := identity.NewAuthService(provider, users, codec, 30*time.Minute)
	resolver := identity.NewResolver(codec, users)
	registry := llm.NewRegistry()
	dispatcher := llm.NewDispatcher(usage.NewRecorder(store))
	stats := usage.NewAggregator(store)
	h := NewHandler(auth, resolver, registry, dispatcher, stats, nil)
	return &testEnv{handler: h, routes: h.Routes(), users: users, store: store, codec: codec}
}

func (e *testEnv) token(t *testing.T, subject string) string {
	t.Helper()
	token, _, err := e.codec.Issue(subject, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func doJSON(t *testing.T, routes http.Handler, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	routes.ServeHTTP(resp, req)
	return resp
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", resp.Body.String(), err)
	}
	return out
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	resp := doJSON(t, env.routes, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "b@x.com", "password": "pw", "full_name": "B", "company": "C",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", resp.Code, resp.Body.String())
	}
	body := decodeBody(t, resp)
	if body["success"] != true || body["message"] != "User registered successfully" {
		t.Errorf("body = %v", body)
	}
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name    string
		payload map[string]string
	}{
		{"blank company", map[string]string{"email": "b@x.com", "password": "pw", "full_name": "B", "company": "  "}},
		{"blank full name", map[string]string{"email": "b@x.com", "password": "pw", "full_name": "", "company": "C"}},
		{"bad email", map[string]string{"email": "nope", "password": "pw", "full_name": "B", "company": "C"}},
		{"no password", map[string]string{"email": "b@x.com", "full_name": "B", "company": "C"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, env.routes, http.MethodPost, "/auth/register", "", tc.payload)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", resp.Code, resp.Body.String())
			}
			if body := decodeBody(t, resp); body["detail"] == "" {
				t.Errorf("missing detail: %v", body)
			}
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	resp := doJSON(t, env.routes, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "a@x.com", "password": "pw", "full_name": "A", "company": "C",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
	if body := decodeBody(t, resp); body["detail"] != "email already registered" {
		t.Errorf("detail = %v", body["detail"])
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	form := url.Values{"username": {"a@x.com"}, "password": {"secret"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	env.routes.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.Code, resp.Body.String())
	}
	body := decodeBody(t, resp)
	if body["token_type"] != "bearer" {
		t.Errorf("token_type = %v, want bearer", body["token_type"])
	}
	if body["expires_in"] != float64(1800) {
		t.Errorf("expires_in = %v, want 1800", body["expires_in"])
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatal("missing access_token")
	}
	// The issued token must authenticate follow-up requests.
	me := doJSON(t, env.routes, http.MethodGet, "/auth/me", token, nil)
	if me.Code != http.StatusOK {
		t.Fatalf("GET /auth/me with fresh token: status = %d", me.Code)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	env := newTestEnv(t)
	form := url.Values{"username": {"a@x.com"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	env.routes.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.Code)
	}
	if body := decodeBody(t, resp); body["detail"] != "Incorrect email or password" {
		t.Errorf("detail = %v", body["detail"])
	}
	if resp.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Error("missing WWW-Authenticate header")
	}
}

func TestMe_Unauthorized(t *testing.T) {
	env := newTestEnv(t)
	for _, token := range []string{"", "garbage"} {
		resp := doJSON(t, env.routes, http.MethodGet, "/auth/me", token, nil)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: status = %d, want 401", token, resp.Code)
		}
		if body := decodeBody(t, resp); body["detail"] != "Could not validate credentials" {
			t.Errorf("token %q: detail = %v", token, body["detail"])
		}
	}
}

func TestMe_InactiveUser(t *testing.T) {
	env := newTestEnv(t)
	env.users.users["u1"].IsActive = false
	resp := doJSON(t, env.routes, http.MethodGet, "/auth/me", env.token(t, "u1"), nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
	if body := decodeBody(t, resp); body["detail"] != "Inactive user" {
		t.Errorf("detail = %v", body["detail"])
	}
}

func TestUpdateMe(t *testing.T) {
	env := newTestEnv(t)
	resp := doJSON(t, env.routes, http.MethodPut, "/auth/me", env.token(t, "u1"), map[string]string{
		"company": "NewCo",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.Code, resp.Body.String())
	}
	body := decodeBody(t, resp)
	if body["message"] != "User updated successfully" {
		t.Errorf("message = %v", body["message"])
	}
	if env.users.users["u1"].Company != "NewCo" {
		t.Errorf("company = %q, want NewCo", env.users.users["u1"].Company)
	}
	if env.users.users["u1"].FullName != "A" {
		t.Errorf("full name changed unexpectedly: %q", env.users.users["u1"].FullName)
	}
}

func TestUpdateMe_BlankRejected(t *testing.T) {
	env := newTestEnv(t)
	resp := doJSON(t, env.routes, http.MethodPut, "/auth/me", env.token(t, "u1"), map[string]string{
		"full_name": "   ",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
}

func TestForgotPassword_AlwaysSucceeds(t *testing.T) {
	env := newTestEnv(t)
	for _, email := range []string{"a@x.com", "nobody@x.com"} {
		resp := doJSON(t, env.routes, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": email})
		if resp.Code != http.StatusOK {
			t.Fatalf("email %q: status = %d, want 200", email, resp.Code)
		}
		body := decodeBody(t, resp)
		if body["message"] != "If an account with that email exists, we've sent password reset instructions." {
			t.Errorf("message = %v", body["message"])
		}
	}
}

func TestQuery(t *testing.T) {
	env := newTestEnv(t)
	resp := doJSON(t, env.routes, http.MethodPost, "/llm/query", env.token(t, "u1"), map[string]interface{}{
		"prompt": "hello world",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.Code, resp.Body.String())
	}
	body := decodeBody(t, resp)
	if body["tokens_used"] != float64(4) {
		t.Errorf("tokens_used = %v, want 4", body["tokens_used"])
	}
	if body["cost"] != 0.0004 {
		t.Errorf("cost = %v, want 0.0004", body["cost"])
	}
	if body["provider"] != "mock" {
		t.Errorf("provider = %v, want mock", body["provider"])
	}
	if body["model_used"] != "gpt-3.5-turbo" {
		t.Errorf("model_used = %v, want default model", body["model_used"])
	}
}

func TestQuery_UsageFailureDoesNotChangeResponse(t *testing.T) {
	env := newTestEnv(t)
	env.store.insertErr = errors.New("store down")

	resp := doJSON(t, env.routes, http.MethodPost, "/llm/query", env.token(t, "u1"), map[string]interface{}{
		"prompt": "hello world",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite accounting failure", resp.Code)
	}
	body := decodeBody(t, resp)
	if body["success"] != true || body["tokens_used"] != float64(4) {
		t.Errorf("body changed under accounting failure: %v", body)
	}
}

func TestQuery_EmptyPrompt(t *testing.T) {
	env := newTestEnv(t)
	resp := doJSON(t, env.routes, http.MethodPost, "/llm/query", env.token(t, "u1"), map[string]interface{}{
		"prompt": "  ",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
}

func TestModels_DefaultCatalog(t *testing.T) {
	env := newTestEnv(t)
	resp := doJSON(t, env.routes, http.MethodGet, "/llm/models", env.token(t, "u1"), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	var models []string
	if err := json.Unmarshal(resp.Body.Bytes(), &models); err != nil {
		t.Fatalf("decode models: %v", err)
	}
	want := []string{"gpt-3.5-turbo", "gpt-4", "claude-2"}
	if len(models) != len(want) {
		t.Fatalf("models = %v, want %v", models, want)
	}
	for i := range want {
		if models[i] != want[i] {
			t.Errorf("models[%d] = %q, want %q", i, models[i], want[i])
		}
	}
}

func TestProviders_RegisterAndList(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "u1")
	resp := doJSON(t, env.routes, http.MethodPost, "/llm/providers", token, map[string]interface{}{
		"name": "openai", "api_key": "sk-1", "models": []string{"gpt-4"}, "is_active": true, "priority": 1,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("register provider: status = %d: %s", resp.Code, resp.Body.String())
	}

	list := doJSON(t, env.routes, http.MethodGet, "/llm/providers", token, nil)
	var providers []map[string]interface{}
	if err := json.Unmarshal(list.Body.Bytes(), &providers); err != nil {
		t.Fatalf("decode providers: %v", err)
	}
	if len(providers) != 1 || providers[0]["name"] != "openai" {
		t.Errorf("providers = %v", providers)
	}
}

func TestProviders_MissingName(t *testing.T) {
	env := newTestEnv(t)
	resp := doJSON(t, env.routes, http.MethodPost, "/llm/providers", env.token(t, "u1"), map[string]interface{}{
		"api_key": "sk-1",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
}

func TestMyUsage(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	env.store.records = []*usagedomain.Record{
		{UserID: "u1", ModelUsed: "gpt-4", TokensUsed: 4, Cost: 0.0004, CreatedAt: now},
		{UserID: "u1", ModelUsed: "gpt-4", TokensUsed: 6, Cost: 0.0006, CreatedAt: now},
		{UserID: "u2", ModelUsed: "claude-2", TokensUsed: 2, Cost: 0.0002, CreatedAt: now},
	}

	resp := doJSON(t, env.routes, http.MethodGet, "/llm/usage/me?days=7", env.token(t, "u1"), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	body := decodeBody(t, resp)
	data, _ := body["data"].(map[string]interface{})
	if data["total_queries"] != float64(2) {
		t.Errorf("total_queries = %v, want 2", data["total_queries"])
	}
	if data["most_used_model"] != "gpt-4" {
		t.Errorf("most_used_model = %v", data["most_used_model"])
	}
	if data["period_days"] != float64(7) {
		t.Errorf("period_days = %v, want 7", data["period_days"])
	}
}

func TestMyUsage_StoreFailureReturnsZeros(t *testing.T) {
	env := newTestEnv(t)
	env.store.listErr = errors.New("store down")
	resp := doJSON(t, env.routes, http.MethodGet, "/llm/usage/me", env.token(t, "u1"), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 on degraded stats", resp.Code)
	}
	body := decodeBody(t, resp)
	data, _ := body["data"].(map[string]interface{})
	if data["total_queries"] != float64(0) || data["most_used_model"] != "None" {
		t.Errorf("data = %v, want zero stats", data)
	}
}

func TestGlobalUsage(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	env.store.records = []*usagedomain.Record{
		{UserID: "u1", ModelUsed: "gpt-4", TokensUsed: 4, Cost: 0.0004, CreatedAt: now},
		{UserID: "u2", ModelUsed: "gpt-4", TokensUsed: 4, Cost: 0.0004, CreatedAt: now},
	}
	resp := doJSON(t, env.routes, http.MethodGet, "/llm/usage", env.token(t, "u1"), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	body := decodeBody(t, resp)
	data, _ := body["data"].(map[string]interface{})
	if data["total_users"] != float64(2) {
		t.Errorf("total_users = %v, want 2", data["total_users"])
	}
}

func TestHealthEndpointsArePublic(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/health", "/auth/health", "/llm/health"} {
		resp := doJSON(t, env.routes, http.MethodGet, path, "", nil)
		if resp.Code != http.StatusOK {
			t.Errorf("GET %s: status = %d, want 200", path, resp.Code)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	resp := doJSON(t, env.routes, http.MethodDelete, "/auth/register", "", nil)
	if resp.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.Code)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	env := newTestEnv(t)
	wrapped := CORSMiddleware([]string{"*"}, env.routes)
	req := httptest.NewRequest(http.MethodOptions, "/llm/query", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp := httptest.NewRecorder()
	wrapped.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", resp.Code)
	}
	if resp.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", resp.Header().Get("Access-Control-Allow-Origin"))
	}
}
