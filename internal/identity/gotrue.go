package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// GoTrueClient talks to a GoTrue-compatible auth API (e.g. a Supabase project's
// /auth/v1 endpoint). The anon key authorizes user-scoped calls; the service
// key authorizes admin calls and falls back to the anon key when empty.
type GoTrueClient struct {
	BaseURL    string
	AnonKey    string
	ServiceKey string
	HTTPClient *http.Client
}

// NewGoTrueClient returns a client for the auth API at baseURL.
func NewGoTrueClient(baseURL, anonKey, serviceKey string) *GoTrueClient {
	if serviceKey == "" {
		serviceKey = anonKey
	}
	return &GoTrueClient{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		AnonKey:    anonKey,
		ServiceKey: serviceKey,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// gotrueUser is the subset of the provider's user object we read.
type gotrueUser struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	UserMetadata map[string]string `json:"user_metadata"`
}

// gotrueSession is the password-grant response shape.
type gotrueSession struct {
	AccessToken string     `json:"access_token"`
	User        gotrueUser `json:"user"`
}

// SignUp creates the account with full_name and company as user metadata.
func (c *GoTrueClient) SignUp(ctx context.Context, email, password, fullName, company string) (*ProviderUser, error) {
	body := map[string]interface{}{
		"email":    email,
		"password": password,
		"data": map[string]string{
			"full_name": fullName,
			"company":   company,
		},
	}
	var out struct {
		gotrueUser
		User *gotrueUser `json:"user"`
	}
	status, err := c.do(ctx, http.MethodPost, "/signup", c.AnonKey, body, &out)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusUnprocessableEntity || status == http.StatusConflict:
		return nil, ErrProviderDuplicate
	case status < 200 || status >= 300:
		return nil, fmt.Errorf("auth provider: signup returned status %d", status)
	}
	// GoTrue returns the user either at the top level or nested under "user"
	// depending on whether email confirmation is required.
	u := out.gotrueUser
	if u.ID == "" && out.User != nil {
		u = *out.User
	}
	if u.ID == "" {
		return nil, ErrProviderRejected
	}
	return providerUserFrom(u), nil
}

// PasswordGrant exchanges email/password for a provider session and returns the identity.
func (c *GoTrueClient) PasswordGrant(ctx context.Context, email, password string) (*ProviderUser, error) {
	body := map[string]string{"email": email, "password": password}
	var out gotrueSession
	status, err := c.do(ctx, http.MethodPost, "/token?grant_type=password", c.AnonKey, body, &out)
	if err != nil {
		return nil, err
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, ErrProviderRejected
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("auth provider: password grant returned status %d", status)
	}
	if out.User.ID == "" {
		return nil, ErrProviderRejected
	}
	return providerUserFrom(out.User), nil
}

// SendPasswordReset asks the provider to email reset instructions.
func (c *GoTrueClient) SendPasswordReset(ctx context.Context, email string) error {
	status, err := c.do(ctx, http.MethodPost, "/recover", c.AnonKey, map[string]string{"email": email}, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("auth provider: recover returned status %d", status)
	}
	return nil
}

// ResendVerification asks the provider to resend the signup verification email.
func (c *GoTrueClient) ResendVerification(ctx context.Context, email string) error {
	body := map[string]string{"type": "signup", "email": email}
	status, err := c.do(ctx, http.MethodPost, "/resend", c.AnonKey, body, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("auth provider: resend returned status %d", status)
	}
	return nil
}

// AdminUpdatePassword sets a new password for the user via the admin API.
func (c *GoTrueClient) AdminUpdatePassword(ctx context.Context, userID, newPassword string) error {
	body := map[string]string{"password": newPassword}
	status, err := c.do(ctx, http.MethodPut, "/admin/users/"+userID, c.ServiceKey, body, nil)
	if err != nil {
		return err
	}
	if status == http.StatusBadRequest || status == http.StatusNotFound {
		return ErrProviderRejected
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("auth provider: admin password update returned status %d", status)
	}
	return nil
}

// do sends one JSON request and decodes the response into out (when non-nil and
// the body is JSON). Returns the status code; transport failures return an error.
func (c *GoTrueClient) do(ctx context.Context, method, path, key string, body, out interface{}) (int, error) {
	if c.BaseURL == "" {
		return 0, fmt.Errorf("auth provider: base URL not configured")
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", key)
	req.Header.Set("Authorization", "Bearer "+key)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("auth provider: decoding response: %w", err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

func providerUserFrom(u gotrueUser) *ProviderUser {
	return &ProviderUser{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.UserMetadata["full_name"],
		Company:  u.UserMetadata["company"],
	}
}
