package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"researchllm/backend/internal/identity"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Company  string `json:"company"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        userResponse `json:"user"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	u, err := h.auth.Register(r.Context(), req.Email, req.Password, req.FullName, req.Company)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrEmailRequired),
			errors.Is(err, identity.ErrPasswordRequired),
			errors.Is(err, identity.ErrFullNameRequired),
			errors.Is(err, identity.ErrCompanyRequired),
			errors.Is(err, identity.ErrEmailAlreadyRegistered):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("httpapi: registration: %v", err)
			writeError(w, http.StatusInternalServerError, "Registration failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, baseResponse{
		Success: true,
		Message: "User registered successfully",
		Data: map[string]interface{}{
			"user": map[string]string{
				"id":        u.ID,
				"email":     u.Email,
				"full_name": u.FullName,
				"company":   u.Company,
			},
		},
	})
}

// handleLogin accepts the OAuth2 password form (username holds the email) and
// returns the token response directly, not the success envelope.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form payload")
		return
	}
	email := r.PostFormValue("username")
	password := r.PostFormValue("password")

	result, err := h.auth.Login(r.Context(), email, password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "Incorrect email or password")
		case errors.Is(err, identity.ErrInactive):
			writeError(w, http.StatusBadRequest, "Inactive user")
		default:
			log.Printf("httpapi: login: %v", err)
			writeError(w, http.StatusInternalServerError, "Login failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: result.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   result.ExpiresIn,
		User:        userToResponse(result.User),
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, userToResponse(userFrom(r.Context())))
	case http.MethodPut:
		h.handleUpdateMe(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName *string `json:"full_name"`
		Company  *string `json:"company"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	current := userFrom(r.Context())
	if req.FullName == nil && req.Company == nil {
		writeJSON(w, http.StatusOK, baseResponse{
			Success: true,
			Message: "No changes made",
			Data:    map[string]interface{}{"user": userToResponse(current)},
		})
		return
	}

	u, err := h.auth.UpdateProfile(r.Context(), current.ID, req.FullName, req.Company)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrFullNameRequired), errors.Is(err, identity.ErrCompanyRequired):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrUnauthenticated):
			unauthenticated(w)
		default:
			log.Printf("httpapi: profile update: %v", err)
			writeError(w, http.StatusInternalServerError, "User update failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, baseResponse{
		Success: true,
		Message: "User updated successfully",
		Data:    map[string]interface{}{"user": userToResponse(u)},
	})
}

// handleLogout is a stateless acknowledgment; the client discards the token.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, baseResponse{
		Success: true,
		Message: "Logged out successfully",
		Data:    map[string]interface{}{"user_id": userFrom(r.Context()).ID},
	})
}

// handleForgotPassword reports success no matter what: whether the account
// exists must not be observable from the response.
func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	h.auth.ForgotPassword(r.Context(), req.Email)
	writeJSON(w, http.StatusOK, baseResponse{
		Success: true,
		Message: "If an account with that email exists, we've sent password reset instructions.",
		Data:    map[string]interface{}{"email": req.Email},
	})
}

func (h *Handler) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.auth.ResendVerification(r.Context(), req.Email); err != nil {
		log.Printf("httpapi: resend verification: %v", err)
		writeError(w, http.StatusBadRequest, "Failed to resend verification email. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, baseResponse{
		Success: true,
		Message: "Verification email sent successfully!",
		Data:    map[string]interface{}{"email": req.Email},
	})
}

// handleResetPassword takes the provider-minted reset token from the
// Authorization header and the new password from the body.
func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Authorization header required")
		return
	}
	var req struct {
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.auth.ResetPassword(r.Context(), token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidResetToken):
			writeError(w, http.StatusBadRequest, "Invalid or expired reset token")
		case errors.Is(err, identity.ErrPasswordRequired):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("httpapi: password reset: %v", err)
			writeError(w, http.StatusBadRequest, "Failed to reset password. The link may be expired or invalid.")
		}
		return
	}
	writeJSON(w, http.StatusOK, baseResponse{
		Success: true,
		Message: "Password reset successfully! You can now sign in with your new password.",
	})
}

// handleVerifyEmail acknowledges the verification link; the auth provider has
// already processed the token by the time the browser lands here.
func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, baseResponse{
		Success: true,
		Message: "Email verified successfully! You can now sign in to your account.",
		Data:    map[string]interface{}{"verified": true},
	})
}

func (h *Handler) handleAuthHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, baseResponse{
		Success: true,
		Message: "Authentication service is healthy",
		Data: map[string]interface{}{
			"status":    "operational",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}
