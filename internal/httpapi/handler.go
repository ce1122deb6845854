// Package httpapi exposes the auth and LLM endpoints over net/http.
package httpapi

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"researchllm/backend/internal/identity"
	"researchllm/backend/internal/llm"
	"researchllm/backend/internal/usage"
	userdomain "researchllm/backend/internal/user/domain"
)

type Handler struct {
	auth       *identity.AuthService
	resolver   *identity.Resolver
	registry   *llm.Registry
	dispatcher *llm.Dispatcher
	stats      *usage.Aggregator
	db         *sql.DB
}

// NewHandler wires the HTTP surface. db may be nil; /health then skips the ping.
func NewHandler(auth *identity.AuthService, resolver *identity.Resolver, registry *llm.Registry, dispatcher *llm.Dispatcher, stats *usage.Aggregator, db *sql.DB) *Handler {
	return &Handler{
		auth:       auth,
		resolver:   resolver,
		registry:   registry,
		dispatcher: dispatcher,
		stats:      stats,
		db:         db,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleRoot)
	mux.HandleFunc("/health", h.handleHealth)

	mux.HandleFunc("/auth/register", h.handleRegister)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/me", h.requireUser(h.handleMe))
	mux.HandleFunc("/auth/logout", h.requireUser(h.handleLogout))
	mux.HandleFunc("/auth/forgot-password", h.handleForgotPassword)
	mux.HandleFunc("/auth/resend-verification", h.handleResendVerification)
	mux.HandleFunc("/auth/reset-password", h.handleResetPassword)
	mux.HandleFunc("/auth/verify-email", h.handleVerifyEmail)
	mux.HandleFunc("/auth/health", h.handleAuthHealth)

	mux.HandleFunc("/llm/query", h.requireUser(h.handleQuery))
	mux.HandleFunc("/llm/models", h.requireUser(h.handleModels))
	mux.HandleFunc("/llm/providers", h.requireUser(h.handleProviders))
	mux.HandleFunc("/llm/usage/me", h.requireUser(h.handleMyUsage))
	mux.HandleFunc("/llm/usage", h.requireUser(h.handleGlobalUsage))
	mux.HandleFunc("/llm/health", h.handleLLMHealth)
	return mux
}

// baseResponse is the success envelope most endpoints return.
type baseResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// errorResponse is the error body for every failed request.
type errorResponse struct {
	Detail string `json:"detail"`
}

type userResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Company   string     `json:"company"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func userToResponse(u *userdomain.User) userResponse {
	out := userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Company:   u.Company,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
	if !u.UpdatedAt.IsZero() {
		t := u.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to ResearchLLM Pro",
		"version": "1.0.0",
		"status":  "operational",
	})
}

// handleHealth pings the database but reports degraded instead of failing:
// the process being up is worth knowing even when the store is not.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status := "healthy"
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
