package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"researchllm/backend/internal/identity"
	userdomain "researchllm/backend/internal/user/domain"
)

type contextKey int

const userContextKey contextKey = iota

// requireUser resolves the bearer token to a user and stores it on the request
// context. Every unauthenticated cause gets the same 401 body; only a
// deactivated account is distinguished.
func (h *Handler) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			unauthenticated(w)
			return
		}
		u, err := h.resolver.Resolve(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, identity.ErrUnauthenticated):
				unauthenticated(w)
			case errors.Is(err, identity.ErrInactive):
				writeError(w, http.StatusBadRequest, "Inactive user")
			default:
				log.Printf("httpapi: resolving user: %v", err)
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userContextKey, u)))
	}
}

func unauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, "Could not validate credentials")
}

// userFrom returns the authenticated user placed on the context by requireUser.
func userFrom(ctx context.Context) *userdomain.User {
	u, _ := ctx.Value(userContextKey).(*userdomain.User)
	return u
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		writer := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(writer, r)
		duration := time.Since(start)
		log.Printf("request method=%s path=%s status=%d duration_ms=%d", r.Method, r.URL.Path, writer.status, duration.Milliseconds())
	})
}

// CORSMiddleware answers preflight requests and stamps the allowed origins.
func CORSMiddleware(origins []string, next http.Handler) http.Handler {
	allowAll := len(origins) == 0
	allowed := map[string]struct{}{}
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
