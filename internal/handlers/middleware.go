package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"rollcall/internal/identity"
	"rollcall/internal/metrics"
	"rollcall/internal/models"
	"rollcall/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const UserContextKey ContextKey = "user"

// Middleware holds dependencies for middleware functions
type Middleware struct {
	verifier *identity.Verifier
	access   *service.AccessService
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(verifier *identity.Verifier, access *service.AccessService) *Middleware {
	return &Middleware{
		verifier: verifier,
		access:   access,
	}
}

// RequireAuth verifies the bearer token and loads the internal user
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, KindUnauthorized, ErrUnauthorized, "", nil)
			return
		}

		externalID, err := m.verifier.Verify(token)
		if err != nil {
			slog.Debug("Rejected identity token", "error", err)
			respondWithError(w, http.StatusUnauthorized, KindUnauthorized, ErrUnauthorized, "", nil)
			return
		}

		user, err := m.access.ResolveUser(r.Context(), externalID)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

// RequireGroupMember admits members of the group named by the path value param.
// It must run inside RequireAuth.
func (m *Middleware) RequireGroupMember(param string, next http.HandlerFunc) http.HandlerFunc {
	return m.check(param, m.access.RequireGroupMember, next)
}

// RequireGroupAdmin admits admins of the group named by the path value param
func (m *Middleware) RequireGroupAdmin(param string, next http.HandlerFunc) http.HandlerFunc {
	return m.check(param, m.access.RequireGroupAdmin, next)
}

// RequireActivityMember admits members of the group owning the activity
func (m *Middleware) RequireActivityMember(param string, next http.HandlerFunc) http.HandlerFunc {
	return m.check(param, m.access.RequireActivityMember, next)
}

// RequireActivityAdmin admits admins of the group owning the activity
func (m *Middleware) RequireActivityAdmin(param string, next http.HandlerFunc) http.HandlerFunc {
	return m.check(param, m.access.RequireActivityAdmin, next)
}

func (m *Middleware) check(param string, allow func(ctx context.Context, userID, id string) error, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if user == nil {
			respondWithError(w, http.StatusUnauthorized, KindUnauthorized, ErrUnauthorized, "", nil)
			return
		}
		if err := allow(r.Context(), user.ID, r.PathValue(param)); err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", identity.ErrMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", identity.ErrInvalidToken
	}
	return parts[1], nil
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// Logging middleware logs HTTP requests
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		switch {
		case rec.status >= 500:
			level = slog.LevelError
		case rec.status >= 400:
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// Instrument records request counts and latency by route pattern. A nil m
// returns next unchanged.
func Instrument(m *metrics.Metrics, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		// The mux sets Pattern on the request it was handed.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(route, r.Method, rec.status, time.Since(start))
	})
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
