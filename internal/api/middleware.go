package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/unilost/lostfound/internal/auth"
	"github.com/unilost/lostfound/internal/model"
	"github.com/unilost/lostfound/internal/revocation"
	"github.com/unilost/lostfound/internal/store"
)

type contextKey string

const userKey contextKey = "user"

// CookieName is the session cookie set on login and register.
const CookieName = "auth-token"

// Authenticator resolves the caller from the session cookie or a bearer
// token. The user row is re-read on every request so role changes and
// deleted accounts take effect at once.
type Authenticator struct {
	DB      *sql.DB
	Secret  string
	Revoker revocation.Revoker
}

// tokenFromRequest prefers the cookie and falls back to the Authorization header.
func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// identify returns the caller, or nil if the request carries no usable
// credential.
func (a *Authenticator) identify(r *http.Request) (*model.User, error) {
	tokenStr := tokenFromRequest(r)
	if tokenStr == "" {
		return nil, nil
	}

	claims, err := auth.ValidateToken(a.Secret, tokenStr)
	if err != nil {
		return nil, nil
	}

	revoked, err := a.Revoker.IsRevoked(r.Context(), claims.ID)
	if err != nil || revoked {
		return nil, err
	}

	return store.GetUser(r.Context(), a.DB, claims.UserID)
}

// Require rejects requests without a valid session with 401.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.identify(r)
		if err != nil {
			serverError(w, r, "failed to authenticate", err)
			return
		}
		if user == nil {
			jsonError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

// RequirePermission returns middleware that checks the caller's role
// against policy. It must run after Require.
func RequirePermission(policy model.Policy, perm model.Permission, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			if user == nil {
				jsonError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !policy.Allows(user.Role, perm) {
				jsonError(w, http.StatusForbidden, message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUser retrieves the authenticated user from the context.
func GetUser(ctx context.Context) *model.User {
	user, _ := ctx.Value(userKey).(*model.User)
	return user
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequest logs HTTP requests with method, path, status, and duration.
func logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("request",
			"method", r.Method,
			"uri", r.URL.RequestURI(),
			"status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

// recoverPanic turns a panicking handler into a 500.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				serverError(w, r, "internal error", fmt.Errorf("panic: %v", err))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("Referrer-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}
