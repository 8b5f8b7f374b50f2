package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/unilost/lostfound/internal/auth"
	"github.com/unilost/lostfound/internal/model"
	"github.com/unilost/lostfound/internal/revocation"
	"github.com/unilost/lostfound/internal/store"
)

// AuthHandler handles account and session endpoints.
type AuthHandler struct {
	DB            *sql.DB
	JWTSecret     string
	Revoker       revocation.Revoker
	SecureCookies bool
}

type registerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// setSession issues a token for user and sets it as the session cookie.
func (h *AuthHandler) setSession(w http.ResponseWriter, user *model.User) error {
	token, claims, err := auth.GenerateToken(h.JWTSecret, user)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt.Time,
		MaxAge:   int(auth.TokenExpiry / time.Second),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (h *AuthHandler) clearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.Name == "" || req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "all fields are required")
		return
	}
	if req.Password != req.ConfirmPassword {
		jsonError(w, http.StatusBadRequest, "passwords do not match")
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !model.ValidEmail(req.Email) {
		jsonError(w, http.StatusBadRequest, "please enter a valid email address")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		serverError(w, r, "registration failed", err)
		return
	}

	user, err := store.CreateUser(r.Context(), h.DB, req.Name, req.Email, hash, model.RoleUser)
	if errors.Is(err, store.ErrDuplicate) {
		jsonError(w, http.StatusBadRequest, "email already registered")
		return
	}
	if err != nil {
		serverError(w, r, "registration failed", err)
		return
	}

	if err := h.setSession(w, user); err != nil {
		serverError(w, r, "registration failed", err)
		return
	}

	slog.Info("user registered", "user_id", user.ID)
	jsonResponse(w, http.StatusCreated, user)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "email and password required")
		return
	}

	user, err := store.GetUserByEmail(r.Context(), h.DB, strings.TrimSpace(req.Email))
	if err != nil {
		serverError(w, r, "login failed", err)
		return
	}
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	ok, err := auth.CheckPassword(user.PasswordHash, req.Password)
	if err != nil {
		serverError(w, r, "login failed", err)
		return
	}
	if !ok {
		slog.Warn("login failed", "email", user.Email, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := h.setSession(w, user); err != nil {
		serverError(w, r, "login failed", err)
		return
	}

	slog.Info("user logged in", "user_id", user.ID, "role", user.Role)
	jsonResponse(w, http.StatusOK, user)
}

// Logout handles POST /api/auth/logout. The cookie is always cleared; a
// valid token is also revoked until it would have expired.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if tokenStr := tokenFromRequest(r); tokenStr != "" {
		if claims, err := auth.ValidateToken(h.JWTSecret, tokenStr); err == nil {
			if err := h.Revoker.Revoke(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
				serverError(w, r, "logout failed", err)
				return
			}
			slog.Info("user logged out", "user_id", claims.UserID)
		}
	}

	h.clearSession(w)
	jsonResponse(w, http.StatusOK, map[string]bool{"success": true})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, GetUser(r.Context()))
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		jsonError(w, http.StatusBadRequest, "current and new password required")
		return
	}
	if err := model.ValidatePassword(req.NewPassword); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok, err := auth.CheckPassword(user.PasswordHash, req.CurrentPassword)
	if err != nil {
		serverError(w, r, "failed to update password", err)
		return
	}
	if !ok {
		jsonError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		serverError(w, r, "failed to update password", err)
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, user.ID, hash); err != nil {
		serverError(w, r, "failed to update password", err)
		return
	}

	slog.Info("user changed own password", "user_id", user.ID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}
