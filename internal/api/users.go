package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/unilost/lostfound/internal/model"
	"github.com/unilost/lostfound/internal/store"
)

// UsersHandler handles account management (super-admin only).
type UsersHandler struct {
	DB *sql.DB
}

type setRoleRequest struct {
	Role model.Role `json:"role"`
}

// List handles GET /api/super-admin/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), h.DB)
	if err != nil {
		serverError(w, r, "failed to list users", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(users))
}

// SetRole handles PUT /api/super-admin/users/{id}/role.
func (h *UsersHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	caller := GetUser(r.Context())

	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req setRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Role.Valid() {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	if id == caller.ID {
		jsonError(w, http.StatusForbidden, "cannot change your own role")
		return
	}

	found, err := store.UpdateUserRole(r.Context(), h.DB, id, req.Role)
	if err != nil {
		serverError(w, r, "failed to update role", err)
		return
	}
	if !found {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	slog.Info("user role changed", "user_id", id, "role", req.Role, "by", caller.ID)
	jsonResponse(w, http.StatusOK, map[string]bool{"success": true})
}
