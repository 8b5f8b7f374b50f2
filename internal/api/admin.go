package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/unilost/lostfound/internal/imagestore"
	"github.com/unilost/lostfound/internal/model"
	"github.com/unilost/lostfound/internal/store"
)

// AdminHandler handles moderation endpoints.
type AdminHandler struct {
	DB     *sql.DB
	Images imagestore.Store
}

type itemActionRequest struct {
	ItemID int64            `json:"item_id"`
	Action model.ItemAction `json:"action"`
}

// Stats handles GET /api/admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := store.GetModerationStats(r.Context(), h.DB)
	if err != nil {
		serverError(w, r, "failed to fetch stats", err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

// Pending handles GET /api/admin/pending-items.
func (h *AdminHandler) Pending(w http.ResponseWriter, r *http.Request) {
	h.listByStatus(w, r, model.ItemStatusPending)
}

// Approved handles GET /api/admin/approved-items.
func (h *AdminHandler) Approved(w http.ResponseWriter, r *http.Request) {
	h.listByStatus(w, r, model.ItemStatusApproved)
}

func (h *AdminHandler) listByStatus(w http.ResponseWriter, r *http.Request, status model.ItemStatus) {
	items, err := store.ListItemsByStatus(r.Context(), h.DB, status)
	if err != nil {
		serverError(w, r, "failed to fetch items", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(items))
}

// ItemAction handles POST /api/admin/item-action.
func (h *AdminHandler) ItemAction(w http.ResponseWriter, r *http.Request) {
	var req itemActionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ItemID <= 0 {
		jsonError(w, http.StatusBadRequest, "item_id required")
		return
	}

	before, err := store.ApplyItemAction(r.Context(), h.DB, req.ItemID, req.Action)
	switch {
	case errors.Is(err, model.ErrUnknownAction):
		jsonError(w, http.StatusBadRequest, "invalid action")
		return
	case errors.Is(err, model.ErrInvalidTransition):
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		serverError(w, r, "failed to update item", err)
		return
	case before == nil:
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	if req.Action == model.ActionReject {
		removeImage(r.Context(), h.DB, h.Images, before.ImageKey)
	}

	slog.Info("item moderated",
		"item_id", req.ItemID,
		"action", req.Action,
		"moderator_id", GetUser(r.Context()).ID,
	)
	jsonResponse(w, http.StatusOK, map[string]bool{"success": true})
}
