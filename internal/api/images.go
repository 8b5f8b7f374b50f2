package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/unilost/lostfound/internal/imagestore"
	"github.com/unilost/lostfound/internal/store"
)

// ImagesHandler accepts photo uploads and serves database-held images.
type ImagesHandler struct {
	DB     *sql.DB
	Images imagestore.Store
}

// Upload handles POST /api/uploads/images. The returned reference is passed
// back when the item is created.
func (h *ImagesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseMultipartForm(maxFormBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "no image uploaded")
		return
	}
	defer file.Close()

	img, err := storeUpload(r.Context(), h.DB, h.Images, GetUser(r.Context()).ID, file)
	if err != nil {
		writeRequestError(w, r, "failed to upload image", err)
		return
	}

	jsonResponse(w, http.StatusOK, imagestore.Ref{URL: img.URL, Key: img.Key})
}

// Serve handles GET /api/images/{key}.
func (h *ImagesHandler) Serve(w http.ResponseWriter, r *http.Request) {
	data, mime, err := store.GetImage(r.Context(), h.DB, r.PathValue("key"))
	if err != nil {
		serverError(w, r, "failed to fetch image", err)
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "image not found")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	// Keys are never reused, so the bytes behind one never change.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Write(data)
}
