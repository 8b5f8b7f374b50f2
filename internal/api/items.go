package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/unilost/lostfound/internal/imagestore"
	"github.com/unilost/lostfound/internal/imaging"
	"github.com/unilost/lostfound/internal/model"
	"github.com/unilost/lostfound/internal/store"
)

// RecentLimit is how many items the landing page shows.
const RecentLimit = 6

// ItemsHandler handles the public catalogue and owners' own items.
type ItemsHandler struct {
	DB                   *sql.DB
	Images               imagestore.Store
	OwnerCanMarkReturned bool
}

// itemRequest is the JSON body for creating or editing an item.
type itemRequest struct {
	model.ItemInput
	ImageURL    string `json:"image_url"`
	ImageKey    string `json:"image_public_id"`
	RemoveImage bool   `json:"remove_image"`

	// Older clients send the image under these names.
	ImagePath          string `json:"image_path"`
	CloudinaryPublicID string `json:"cloudinary_public_id"`
}

// imageKey returns the key of the referenced upload, under either name.
func (req *itemRequest) imageKey() string {
	if req.ImageKey != "" {
		return req.ImageKey
	}
	return req.CloudinaryPublicID
}

// imageURL returns the referenced image URL, under either name.
func (req *itemRequest) imageURL() string {
	if req.ImageURL != "" {
		return req.ImageURL
	}
	return req.ImagePath
}

// errImageRef rejects image references the caller did not upload.
var errImageRef = badRequest("invalid image reference")

// resolveImage turns the image reference in req into the stored upload. Only
// images the caller uploaded are accepted, and the URL always comes from the
// upload record.
func resolveImage(ctx context.Context, db *sql.DB, userID int64, req *itemRequest) (store.ItemImage, error) {
	key := req.imageKey()
	if key == "" {
		if req.imageURL() != "" {
			return store.ItemImage{}, errImageRef
		}
		return store.ItemImage{}, nil
	}

	up, err := store.GetUpload(ctx, db, key)
	if err != nil {
		return store.ItemImage{}, err
	}
	if up == nil || up.UserID != userID {
		return store.ItemImage{}, errImageRef
	}
	return store.ItemImage{URL: up.URL, Key: up.Key}, nil
}

// removeImage deletes a stored image once no item references it any more.
// Failures are logged and otherwise ignored.
func removeImage(ctx context.Context, db *sql.DB, images imagestore.Store, key string) {
	if key == "" || images == nil {
		return
	}
	inUse, err := store.ImageInUse(ctx, db, key)
	if err != nil {
		slog.Warn("failed to check image use", "key", key, "error", err)
		return
	}
	if inUse {
		return
	}
	if err := images.Delete(ctx, key); err != nil {
		slog.Warn("failed to remove image", "key", key, "error", err)
		return
	}
	if err := store.ForgetUpload(ctx, db, key); err != nil {
		slog.Warn("failed to forget upload", "key", key, "error", err)
	}
}

// writeRequestError answers a requestError with its status, and anything
// else as a server error.
func writeRequestError(w http.ResponseWriter, r *http.Request, message string, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		jsonError(w, reqErr.status, reqErr.message)
		return
	}
	serverError(w, r, message, err)
}

// Search handles GET /api/items/search.
func (h *ItemsHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := store.SearchItems(r.Context(), h.DB, model.ItemFilter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Type:     model.ItemType(q.Get("type")),
		Location: q.Get("location"),
	})
	if err != nil {
		serverError(w, r, "failed to search items", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(items))
}

// Recent handles GET /api/items/recent.
func (h *ItemsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	items, err := store.RecentItems(r.Context(), h.DB, RecentLimit)
	if err != nil {
		serverError(w, r, "failed to fetch recent items", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(items))
}

// Categories handles GET /api/items/categories.
func (h *ItemsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := store.ItemCategories(r.Context(), h.DB)
	if err != nil {
		serverError(w, r, "failed to fetch categories", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(cats))
}

// Locations handles GET /api/items/locations.
func (h *ItemsHandler) Locations(w http.ResponseWriter, r *http.Request) {
	locs, err := store.ItemLocations(r.Context(), h.DB)
	if err != nil {
		serverError(w, r, "failed to fetch locations", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(locs))
}

// Get handles GET /api/items/{id}. Only approved items are public.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetApprovedItem(r.Context(), h.DB, id)
	if err != nil {
		serverError(w, r, "failed to fetch item", err)
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	item.ImageKey = ""
	jsonResponse(w, http.StatusOK, item)
}

// Stats handles GET /api/stats.
func (h *ItemsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := store.GetPublicStats(r.Context(), h.DB)
	if err != nil {
		serverError(w, r, "failed to fetch stats", err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}

// Create handles POST /api/items. New items wait for moderation.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())

	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	img, err := resolveImage(r.Context(), h.DB, user.ID, &req)
	if err != nil {
		writeRequestError(w, r, "failed to create item", err)
		return
	}

	item, err := store.CreateItem(r.Context(), h.DB, user.ID, req.ItemInput, img)
	if err != nil {
		serverError(w, r, "failed to create item", err)
		return
	}

	slog.Info("item reported", "item_id", item.ID, "user_id", user.ID, "type", item.Type)
	jsonResponse(w, http.StatusCreated, map[string]any{"success": true, "id": item.ID})
}

// ListMine handles GET /api/user/items.
func (h *ItemsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListUserItems(r.Context(), h.DB, GetUser(r.Context()).ID)
	if err != nil {
		serverError(w, r, "failed to fetch items", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(items))
}

// GetMine handles GET /api/user/items/{id}.
func (h *ItemsHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetOwnedItem(r.Context(), h.DB, id, GetUser(r.Context()).ID)
	if err != nil {
		serverError(w, r, "failed to fetch item", err)
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// UpdateMine handles PUT /api/user/items/{id}. The body is either JSON or a
// multipart form with an optional "image" file and "remove_image" flag. Any
// edit sends the item back to moderation.
func (h *ItemsHandler) UpdateMine(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())

	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	existing, err := store.GetOwnedItem(r.Context(), h.DB, id, user.ID)
	if err != nil {
		serverError(w, r, "failed to update item", err)
		return
	}
	if existing == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	img := store.ItemImage{URL: existing.ImageURL, Key: existing.ImageKey}

	var (
		in    model.ItemInput
		fresh string // key uploaded by this request
	)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		form, uploaded, remove, err := h.parseItemForm(w, r, user.ID)
		if err != nil {
			writeRequestError(w, r, "failed to upload image", err)
			return
		}
		in = form
		switch {
		case uploaded != nil:
			img = *uploaded
			fresh = uploaded.Key
		case remove:
			img = store.ItemImage{}
		}
	} else {
		var req itemRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		in = req.ItemInput
		in.Normalize()
		if err := in.Validate(); err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		switch key := req.imageKey(); {
		case key != "" && key != existing.ImageKey:
			next, err := resolveImage(r.Context(), h.DB, user.ID, &req)
			if err != nil {
				writeRequestError(w, r, "failed to update item", err)
				return
			}
			img = next
		case key == "" && req.imageURL() != "" && req.imageURL() != existing.ImageURL:
			jsonError(w, http.StatusBadRequest, errImageRef.Error())
			return
		case req.RemoveImage:
			img = store.ItemImage{}
		}
	}

	updated, err := store.UpdateOwnedItem(r.Context(), h.DB, id, user.ID, in, img)
	if err != nil || !updated {
		removeImage(r.Context(), h.DB, h.Images, fresh)
		if err != nil {
			serverError(w, r, "failed to update item", err)
		} else {
			jsonError(w, http.StatusNotFound, "item not found")
		}
		return
	}

	if existing.ImageKey != img.Key {
		removeImage(r.Context(), h.DB, h.Images, existing.ImageKey)
	}

	item, err := store.GetOwnedItem(r.Context(), h.DB, id, user.ID)
	if err != nil {
		serverError(w, r, "failed to fetch item", err)
		return
	}
	slog.Info("item edited", "item_id", id, "user_id", user.ID)
	jsonResponse(w, http.StatusOK, item)
}

// requestError is a client error with the status it should be answered with.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(message string) error {
	return &requestError{status: http.StatusBadRequest, message: message}
}

// maxFormBytes bounds a multipart body: the image plus room for the fields.
const maxFormBytes = imaging.MaxUploadBytes + 1<<20

// parseItemForm reads a multipart item edit. Fields are validated before
// the image is stored, so a bad form never leaves an orphaned upload.
func (h *ItemsHandler) parseItemForm(w http.ResponseWriter, r *http.Request, userID int64) (model.ItemInput, *store.ItemImage, bool, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseMultipartForm(maxFormBytes); err != nil {
		return model.ItemInput{}, nil, false, badRequest("invalid form data")
	}

	in := model.ItemInput{
		Name:          r.FormValue("name"),
		Description:   r.FormValue("description"),
		Category:      r.FormValue("category"),
		Type:          model.ItemType(r.FormValue("type")),
		Location:      r.FormValue("location"),
		DateLostFound: r.FormValue("date_lost_found"),
		ContactInfo:   r.FormValue("contact_info"),
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return in, nil, false, badRequest(err.Error())
	}

	remove, _ := strconv.ParseBool(r.FormValue("remove_image"))

	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil, remove, nil
	}
	if err != nil {
		return in, nil, false, badRequest("invalid image")
	}
	defer file.Close()

	img, err := storeUpload(r.Context(), h.DB, h.Images, userID, file)
	if err != nil {
		return in, nil, false, err
	}
	return in, img, remove, nil
}

// storeUpload normalizes an uploaded photo, hands it to the image store and
// records userID as its uploader.
func storeUpload(ctx context.Context, db *sql.DB, images imagestore.Store, userID int64, file io.Reader) (*store.ItemImage, error) {
	photo, err := imaging.Normalize(file)
	if err != nil {
		return nil, badRequest(imageErrorMessage(err))
	}

	ref, err := images.Put(ctx, photo.Data, photo.MIME)
	if err != nil {
		return nil, fmt.Errorf("storing image: %w", err)
	}
	if err := store.RecordUpload(ctx, db, ref.Key, ref.URL, userID); err != nil {
		if derr := images.Delete(ctx, ref.Key); derr != nil {
			slog.Warn("failed to remove unrecorded image", "key", ref.Key, "error", derr)
		}
		return nil, err
	}
	return &store.ItemImage{URL: ref.URL, Key: ref.Key}, nil
}

// imageErrorMessage maps imaging errors to client messages.
func imageErrorMessage(err error) string {
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		return "image must be 5MB or smaller"
	case errors.Is(err, imaging.ErrUnsupported):
		return "image must be a JPEG, PNG, GIF or WebP file"
	}
	return "invalid image"
}

// DeleteMine handles DELETE /api/user/items/{id}. Messages and the item go
// in one transaction; the image is removed afterwards on a best-effort basis.
func (h *ItemsHandler) DeleteMine(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())

	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	deleted, err := store.DeleteOwnedItem(r.Context(), h.DB, id, user.ID)
	if err != nil {
		serverError(w, r, "failed to delete item", err)
		return
	}
	if deleted == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	removeImage(r.Context(), h.DB, h.Images, deleted.ImageKey)

	slog.Info("item deleted", "item_id", id, "user_id", user.ID)
	jsonResponse(w, http.StatusOK, map[string]bool{"success": true})
}

// MarkReturned handles POST /api/user/items/{id}/returned.
func (h *ItemsHandler) MarkReturned(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())

	if !h.OwnerCanMarkReturned {
		jsonError(w, http.StatusForbidden, "only moderators can mark items returned")
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetOwnedItem(r.Context(), h.DB, id, user.ID)
	if err != nil {
		serverError(w, r, "failed to update item", err)
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	if _, err := store.ApplyItemAction(r.Context(), h.DB, id, model.ActionMarkReturned); err != nil {
		if errors.Is(err, model.ErrInvalidTransition) {
			jsonError(w, http.StatusBadRequest, "only approved items can be marked returned")
			return
		}
		serverError(w, r, "failed to update item", err)
		return
	}

	slog.Info("item returned", "item_id", id, "user_id", user.ID)
	jsonResponse(w, http.StatusOK, map[string]bool{"success": true})
}

// UserStats handles GET /api/user/stats.
func (h *ItemsHandler) UserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := store.GetUserStats(r.Context(), h.DB, GetUser(r.Context()).ID)
	if err != nil {
		serverError(w, r, "failed to fetch stats", err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}
