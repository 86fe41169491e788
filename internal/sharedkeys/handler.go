package sharedkeys

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/draftwise/draftwise/internal/api"
)

type Handler struct {
	pool     *Pool
	validate *validator.Validate
}

func NewHandler(pool *Pool) *Handler {
	return &Handler{
		pool:     pool,
		validate: validator.New(),
	}
}

// ListModels returns the pooled models visible to qualifying tiers.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	list, err := h.pool.ListActiveModels(r.Context())
	if err != nil {
		slog.Error("listing shared models", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, list)
}

// Create stores a new shared key. Admin only.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	key, err := h.pool.Create(r.Context(), &req)
	if err != nil {
		slog.Error("creating shared key", "provider", req.Provider, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusCreated, key)
}

// List returns every shared key, active or not. Admin only.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.pool.List(r.Context())
	if err != nil {
		slog.Error("listing shared keys", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{"keys": keys})
}

// Toggle flips a key's active flag. Admin only.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid key id"))
		return
	}

	key, err := h.pool.Toggle(r.Context(), id)
	if err != nil {
		slog.Error("toggling shared key", "key_id", id, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if key == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	api.JSON(w, http.StatusOK, key)
}

// Delete removes a key. Admin only.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid key id"))
		return
	}

	deleted, err := h.pool.Delete(r.Context(), id)
	if err != nil {
		slog.Error("deleting shared key", "key_id", id, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if !deleted {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	api.JSONMessage(w, http.StatusOK, "shared key deleted")
}
