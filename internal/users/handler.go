package users

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/draftwise/draftwise/internal/api"
	"github.com/draftwise/draftwise/internal/auth/claims"
	"github.com/draftwise/draftwise/internal/providers"
)

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func userIDFromClaims(r *http.Request) (uuid.UUID, bool) {
	userClaims := claims.GetUserClaims(r.Context())
	if userClaims == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(userClaims.UserID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Me returns the authenticated user's profile and configured key providers.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromClaims(r)
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	user, err := h.svc.GetByID(r.Context(), userID)
	if err != nil {
		slog.Error("getting user", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if user == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	configured, err := h.svc.ListConfiguredProviders(r.Context(), userID)
	if err != nil {
		slog.Error("listing configured providers", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, map[string]any{
		"user":            user,
		"configured_keys": configured,
	})
}

// SetProviderKey stores the caller's own API key for one provider.
func (h *Handler) SetProviderKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromClaims(r)
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	provider, err := providers.Parse(chi.URLParam(r, "provider"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError(err.Error()))
		return
	}

	var req SetProviderKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	if err := h.svc.SetProviderKey(r.Context(), userID, provider, req.APIKey); err != nil {
		slog.Error("setting provider key", "provider", provider, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "provider key saved")
}

// DeleteProviderKey removes the caller's own API key for one provider.
func (h *Handler) DeleteProviderKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromClaims(r)
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	provider, err := providers.Parse(chi.URLParam(r, "provider"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError(err.Error()))
		return
	}

	if err := h.svc.DeleteProviderKey(r.Context(), userID, provider); err != nil {
		slog.Error("deleting provider key", "provider", provider, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "provider key removed")
}
