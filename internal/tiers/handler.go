package tiers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/draftwise/draftwise/internal/api"
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

// List returns every configured tier policy.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	policies, err := h.svc.ListPolicies(r.Context())
	if err != nil {
		slog.Error("listing tier policies", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, policies)
}

// Get returns the policy for one tier.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tier, err := ParseTier(chi.URLParam(r, "tier"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError(err.Error()))
		return
	}

	policy, err := h.svc.GetPolicy(r.Context(), tier)
	if err != nil {
		slog.Error("getting tier policy", "tier", tier, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if policy == nil {
		api.HandleError(w, api.NewNotFoundError("no policy configured for tier"))
		return
	}
	api.JSON(w, http.StatusOK, policy)
}

// Upsert creates or replaces the policy for one tier.
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	tier, err := ParseTier(chi.URLParam(r, "tier"))
	if err != nil {
		api.HandleError(w, api.NewBadRequestError(err.Error()))
		return
	}

	var req UpsertPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	policy, err := h.svc.UpsertPolicy(r.Context(), tier, &req)
	if err != nil {
		slog.Error("upserting tier policy", "tier", tier, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSON(w, http.StatusOK, policy)
}
