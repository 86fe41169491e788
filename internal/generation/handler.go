package generation

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/draftwise/draftwise/internal/api"
	"github.com/draftwise/draftwise/internal/quota"
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

// Generate serves one generation request end to end.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	user, ok := quota.UserFromClaims(r)
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	resp, err := h.svc.Generate(r.Context(), user, &req)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, resp)
}

// RecordActivity counts a saved piece of generated content against the
// caller's activity quota.
func (h *Handler) RecordActivity(w http.ResponseWriter, r *http.Request) {
	user, ok := quota.UserFromClaims(r)
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req CreateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.svc.RecordActivity(r.Context(), user, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSONMessage(w, http.StatusCreated, "activity recorded")
}
