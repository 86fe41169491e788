package quota

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/draftwise/draftwise/internal/api"
	"github.com/draftwise/draftwise/internal/auth"
	"github.com/draftwise/draftwise/internal/tiers"
	"github.com/draftwise/draftwise/internal/users"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// UserFromClaims reconstructs the caller from the access token. The tier
// travels in the claims so quota checks never need a user lookup.
func UserFromClaims(r *http.Request) (*users.User, bool) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		return nil, false
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, false
	}
	return &users.User{ID: id, Email: claims.Email, Tier: tiers.Tier(claims.Tier)}, true
}

// Usage returns all three counters with their limits and the reset date.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromClaims(r)
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	status, err := h.engine.Status(r.Context(), user)
	if err != nil {
		slog.Error("assembling usage status", "user_id", user.ID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, status)
}
