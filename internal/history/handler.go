package history

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/draftwise/draftwise/internal/api"
	"github.com/draftwise/draftwise/internal/quota"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// List returns the caller's trail, newest first, paginated by limit/offset
// query parameters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := quota.UserFromClaims(r)
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	limit := queryInt(r, "limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	page, err := h.repo.ListByUser(r.Context(), user.ID, limit, offset)
	if err != nil {
		slog.Error("listing history", "user_id", user.ID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, page)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
