package history

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one persisted history event. Rows are written only by the
// JetStream consumer; the request path never touches this table.
type Entry struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Kind          string    `json:"kind"`
	Model         string    `json:"model,omitempty"`
	Provider      string    `json:"provider,omitempty"`
	UsedSharedKey bool      `json:"used_shared_key"`
	Followup      bool      `json:"followup"`
	Success       bool      `json:"success"`
	Detail        string    `json:"detail,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Page is one page of a user's trail, newest first.
type Page struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}
