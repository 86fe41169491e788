package nats

import (
	"time"

	"github.com/google/uuid"
)

// Stream and subject layout. One stream carries the whole history trail;
// the event kind selects the subject.
const (
	StreamHistory = "DRAFTWISE_HISTORY"

	SubjectGeneration = "draftwise.history.generation"
	SubjectActivity   = "draftwise.history.activity"
)

const (
	KindGeneration = "generation"
	KindActivity   = "activity"
)

// HistoryEvent is one entry of the fire-and-forget audit trail. Failed
// generations are recorded too, marked unsuccessful, for diagnostics.
type HistoryEvent struct {
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

// Subject returns the JetStream subject for the event's kind.
func (e *HistoryEvent) Subject() string {
	if e.Kind == KindActivity {
		return SubjectActivity
	}
	return SubjectGeneration
}
