package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher appends events to the history trail.
type Publisher struct {
	js jetstream.JetStream
}

func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// Publish appends one event, filling in id and timestamp when unset.
func (p *Publisher) Publish(ctx context.Context, evt *HistoryEvent) error {
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshaling history event: %w", err)
	}

	if _, err := p.js.Publish(ctx, evt.Subject(), data); err != nil {
		return fmt.Errorf("publishing history event: %w", err)
	}
	return nil
}

// TryPublish is the fire-and-forget form used on the request path: a
// history failure is logged and never fails the request.
func (p *Publisher) TryPublish(ctx context.Context, evt *HistoryEvent) {
	if err := p.Publish(ctx, evt); err != nil {
		slog.Warn("history event dropped", "kind", evt.Kind, "user_id", evt.UserID, "error", err)
	}
}
