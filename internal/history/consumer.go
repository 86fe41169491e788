package history

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/draftwise/draftwise/internal/nats"
)

const consumerName = "history-writer"

// Consumer drains the history stream into Postgres. It is the only writer
// of the generation_history table.
type Consumer struct {
	client *nats.Client
	repo   Repository
}

func NewConsumer(client *nats.Client, repo Repository) *Consumer {
	return &Consumer{client: client, repo: repo}
}

// Start registers the durable consumer and begins consuming. The returned
// stop function drains in-flight messages.
func (c *Consumer) Start(ctx context.Context) (func(), error) {
	consumer, err := c.client.EnsureConsumer(ctx, consumerName, "draftwise.history.>")
	if err != nil {
		return nil, err
	}

	cc, err := consumer.Consume(c.handle)
	if err != nil {
		return nil, err
	}

	slog.Info("history consumer started", "consumer", consumerName)
	return cc.Stop, nil
}

func (c *Consumer) handle(msg jetstream.Msg) {
	var evt nats.HistoryEvent
	if err := json.Unmarshal(msg.Data(), &evt); err != nil {
		// A malformed event can never succeed; drop it rather than redeliver.
		slog.Error("discarding malformed history event", "subject", msg.Subject(), "error", err)
		_ = msg.Term()
		return
	}

	entry := &Entry{
		ID:            evt.ID,
		UserID:        evt.UserID,
		Kind:          evt.Kind,
		Model:         evt.Model,
		Provider:      evt.Provider,
		UsedSharedKey: evt.UsedSharedKey,
		Followup:      evt.Followup,
		Success:       evt.Success,
		Detail:        evt.Detail,
		OccurredAt:    evt.OccurredAt,
	}

	if err := c.repo.Insert(context.Background(), entry); err != nil {
		slog.Error("persisting history event", "event_id", evt.ID, "error", err)
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()
}
