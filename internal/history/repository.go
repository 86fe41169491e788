package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) (*Page, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

// Insert is idempotent on the event id, so a redelivered JetStream message
// does not duplicate a row.
func (r *postgresRepository) Insert(ctx context.Context, e *Entry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO generation_history
		   (id, user_id, kind, model, provider, used_shared_key, followup, success, detail, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, e.UserID, e.Kind, e.Model, e.Provider, e.UsedSharedKey, e.Followup,
		e.Success, e.Detail, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("inserting history entry: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) (*Page, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM generation_history WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting history entries: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, kind, model, provider, used_shared_key, followup, success, detail, occurred_at
		 FROM generation_history
		 WHERE user_id = $1
		 ORDER BY occurred_at DESC, id
		 LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing history entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Model, &e.Provider,
			&e.UsedSharedKey, &e.Followup, &e.Success, &e.Detail, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		entries = append(entries, e)
	}

	return &Page{Entries: entries, Total: total, Limit: limit, Offset: offset}, rows.Err()
}
