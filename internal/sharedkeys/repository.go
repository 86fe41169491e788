package sharedkeys

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftwise/draftwise/internal/providers"
)

type Repository interface {
	Create(ctx context.Context, key *SharedKey) error
	Get(ctx context.Context, id uuid.UUID) (*SharedKey, error)
	List(ctx context.Context) ([]SharedKey, error)
	ListActive(ctx context.Context) ([]SharedKey, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*SharedKey, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	CountActive(ctx context.Context) (int, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

const sharedKeyColumns = `id, provider, encrypted_credential, authorized_models, is_active, created_at, updated_at`

func (r *postgresRepository) Create(ctx context.Context, key *SharedKey) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO shared_keys (provider, encrypted_credential, authorized_models, is_active)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		key.Provider, key.EncryptedCredential, key.AuthorizedModels, key.IsActive,
	).Scan(&key.ID, &key.CreatedAt, &key.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating shared key: %w", err)
	}
	return nil
}

func (r *postgresRepository) Get(ctx context.Context, id uuid.UUID) (*SharedKey, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sharedKeyColumns+` FROM shared_keys WHERE id = $1`, id)

	key, err := scanSharedKey(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding shared key: %w", err)
	}
	return key, nil
}

func (r *postgresRepository) List(ctx context.Context) ([]SharedKey, error) {
	return r.list(ctx, `SELECT `+sharedKeyColumns+` FROM shared_keys ORDER BY created_at, id`)
}

// ListActive returns active keys in created_at, id order. The order fixes
// which key wins when several authorize the same model.
func (r *postgresRepository) ListActive(ctx context.Context) ([]SharedKey, error) {
	return r.list(ctx, `SELECT `+sharedKeyColumns+` FROM shared_keys WHERE is_active ORDER BY created_at, id`)
}

func (r *postgresRepository) list(ctx context.Context, query string) ([]SharedKey, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing shared keys: %w", err)
	}
	defer rows.Close()

	var keys []SharedKey
	for rows.Next() {
		key, err := scanSharedKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning shared key: %w", err)
		}
		keys = append(keys, *key)
	}
	return keys, rows.Err()
}

func (r *postgresRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*SharedKey, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE shared_keys SET is_active = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+sharedKeyColumns, id, active)

	key, err := scanSharedKey(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("toggling shared key: %w", err)
	}
	return key, nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM shared_keys WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deleting shared key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *postgresRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM shared_keys WHERE is_active`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting active shared keys: %w", err)
	}
	return count, nil
}

func scanSharedKey(row pgx.Row) (*SharedKey, error) {
	var key SharedKey
	var provider string
	err := row.Scan(&key.ID, &provider, &key.EncryptedCredential, &key.AuthorizedModels,
		&key.IsActive, &key.CreatedAt, &key.UpdatedAt)
	if err != nil {
		return nil, err
	}
	key.Provider = providers.Provider(provider)
	return &key, nil
}
