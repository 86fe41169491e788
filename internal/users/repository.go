package users

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
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdateTier(ctx context.Context, id uuid.UUID, tier string) error

	UpsertProviderKey(ctx context.Context, key *ProviderKey) error
	GetProviderKey(ctx context.Context, userID uuid.UUID, provider providers.Provider) (*ProviderKey, error)
	DeleteProviderKey(ctx context.Context, userID uuid.UUID, provider providers.Provider) error
	ListProviderKeys(ctx context.Context, userID uuid.UUID) ([]ProviderKey, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, tier, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		user.ID, user.Email, user.PasswordHash, string(user.Tier), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT id, email, password_hash, tier, created_at, updated_at FROM users WHERE id = $1`

	user := &User{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Tier, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user by id: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT id, email, password_hash, tier, created_at, updated_at FROM users WHERE email = $1`

	user := &User{}
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Tier, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user by email: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking email existence: %w", err)
	}
	return exists, nil
}

func (r *postgresRepository) UpdateTier(ctx context.Context, id uuid.UUID, tier string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET tier = $2, updated_at = NOW() WHERE id = $1`, id, tier)
	if err != nil {
		return fmt.Errorf("updating user tier: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpsertProviderKey(ctx context.Context, key *ProviderKey) error {
	query := `
		INSERT INTO user_provider_keys (user_id, provider, encrypted_credential, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, provider) DO UPDATE SET
			encrypted_credential = EXCLUDED.encrypted_credential,
			updated_at = NOW()`

	_, err := r.pool.Exec(ctx, query, key.UserID, key.Provider, key.EncryptedCredential)
	if err != nil {
		return fmt.Errorf("upserting provider key: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetProviderKey(ctx context.Context, userID uuid.UUID, provider providers.Provider) (*ProviderKey, error) {
	query := `
		SELECT user_id, provider, encrypted_credential, updated_at
		FROM user_provider_keys WHERE user_id = $1 AND provider = $2`

	key := &ProviderKey{}
	err := r.pool.QueryRow(ctx, query, userID, string(provider)).Scan(
		&key.UserID, &key.Provider, &key.EncryptedCredential, &key.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying provider key: %w", err)
	}
	return key, nil
}

func (r *postgresRepository) DeleteProviderKey(ctx context.Context, userID uuid.UUID, provider providers.Provider) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_provider_keys WHERE user_id = $1 AND provider = $2`,
		userID, string(provider))
	if err != nil {
		return fmt.Errorf("deleting provider key: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListProviderKeys(ctx context.Context, userID uuid.UUID) ([]ProviderKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, provider, encrypted_credential, updated_at
		 FROM user_provider_keys WHERE user_id = $1 ORDER BY provider`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing provider keys: %w", err)
	}
	defer rows.Close()

	var keys []ProviderKey
	for rows.Next() {
		var k ProviderKey
		if err := rows.Scan(&k.UserID, &k.Provider, &k.EncryptedCredential, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning provider key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
