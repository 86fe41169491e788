package users

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/draftwise/draftwise/internal/providers"
	"github.com/draftwise/draftwise/internal/tiers"
)

// Encryptor seals and opens stored credentials. Satisfied by auth.Encryptor.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type Service struct {
	repo      Repository
	encryptor Encryptor
}

func NewService(repo Repository, encryptor Encryptor) *Service {
	return &Service{repo: repo, encryptor: encryptor}
}

// Create registers a new user on the FREE tier.
func (s *Service) Create(ctx context.Context, email, passwordHash string) (*User, error) {
	now := time.Now()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Tier:         tiers.TierFree,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.repo.ExistsByEmail(ctx, email)
}

func (s *Service) UpdateTier(ctx context.Context, id uuid.UUID, tier tiers.Tier) error {
	if !tier.Valid() {
		return fmt.Errorf("unknown tier %q", tier)
	}
	return s.repo.UpdateTier(ctx, id, string(tier))
}

// SetProviderKey encrypts and stores a user-owned API key for one provider.
func (s *Service) SetProviderKey(ctx context.Context, userID uuid.UUID, provider providers.Provider, apiKey string) error {
	encrypted, err := s.encryptor.Encrypt(apiKey)
	if err != nil {
		return fmt.Errorf("encrypting provider key: %w", err)
	}

	return s.repo.UpsertProviderKey(ctx, &ProviderKey{
		UserID:              userID,
		Provider:            string(provider),
		EncryptedCredential: encrypted,
	})
}

// ProviderCredential returns the user's decrypted key for provider, or
// "" with found=false when none is stored.
func (s *Service) ProviderCredential(ctx context.Context, userID uuid.UUID, provider providers.Provider) (string, bool, error) {
	key, err := s.repo.GetProviderKey(ctx, userID, provider)
	if err != nil {
		return "", false, err
	}
	if key == nil {
		return "", false, nil
	}

	credential, err := s.encryptor.Decrypt(key.EncryptedCredential)
	if err != nil {
		return "", false, fmt.Errorf("decrypting provider key: %w", err)
	}
	return credential, true, nil
}

func (s *Service) DeleteProviderKey(ctx context.Context, userID uuid.UUID, provider providers.Provider) error {
	return s.repo.DeleteProviderKey(ctx, userID, provider)
}

// ListConfiguredProviders returns which providers the user has keys for,
// never the keys themselves.
func (s *Service) ListConfiguredProviders(ctx context.Context, userID uuid.UUID) ([]string, error) {
	keys, err := s.repo.ListProviderKeys(ctx, userID)
	if err != nil {
		return nil, err
	}

	configured := make([]string, 0, len(keys))
	for _, k := range keys {
		configured = append(configured, k.Provider)
	}
	return configured, nil
}
