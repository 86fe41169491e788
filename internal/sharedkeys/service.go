package sharedkeys

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/draftwise/draftwise/internal/cache"
	"github.com/draftwise/draftwise/internal/metrics"
	"github.com/draftwise/draftwise/internal/providers"
)

const (
	modelListCacheKey = "shared_models:all"
	modelListCacheTTL = 5 * time.Minute
	catalogCacheTTL   = 5 * time.Minute
)

// Encryptor is the credential cipher the pool needs.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Pool manages the platform-owned provider credentials and the pooled model
// list built from them. The model list is cached under one composite key;
// every mutation invalidates it synchronously so a disabled or deleted key
// never keeps serving from a stale read.
type Pool struct {
	repo     Repository
	enc      Encryptor
	catalog  providers.Catalog
	models   *cache.Cache[ModelList]
	catalogs *cache.Cache[[]providers.CatalogModel]
}

func NewPool(repo Repository, enc Encryptor, catalog providers.Catalog,
	models *cache.Cache[ModelList], catalogs *cache.Cache[[]providers.CatalogModel]) *Pool {
	return &Pool{repo: repo, enc: enc, catalog: catalog, models: models, catalogs: catalogs}
}

func catalogCacheKey(provider providers.Provider, keyID uuid.UUID) string {
	return fmt.Sprintf("models:%s:%s", provider, keyID)
}

// ListActiveModels returns every model served by an active key. For each key
// the provider's catalog is consulted for display names and to drop
// authorized models the credential cannot actually reach; a failing provider
// degrades that key to raw ids with a failure marker instead of failing the
// whole listing.
func (p *Pool) ListActiveModels(ctx context.Context) (*ModelList, error) {
	if cached, ok := p.models.Get(modelListCacheKey); ok {
		metrics.CacheLookupsTotal.WithLabelValues("shared_models", "hit").Inc()
		return &cached, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("shared_models", "miss").Inc()

	keys, err := p.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	metrics.SharedKeysActive.Set(float64(len(keys)))

	list := ModelList{Models: []ModelInfo{}}
	for i := range keys {
		p.appendKeyModels(ctx, &list, &keys[i])
	}

	p.models.SetTTL(modelListCacheKey, list, modelListCacheTTL)
	return &list, nil
}

func (p *Pool) appendKeyModels(ctx context.Context, list *ModelList, key *SharedKey) {
	catalog, err := p.keyCatalog(ctx, key)
	if err != nil {
		slog.Warn("provider model listing failed, serving raw model ids",
			"provider", key.Provider, "key_id", key.ID, "error", err)
		if list.Failures == nil {
			list.Failures = make(map[providers.Provider]string)
		}
		list.Failures[key.Provider] = err.Error()

		for _, model := range key.AuthorizedModels {
			list.Models = append(list.Models, ModelInfo{
				Model: model, DisplayName: model, Provider: key.Provider, KeyID: key.ID,
			})
		}
		return
	}

	names := make(map[string]string, len(catalog))
	for _, m := range catalog {
		names[m.ID] = m.DisplayName
	}
	for _, model := range key.AuthorizedModels {
		name, ok := names[model]
		if !ok {
			continue
		}
		list.Models = append(list.Models, ModelInfo{
			Model: model, DisplayName: name, Provider: key.Provider, KeyID: key.ID,
		})
	}
}

// keyCatalog fetches (or serves from cache) the provider catalog as seen by
// one key's credential.
func (p *Pool) keyCatalog(ctx context.Context, key *SharedKey) ([]providers.CatalogModel, error) {
	cacheKey := catalogCacheKey(key.Provider, key.ID)
	if cached, ok := p.catalogs.Get(cacheKey); ok {
		return cached, nil
	}

	credential, err := p.enc.Decrypt(key.EncryptedCredential)
	if err != nil {
		return nil, fmt.Errorf("decrypting shared key credential: %w", err)
	}

	catalog, err := p.catalog.ListModels(ctx, key.Provider, credential)
	if err != nil {
		return nil, err
	}

	p.catalogs.SetTTL(cacheKey, catalog, catalogCacheTTL)
	return catalog, nil
}

// FindKeyForModel returns the decrypted credential of the first active key
// authorizing model, in created_at, id order. found is false when no active
// key serves it.
func (p *Pool) FindKeyForModel(ctx context.Context, model string) (credential string, keyID uuid.UUID, found bool, err error) {
	keys, err := p.repo.ListActive(ctx)
	if err != nil {
		return "", uuid.Nil, false, err
	}

	for i := range keys {
		if !keys[i].Authorizes(model) {
			continue
		}
		credential, err := p.enc.Decrypt(keys[i].EncryptedCredential)
		if err != nil {
			return "", uuid.Nil, false, fmt.Errorf("decrypting shared key credential: %w", err)
		}
		return credential, keys[i].ID, true, nil
	}
	return "", uuid.Nil, false, nil
}

// Create encrypts and stores a new shared key, active by default.
func (p *Pool) Create(ctx context.Context, req *CreateKeyRequest) (*SharedKey, error) {
	provider, err := providers.Parse(req.Provider)
	if err != nil {
		return nil, err
	}

	encrypted, err := p.enc.Encrypt(req.APIKey)
	if err != nil {
		return nil, fmt.Errorf("encrypting shared key credential: %w", err)
	}

	key := &SharedKey{
		Provider:            provider,
		EncryptedCredential: encrypted,
		AuthorizedModels:    req.AuthorizedModels,
		IsActive:            true,
	}
	if err := p.repo.Create(ctx, key); err != nil {
		return nil, err
	}

	p.invalidate(ctx, provider)
	slog.Info("shared key created", "key_id", key.ID, "provider", provider,
		"authorized_models", len(key.AuthorizedModels))
	return key, nil
}

// List returns all shared keys, active and inactive, for the admin screen.
func (p *Pool) List(ctx context.Context) ([]SharedKey, error) {
	return p.repo.List(ctx)
}

// Toggle flips a key's active flag. Returns nil when the key does not exist.
func (p *Pool) Toggle(ctx context.Context, id uuid.UUID) (*SharedKey, error) {
	key, err := p.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, nil
	}

	updated, err := p.repo.SetActive(ctx, id, !key.IsActive)
	if err != nil {
		return nil, err
	}

	p.invalidate(ctx, key.Provider)
	slog.Info("shared key toggled", "key_id", id, "provider", key.Provider, "is_active", updated.IsActive)
	return updated, nil
}

// Delete removes a key. Returns false when the key does not exist.
func (p *Pool) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	key, err := p.repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if key == nil {
		return false, nil
	}

	deleted, err := p.repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}

	p.invalidate(ctx, key.Provider)
	slog.Info("shared key deleted", "key_id", id, "provider", key.Provider)
	return deleted, nil
}

// invalidate drops the composite model list and the provider's catalog
// entries before the mutating call returns, so the next read rebuilds from
// the database. The active-key gauge is refreshed on a best-effort basis.
func (p *Pool) invalidate(ctx context.Context, provider providers.Provider) {
	p.models.Delete(modelListCacheKey)
	p.catalogs.DeletePattern(fmt.Sprintf("models:%s:*", provider))

	if count, err := p.repo.CountActive(ctx); err == nil {
		metrics.SharedKeysActive.Set(float64(count))
	}
}
