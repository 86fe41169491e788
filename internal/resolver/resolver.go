package resolver

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/draftwise/draftwise/internal/api"
	"github.com/draftwise/draftwise/internal/providers"
	"github.com/draftwise/draftwise/internal/users"
)

// SharedPrefix marks an explicit opt-in to the pooled credential path.
// Anything else resolves against the caller's own stored key.
const SharedPrefix = "shared:"

// KeyPool finds a pooled credential for a model.
type KeyPool interface {
	FindKeyForModel(ctx context.Context, model string) (credential string, keyID uuid.UUID, found bool, err error)
}

// CredentialStore looks up a user's own provider credential, decrypted.
type CredentialStore interface {
	ProviderCredential(ctx context.Context, userID uuid.UUID, provider providers.Provider) (string, bool, error)
}

// Resolution is the per-request credential decision. IsShared is computed
// exactly once here and must be threaded unchanged into quota tracking and
// the history trail, since it alone decides whether the request is metered.
type Resolution struct {
	Credential  string
	IsShared    bool
	ActualModel string
	Provider    providers.Provider
	SharedKeyID uuid.UUID
}

type Resolver struct {
	pool        KeyPool
	credentials CredentialStore
}

func New(pool KeyPool, credentials CredentialStore) *Resolver {
	return &Resolver{pool: pool, credentials: credentials}
}

// Resolve picks the credential for one generation request.
//
// A "shared:" prefixed model takes the pooled path, which requires a tier
// above FREE; a base-tier request for a pooled model fails as unavailable
// rather than silently falling back to the user's own key. A bare model id
// takes the own-key path via provider inference.
func (r *Resolver) Resolve(ctx context.Context, user *users.User, requestedModel string) (*Resolution, error) {
	if model, ok := strings.CutPrefix(requestedModel, SharedPrefix); ok {
		return r.resolveShared(ctx, user, model)
	}
	return r.resolveOwned(ctx, user, requestedModel)
}

func (r *Resolver) resolveShared(ctx context.Context, user *users.User, model string) (*Resolution, error) {
	if !user.Tier.AboveFree() {
		return nil, &api.ModelUnavailableError{Model: model}
	}

	credential, keyID, found, err := r.pool.FindKeyForModel(ctx, model)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &api.ModelUnavailableError{Model: model}
	}

	// Best effort: pooled model ids usually match a known provider's naming,
	// but the pool itself is the authority, so an unmatched id is fine here.
	provider, _ := providers.Infer(model)

	return &Resolution{
		Credential:  credential,
		IsShared:    true,
		ActualModel: model,
		Provider:    provider,
		SharedKeyID: keyID,
	}, nil
}

func (r *Resolver) resolveOwned(ctx context.Context, user *users.User, model string) (*Resolution, error) {
	provider, ok := providers.Infer(model)
	if !ok {
		return nil, &api.InvalidModelError{Model: model}
	}

	credential, found, err := r.credentials.ProviderCredential(ctx, user.ID, provider)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &api.CredentialMissingError{Provider: string(provider)}
	}

	return &Resolution{
		Credential:  credential,
		IsShared:    false,
		ActualModel: model,
		Provider:    provider,
	}, nil
}
