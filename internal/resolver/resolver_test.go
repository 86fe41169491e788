package resolver

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftwise/draftwise/internal/api"
	"github.com/draftwise/draftwise/internal/providers"
	"github.com/draftwise/draftwise/internal/tiers"
	"github.com/draftwise/draftwise/internal/users"
)

type fakePool struct {
	credentials map[string]string // model -> credential
	keyID       uuid.UUID
}

func (f *fakePool) FindKeyForModel(_ context.Context, model string) (string, uuid.UUID, bool, error) {
	credential, ok := f.credentials[model]
	return credential, f.keyID, ok, nil
}

type fakeCredentials struct {
	keys map[providers.Provider]string
}

func (f *fakeCredentials) ProviderCredential(_ context.Context, _ uuid.UUID, provider providers.Provider) (string, bool, error) {
	credential, ok := f.keys[provider]
	return credential, ok, nil
}

func newResolver(pool *fakePool, creds *fakeCredentials) *Resolver {
	if pool == nil {
		pool = &fakePool{credentials: map[string]string{}}
	}
	if creds == nil {
		creds = &fakeCredentials{keys: map[providers.Provider]string{}}
	}
	return New(pool, creds)
}

func user(tier tiers.Tier) *users.User {
	return &users.User{ID: uuid.New(), Tier: tier}
}

func TestResolve_SharedPathForPaidTier(t *testing.T) {
	keyID := uuid.New()
	r := newResolver(&fakePool{
		credentials: map[string]string{"gpt-4o": "sk-pooled"},
		keyID:       keyID,
	}, nil)

	res, err := r.Resolve(context.Background(), user(tiers.TierPlus), "shared:gpt-4o")
	require.NoError(t, err)

	assert.True(t, res.IsShared)
	assert.Equal(t, "sk-pooled", res.Credential)
	assert.Equal(t, "gpt-4o", res.ActualModel, "selector prefix must be stripped")
	assert.Equal(t, providers.OpenAI, res.Provider)
	assert.Equal(t, keyID, res.SharedKeyID)
}

func TestResolve_FreeTierCannotUseSharedPool(t *testing.T) {
	// The pool does serve the model; the tier gate must still reject,
	// never fall back to the user's own key.
	r := newResolver(&fakePool{
		credentials: map[string]string{"gpt-4o": "sk-pooled"},
	}, &fakeCredentials{
		keys: map[providers.Provider]string{providers.OpenAI: "sk-own"},
	})

	res, err := r.Resolve(context.Background(), user(tiers.TierFree), "shared:gpt-4o")
	require.Nil(t, res)

	var unavailable *api.ModelUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "gpt-4o", unavailable.Model)
}

func TestResolve_AdminCanUseSharedPool(t *testing.T) {
	r := newResolver(&fakePool{
		credentials: map[string]string{"claude-haiku": "sk-pooled"},
	}, nil)

	res, err := r.Resolve(context.Background(), user(tiers.TierAdmin), "shared:claude-haiku")
	require.NoError(t, err)
	assert.True(t, res.IsShared)
}

func TestResolve_SharedModelNotInPool(t *testing.T) {
	r := newResolver(nil, nil)

	_, err := r.Resolve(context.Background(), user(tiers.TierPlus), "shared:gpt-4o")

	var unavailable *api.ModelUnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestResolve_OwnKeyPath(t *testing.T) {
	r := newResolver(nil, &fakeCredentials{
		keys: map[providers.Provider]string{providers.Anthropic: "sk-ant-own"},
	})

	res, err := r.Resolve(context.Background(), user(tiers.TierFree), "claude-3-5-sonnet")
	require.NoError(t, err)

	assert.False(t, res.IsShared)
	assert.Equal(t, "sk-ant-own", res.Credential)
	assert.Equal(t, "claude-3-5-sonnet", res.ActualModel)
	assert.Equal(t, providers.Anthropic, res.Provider)
}

func TestResolve_OwnKeyMissing(t *testing.T) {
	r := newResolver(nil, nil)

	_, err := r.Resolve(context.Background(), user(tiers.TierPlus), "gemini-2.0-flash")

	var missing *api.CredentialMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "gemini", missing.Provider)
}

func TestResolve_UnknownModelIsInvalid(t *testing.T) {
	r := newResolver(nil, &fakeCredentials{
		keys: map[providers.Provider]string{
			providers.OpenAI:    "sk-own",
			providers.Anthropic: "sk-own",
			providers.Gemini:    "own",
		},
	})

	_, err := r.Resolve(context.Background(), user(tiers.TierPlus), "mistral-large")

	var invalid *api.InvalidModelError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "mistral-large", invalid.Model)
}
