package tiers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftwise/draftwise/internal/cache"
)

// fakeRepository is an in-memory Repository that counts Find calls.
type fakeRepository struct {
	policies  map[Tier]Policy
	findCalls int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{policies: make(map[Tier]Policy)}
}

func (f *fakeRepository) Find(_ context.Context, tier Tier) (*Policy, error) {
	f.findCalls++
	p, ok := f.policies[tier]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeRepository) Upsert(_ context.Context, policy *Policy) error {
	policy.UpdatedAt = time.Now()
	f.policies[policy.Tier] = *policy
	return nil
}

func (f *fakeRepository) List(_ context.Context) ([]Policy, error) {
	var out []Policy
	for _, p := range f.policies {
		out = append(out, p)
	}
	return out, nil
}

func newTestService(t *testing.T) (*Service, *fakeRepository) {
	t.Helper()
	c := cache.New[Policy](cache.Options{SweepInterval: time.Hour})
	t.Cleanup(c.Close)
	repo := newFakeRepository()
	return NewService(repo, c), repo
}

func TestService_GetPolicyCachesReads(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	repo.policies[TierPlus] = Policy{Tier: TierPlus, MaxGenerations: LimitOf(30)}

	p, err := svc.GetPolicy(ctx, TierPlus)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 1, repo.findCalls)

	p, err = svc.GetPolicy(ctx, TierPlus)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 1, repo.findCalls, "second read should be served from cache")

	limit, ok := p.MaxGenerations.Value()
	require.True(t, ok)
	assert.Equal(t, uint32(30), limit)
}

func TestService_GetPolicyMissIsNotCached(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	p, err := svc.GetPolicy(ctx, TierFree)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, 1, repo.findCalls)

	// Row appears later (e.g. seeded by an admin); next read must see it.
	repo.policies[TierFree] = Policy{Tier: TierFree, MaxGenerations: LimitOf(3)}

	p, err = svc.GetPolicy(ctx, TierFree)
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestService_UpsertInvalidatesCache(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	repo.policies[TierPlus] = Policy{Tier: TierPlus, MaxGenerations: LimitOf(30)}
	_, err := svc.GetPolicy(ctx, TierPlus)
	require.NoError(t, err)

	_, err = svc.UpsertPolicy(ctx, TierPlus, &UpsertPolicyRequest{MaxGenerations: 50})
	require.NoError(t, err)

	p, err := svc.GetPolicy(ctx, TierPlus)
	require.NoError(t, err)
	require.NotNil(t, p)
	limit, ok := p.MaxGenerations.Value()
	require.True(t, ok)
	assert.Equal(t, uint32(50), limit, "stale policy must not be served after upsert")
}

func TestService_UpsertRejectsUnknownTier(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UpsertPolicy(context.Background(), Tier("GOLD"), &UpsertPolicyRequest{})
	assert.Error(t, err)
}

func TestService_GetPolicyOrDefaultFallsBack(t *testing.T) {
	svc, _ := newTestService(t)

	p, err := svc.GetPolicyOrDefault(context.Background(), TierFree)
	require.NoError(t, err)
	assert.Equal(t, TierFree, p.Tier)
	assert.False(t, p.MaxGenerations.IsUnlimited(), "default must be conservative")
}
