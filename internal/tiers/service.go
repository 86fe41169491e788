package tiers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/draftwise/draftwise/internal/cache"
)

const policyCacheTTL = 5 * time.Minute

// Service reads tier policies through an in-process cache and writes them
// through to Postgres. Policy changes are rare administrative actions, so a
// cached read can be stale for up to the TTL after an out-of-band database
// edit; writes through this service invalidate immediately.
type Service struct {
	repo  Repository
	cache *cache.Cache[Policy]
}

func NewService(repo Repository, policyCache *cache.Cache[Policy]) *Service {
	return &Service{repo: repo, cache: policyCache}
}

func policyCacheKey(tier Tier) string {
	return "policies:" + string(tier)
}

// GetPolicy returns the policy for tier, or nil when none is configured.
func (s *Service) GetPolicy(ctx context.Context, tier Tier) (*Policy, error) {
	key := policyCacheKey(tier)
	if p, ok := s.cache.Get(key); ok {
		return &p, nil
	}

	p, err := s.repo.Find(ctx, tier)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}

	s.cache.SetTTL(key, *p, policyCacheTTL)
	return p, nil
}

// GetPolicyOrDefault returns the configured policy for tier. A missing row
// is a configuration error: it is logged and a conservative built-in
// default is returned instead of failing the request.
func (s *Service) GetPolicyOrDefault(ctx context.Context, tier Tier) (Policy, error) {
	p, err := s.GetPolicy(ctx, tier)
	if err != nil {
		return Policy{}, err
	}
	if p == nil {
		slog.Error("no policy configured for tier, applying conservative default", "tier", tier)
		return ConservativeDefault(tier), nil
	}
	return *p, nil
}

// UpsertPolicy writes the policy to Postgres and synchronously drops the
// cached entry so the next read observes the new limits.
func (s *Service) UpsertPolicy(ctx context.Context, tier Tier, req *UpsertPolicyRequest) (*Policy, error) {
	if !tier.Valid() {
		return nil, fmt.Errorf("unknown tier %q", tier)
	}

	policy := &Policy{
		Tier:                    tier,
		MaxActivities:           LimitFromStored(req.MaxActivities),
		MaxGenerations:          LimitFromStored(req.MaxGenerations),
		MaxFollowupGenerations:  LimitFromStored(req.MaxFollowupGenerations),
		IncludeFollowupsInCount: req.IncludeFollowupsInCount,
	}

	if err := s.repo.Upsert(ctx, policy); err != nil {
		return nil, err
	}

	s.cache.Delete(policyCacheKey(tier))
	slog.Info("tier policy updated", "tier", tier,
		"max_activities", policy.MaxActivities.String(),
		"max_generations", policy.MaxGenerations.String(),
		"max_followup_generations", policy.MaxFollowupGenerations.String())
	return policy, nil
}

// ListPolicies returns all configured policies, uncached. Used by the admin
// screen only.
func (s *Service) ListPolicies(ctx context.Context) ([]Policy, error) {
	return s.repo.List(ctx)
}
