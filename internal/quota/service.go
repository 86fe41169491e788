package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/draftwise/draftwise/internal/metrics"
	"github.com/draftwise/draftwise/internal/tiers"
	"github.com/draftwise/draftwise/internal/users"
)

// PolicyStore provides the tier policy for quota decisions. Satisfied by
// tiers.Service.
type PolicyStore interface {
	GetPolicyOrDefault(ctx context.Context, tier tiers.Tier) (tiers.Policy, error)
}

// Engine tracks and enforces the three per-user counters against the tier
// policy over a rolling 30-day window.
//
// There is no cross-request atomicity between a check and the increment
// that follows the external generation call: two concurrent requests can
// both pass against the same pre-increment value and overshoot the limit
// by a small margin. Increments themselves are atomic in storage.
type Engine struct {
	repo     Repository
	policies PolicyStore
	now      func() time.Time
}

func NewEngine(repo Repository, policies PolicyStore) *Engine {
	return &Engine{
		repo:     repo,
		policies: policies,
		now:      time.Now,
	}
}

// usage returns the user's usage row with the window rolled if it elapsed.
// The roll is a side-effecting read: the first access after the window ends
// zeroes the counters and advances the anchor without waiting for the sweep.
func (e *Engine) usage(ctx context.Context, userID uuid.UUID) (*Usage, error) {
	u, err := e.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	newAnchor, rolled := RollWindow(u.MonthlyResetAt, e.now())
	if !rolled {
		return u, nil
	}

	applied, err := e.repo.ApplyRoll(ctx, userID, u.MonthlyResetAt, newAnchor)
	if err != nil {
		return nil, err
	}
	if !applied {
		// A concurrent caller rolled first; the stored state is already
		// the fresh window.
		slog.Debug("usage window already rolled concurrently", "user_id", userID)
	}

	u.GenerationCount = 0
	u.FollowupGenerationCount = 0
	u.ActivityCount = 0
	u.MonthlyResetAt = newAnchor
	return u, nil
}

// MonthlyActivityCount returns the activity count for the current window,
// rolling the window first when it has elapsed.
func (e *Engine) MonthlyActivityCount(ctx context.Context, userID uuid.UUID) (uint32, time.Time, error) {
	u, err := e.usage(ctx, userID)
	if err != nil {
		return 0, time.Time{}, err
	}
	return u.ActivityCount, u.ResetsAt(), nil
}

// CanCreateActivity checks the activity counter against the tier policy.
// Admins are always allowed.
func (e *Engine) CanCreateActivity(ctx context.Context, user *users.User) (*CheckResult, error) {
	if user.IsAdmin() {
		return &CheckResult{Allowed: true, Limit: tiers.Unlimited()}, nil
	}

	policy, err := e.policies.GetPolicyOrDefault(ctx, user.Tier)
	if err != nil {
		return nil, fmt.Errorf("loading tier policy: %w", err)
	}

	u, err := e.usage(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	result := &CheckResult{
		Allowed:  policy.MaxActivities.Allows(u.ActivityCount),
		Current:  u.ActivityCount,
		Limit:    policy.MaxActivities,
		ResetsAt: u.ResetsAt(),
	}
	if !result.Allowed {
		metrics.QuotaDenialsTotal.WithLabelValues("activities").Inc()
	}
	return result, nil
}

// CheckGeneration checks the main or follow-up generation counter,
// selected by followup, against the tier policy. Admins are always allowed.
func (e *Engine) CheckGeneration(ctx context.Context, user *users.User, followup bool) (*CheckResult, error) {
	if user.IsAdmin() {
		return &CheckResult{Allowed: true, Limit: tiers.Unlimited()}, nil
	}

	policy, err := e.policies.GetPolicyOrDefault(ctx, user.Tier)
	if err != nil {
		return nil, fmt.Errorf("loading tier policy: %w", err)
	}

	u, err := e.usage(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	count, limit, counter := u.GenerationCount, policy.MaxGenerations, "generations"
	if followup {
		count, limit, counter = u.FollowupGenerationCount, policy.MaxFollowupGenerations, "followup_generations"
	}

	result := &CheckResult{
		Allowed:  limit.Allows(count),
		Current:  count,
		Limit:    limit,
		ResetsAt: u.ResetsAt(),
	}
	if !result.Allowed {
		metrics.QuotaDenialsTotal.WithLabelValues(counter).Inc()
	}
	return result, nil
}

// TrackGeneration counts a completed generation. It is a no-op unless the
// request was served by a shared key: generation quota meters the cost of
// the platform's pooled credentials, never the product itself. A user on
// their own key is not limited here.
func (e *Engine) TrackGeneration(ctx context.Context, userID uuid.UUID, followup, usedSharedKey bool) error {
	if !usedSharedKey {
		return nil
	}
	return e.repo.IncrementGeneration(ctx, userID, followup)
}

// TrackActivity counts a persisted activity. Admins are never tracked, and
// follow-ups are skipped when the tier policy excludes them from the
// activity count.
func (e *Engine) TrackActivity(ctx context.Context, user *users.User, followup bool) error {
	if user.IsAdmin() {
		return nil
	}

	if followup {
		policy, err := e.policies.GetPolicyOrDefault(ctx, user.Tier)
		if err != nil {
			return fmt.Errorf("loading tier policy: %w", err)
		}
		if !policy.IncludeFollowupsInCount {
			return nil
		}
	}

	return e.repo.IncrementActivity(ctx, user.ID)
}

// Status assembles the full usage view for the client: all three counters,
// their limits, and the reset date.
func (e *Engine) Status(ctx context.Context, user *users.User) (*Status, error) {
	activities, err := e.CanCreateActivity(ctx, user)
	if err != nil {
		return nil, err
	}
	generations, err := e.CheckGeneration(ctx, user, false)
	if err != nil {
		return nil, err
	}
	followups, err := e.CheckGeneration(ctx, user, true)
	if err != nil {
		return nil, err
	}

	return &Status{
		Activities:          *activities,
		Generations:         *generations,
		FollowupGenerations: *followups,
		Tier:                user.Tier,
	}, nil
}

// ResetExpiredWindows is the batch counterpart to the lazy on-read roll:
// it rolls every user whose window has elapsed. Running it repeatedly, or
// concurrently with lazy rolls, leaves the same state because both paths
// share RollWindow and the anchor-guarded update.
func (e *Engine) ResetExpiredWindows(ctx context.Context) (int, error) {
	now := e.now()

	expired, err := e.repo.ListExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	rolled := 0
	for _, u := range expired {
		newAnchor, ok := RollWindow(u.MonthlyResetAt, now)
		if !ok {
			continue
		}
		applied, err := e.repo.ApplyRoll(ctx, u.UserID, u.MonthlyResetAt, newAnchor)
		if err != nil {
			slog.Error("rolling usage window in sweep", "user_id", u.UserID, "error", err)
			continue
		}
		if applied {
			rolled++
		}
	}

	if rolled > 0 {
		slog.Info("usage window sweep complete", "rolled", rolled, "candidates", len(expired))
	}
	return rolled, nil
}

// StartSweeper runs ResetExpiredWindows on the given interval until ctx is
// cancelled. The sweep is redundant with the lazy roll by design.
func (e *Engine) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := e.ResetExpiredWindows(ctx); err != nil {
				slog.Error("usage window sweep failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
