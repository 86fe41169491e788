package quota

import (
	"time"

	"github.com/google/uuid"

	"github.com/draftwise/draftwise/internal/api"
	"github.com/draftwise/draftwise/internal/tiers"
)

// Window is the rolling quota period, anchored per user rather than to the
// calendar month.
const Window = 30 * 24 * time.Hour

// Usage matches the user_usage table schema: the three quota counters and
// the window anchor for one user.
type Usage struct {
	UserID                  uuid.UUID `json:"user_id"`
	GenerationCount         uint32    `json:"generation_count"`
	FollowupGenerationCount uint32    `json:"followup_generation_count"`
	ActivityCount           uint32    `json:"activity_count"`
	MonthlyResetAt          time.Time `json:"monthly_reset_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// ResetsAt returns when the current window ends.
func (u *Usage) ResetsAt() time.Time {
	return u.MonthlyResetAt.Add(Window)
}

// RollWindow computes the window anchor that covers now, given the stored
// anchor. It advances in exact Window steps (possibly several after a long
// idle gap) so the per-user cadence is preserved, and reports whether the
// window rolled at all. Both the lazy on-read reset and the batch sweep go
// through this one function so they cannot drift apart.
func RollWindow(anchor, now time.Time) (time.Time, bool) {
	if now.Sub(anchor) < Window {
		return anchor, false
	}

	steps := now.Sub(anchor) / Window
	return anchor.Add(steps * Window), true
}

// CheckResult is the outcome of a quota check, carrying everything the
// client needs to render "X/Y, resets in N days".
type CheckResult struct {
	Allowed  bool        `json:"allowed"`
	Current  uint32      `json:"current"`
	Limit    tiers.Limit `json:"limit"`
	ResetsAt time.Time   `json:"resets_at"`
}

// Err converts a denied check into the typed limit error for the named
// counter. Returns nil when the check passed.
func (r *CheckResult) Err(counter string) error {
	if r.Allowed {
		return nil
	}
	limit, _ := r.Limit.Value()
	return &api.LimitExceededError{
		Counter:  counter,
		Current:  r.Current,
		Limit:    limit,
		ResetsAt: r.ResetsAt,
	}
}

// Status is the API response for the usage endpoint: all three counters
// with their limits and the shared reset date.
type Status struct {
	Activities          CheckResult `json:"activities"`
	Generations         CheckResult `json:"generations"`
	FollowupGenerations CheckResult `json:"followup_generations"`
	Tier                tiers.Tier  `json:"tier"`
}
