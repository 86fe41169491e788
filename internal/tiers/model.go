package tiers

import (
	"encoding/json"
	"fmt"
	"time"
)

// Tier is a user's subscription level.
type Tier string

const (
	TierFree  Tier = "FREE"
	TierPlus  Tier = "PLUS"
	TierAdmin Tier = "ADMIN"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPlus, TierAdmin:
		return true
	}
	return false
}

// AboveFree reports whether the tier is entitled to paid-tier features such
// as the shared key pool.
func (t Tier) AboveFree() bool {
	return t == TierPlus || t == TierAdmin
}

// ParseTier normalizes and validates a tier string.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

// Limit is a quota bound that is either unlimited or a concrete count.
// The database stores limits as integers where 0 means unlimited; that
// convention is confined to the storage edge so a zero-valued Limit in
// the domain is "zero allowed", not accidentally unlimited.
type Limit struct {
	n         uint32
	unlimited bool
}

// Unlimited returns a Limit that allows any count.
func Unlimited() Limit {
	return Limit{unlimited: true}
}

// LimitOf returns a Limit of exactly n. LimitOf(0) allows nothing.
func LimitOf(n uint32) Limit {
	return Limit{n: n}
}

// Allows reports whether one more action is permitted at the given used count.
func (l Limit) Allows(used uint32) bool {
	return l.unlimited || used < l.n
}

// IsUnlimited reports whether the limit is unbounded.
func (l Limit) IsUnlimited() bool {
	return l.unlimited
}

// Value returns the concrete bound and false when unlimited.
func (l Limit) Value() (uint32, bool) {
	if l.unlimited {
		return 0, false
	}
	return l.n, true
}

// Stored returns the database representation (0 = unlimited).
func (l Limit) Stored() int32 {
	if l.unlimited {
		return 0
	}
	return int32(l.n)
}

// LimitFromStored converts the database representation (0 = unlimited).
func LimitFromStored(v int32) Limit {
	if v <= 0 {
		return Unlimited()
	}
	return LimitOf(uint32(v))
}

// MarshalJSON keeps the 0-as-unlimited wire convention for API clients.
func (l Limit) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Stored())
}

// UnmarshalJSON parses the 0-as-unlimited wire convention.
func (l *Limit) UnmarshalJSON(data []byte) error {
	var v int32
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*l = LimitFromStored(v)
	return nil
}

func (l Limit) String() string {
	if l.unlimited {
		return "unlimited"
	}
	return fmt.Sprintf("%d", l.n)
}

// Policy holds the quota configuration for one tier.
type Policy struct {
	Tier                     Tier      `json:"tier"`
	MaxActivities            Limit     `json:"max_activities"`
	MaxGenerations           Limit     `json:"max_generations"`
	MaxFollowupGenerations   Limit     `json:"max_followup_generations"`
	IncludeFollowupsInCount  bool      `json:"include_followups_in_activity_count"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// ConservativeDefault is the fallback applied when a tier policy row is
// missing for a non-admin user. Deliberately tight: a configuration gap
// must not hand out unlimited usage.
func ConservativeDefault(tier Tier) Policy {
	return Policy{
		Tier:                    tier,
		MaxActivities:           LimitOf(5),
		MaxGenerations:          LimitOf(5),
		MaxFollowupGenerations:  LimitOf(5),
		IncludeFollowupsInCount: true,
	}
}

// UpsertPolicyRequest is the admin API payload for writing a tier policy.
type UpsertPolicyRequest struct {
	MaxActivities           int32 `json:"max_activities" validate:"min=0"`
	MaxGenerations          int32 `json:"max_generations" validate:"min=0"`
	MaxFollowupGenerations  int32 `json:"max_followup_generations" validate:"min=0"`
	IncludeFollowupsInCount bool  `json:"include_followups_in_activity_count"`
}
