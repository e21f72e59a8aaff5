package license

import (
	"time"

	"github.com/google/uuid"
)

// PlanTier identifies a pricing plan.
type PlanTier string

const (
	TierFree  PlanTier = "free"
	TierIndie PlanTier = "indie"
	TierPro   PlanTier = "pro"
	TierTeam  PlanTier = "team"
)

// Valid reports whether t is a known tier.
func (t PlanTier) Valid() bool {
	switch t {
	case TierFree, TierIndie, TierPro, TierTeam:
		return true
	}
	return false
}

// monthlyQuotas is the fixed per-tier monthly AI quota table.
var monthlyQuotas = map[PlanTier]int{
	TierFree:  5,
	TierIndie: 100,
	TierPro:   1000,
	TierTeam:  5000,
}

// MonthlyQuota returns the monthly AI quota for a tier. Unknown tiers get the
// free quota.
func MonthlyQuota(tier PlanTier) int {
	if q, ok := monthlyQuotas[tier]; ok {
		return q
	}
	return monthlyQuotas[TierFree]
}

// Capability is a feature tag gated by plan tier.
type Capability string

const (
	CapNudgeEscalation Capability = "nudge_escalation"
	CapAISuggestions   Capability = "ai_suggestions"
)

// PlanCapabilities is the set of capabilities enabled for a plan, resolved
// once per request or tick and consulted explicitly by callers.
type PlanCapabilities map[Capability]bool

// Has reports whether the capability is enabled.
func (c PlanCapabilities) Has(cap Capability) bool {
	return c[cap]
}

// CapabilitiesFor is the pure tier-to-capabilities lookup. Every paid tier
// unlocks nudge escalation; AI suggestions exist on all tiers (the free tier
// is bounded by its quota, not by the capability).
func CapabilitiesFor(tier PlanTier) PlanCapabilities {
	caps := PlanCapabilities{CapAISuggestions: true}
	if tier != TierFree {
		caps[CapNudgeEscalation] = true
	}
	return caps
}

// User matches the license_users table schema.
type User struct {
	ID        uuid.UUID  `json:"id"`
	Token     string     `json:"token"`
	Email     string     `json:"email,omitempty"`
	PlanTier  PlanTier   `json:"plan_tier"`
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// File is the on-disk license format used by the client daemon
// (~/.remind/license.json).
type File struct {
	Token     string    `json:"token"`
	PlanTier  PlanTier  `json:"plan_tier"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
