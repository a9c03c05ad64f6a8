package policy

import (
	"github.com/iota-uz/accessdesk/modules/access/domain/directory"
	"github.com/iota-uz/accessdesk/modules/access/domain/resource"
)

// Tier is a UI-facing signal derived from role and requested level. It
// never feeds back into the evaluator's decision.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Confidence is a pure function of (role, requested level): read-tier
// requests are high, the lowest-privilege role asking for admin is low,
// everything else is medium.
func Confidence(role directory.Role, level resource.Level) Tier {
	if role == directory.RoleEmployee && level == resource.LevelAdmin {
		return TierLow
	}
	if level.ReadTier() {
		return TierHigh
	}
	return TierMedium
}
