package extract

import "bugbot/internal/types"

// ConsistencyPolicy decides what to do when an extraction claims a bug
// is solved while also reporting an unresolved status (open, in
// progress, testing). Those two statements contradict each other.
type ConsistencyPolicy int

const (
	// PolicyOff accepts the contradiction as-is.
	PolicyOff ConsistencyPolicy = iota
	// PolicyForceUnsolved trusts the status and clears solved.
	PolicyForceUnsolved
	// PolicyUpgradeStatus trusts solved and bumps status to resolved.
	PolicyUpgradeStatus
	// PolicyClarify drops both conflicting fields so the orchestrator
	// asks again. This is the default.
	PolicyClarify
)

// ParsePolicy maps a config string to a policy. Unknown values fall
// back to clarify.
func ParsePolicy(s string) ConsistencyPolicy {
	switch s {
	case "off":
		return PolicyOff
	case "force_unsolved":
		return PolicyForceUnsolved
	case "upgrade_status":
		return PolicyUpgradeStatus
	default:
		return PolicyClarify
	}
}

func (p ConsistencyPolicy) String() string {
	switch p {
	case PolicyOff:
		return "off"
	case PolicyForceUnsolved:
		return "force_unsolved"
	case PolicyUpgradeStatus:
		return "upgrade_status"
	default:
		return "clarify"
	}
}

// Apply reconciles a solved=true claim against an unresolved status.
// Consistent extractions pass through untouched.
func (p ConsistencyPolicy) Apply(info *ExtractedInfo) *ExtractedInfo {
	if info == nil || info.Solved == nil || !*info.Solved {
		return info
	}
	if info.Status == nil || !info.Status.Unresolved() {
		return info
	}

	switch p {
	case PolicyForceUnsolved:
		solved := false
		info.Solved = &solved
	case PolicyUpgradeStatus:
		status := types.StatusResolved
		info.Status = &status
	case PolicyClarify:
		info.Status = nil
		info.Solved = nil
	}
	return info
}
