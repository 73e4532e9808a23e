package domain

import "time"

// UsageCounters is one append-only measurement of an org's consumption,
// recomputed periodically by an external batch job. The reconciliation
// engine only ever reads the newest row per org.
type UsageCounters struct {
	ID                string
	OrgID             string
	ActiveUsers30d    int64 // distinct staff/volunteers active in a trailing 30-day window
	StorageMB         int64
	MessagesThisMonth int64
	CalculatedAt      time.Time
}

// EnforcementTier classifies an org's usage against its caps.
type EnforcementTier string

const (
	TierOK      EnforcementTier = "ok"
	TierSoftCap EnforcementTier = "soft_cap"
	TierGrace   EnforcementTier = "grace"
	TierHardCap EnforcementTier = "hard_cap"
)

// Reasons attached to EnforcementResult for operator visibility.
const (
	ReasonNoCap       = "no_cap"
	ReasonNoUsageData = "no_usage_data"
	ReasonWithinCap   = "within_cap"
	ReasonOverCap     = "over_cap"
)

// EnforcementPolicy holds the usage/cap ratio thresholds and the grace
// window. Startup configuration, not compile-time constants.
type EnforcementPolicy struct {
	SoftRatio   float64
	GraceRatio  float64
	HardRatio   float64
	GracePeriod time.Duration
}

// DefaultEnforcementPolicy returns the stock thresholds: soft at 100%,
// grace at 110%, hard block at 120%, with a 14-day grace window.
func DefaultEnforcementPolicy() EnforcementPolicy {
	return EnforcementPolicy{
		SoftRatio:   1.0,
		GraceRatio:  1.1,
		HardRatio:   1.2,
		GracePeriod: 14 * 24 * time.Hour,
	}
}

// EnforcementResult is the outcome of evaluating an org's active-user
// usage against its resolved cap. Only TierHardCap is blocking; the
// other tiers are advisory.
type EnforcementResult struct {
	OrgID       string
	Tier        EnforcementTier
	Reason      string
	ActiveUsers int64
	Cap         *int64
	Ratio       float64
	GraceUntil  *time.Time
}

// EvaluateEnforcement classifies resolved entitlements into an
// enforcement tier. Pure. A missing or non-positive cap never
// enforces; a missing usage row means the org has no recorded
// consumption and the grace deadline stays nil.
func EvaluateEnforcement(res ResolvedEntitlements, policy EnforcementPolicy) EnforcementResult {
	result := EnforcementResult{
		OrgID: res.OrgID,
		Tier:  TierOK,
		Cap:   res.Caps.ActiveUsers,
	}

	if res.Caps.ActiveUsers == nil || *res.Caps.ActiveUsers <= 0 {
		result.Reason = ReasonNoCap
		return result
	}

	if res.Usage == nil {
		result.Reason = ReasonNoUsageData
		return result
	}

	cap := *res.Caps.ActiveUsers
	result.ActiveUsers = res.Usage.ActiveUsers30d
	result.Ratio = float64(res.Usage.ActiveUsers30d) / float64(cap)

	switch {
	case result.Ratio < policy.SoftRatio:
		result.Reason = ReasonWithinCap
	case result.Ratio < policy.GraceRatio:
		result.Tier = TierSoftCap
		result.Reason = ReasonOverCap
	case result.Ratio < policy.HardRatio:
		result.Tier = TierGrace
		result.Reason = ReasonOverCap
		deadline := res.Usage.CalculatedAt.Add(policy.GracePeriod)
		result.GraceUntil = &deadline
	default:
		result.Tier = TierHardCap
		result.Reason = ReasonOverCap
	}

	return result
}
