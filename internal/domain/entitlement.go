package domain

import "time"

// SnapshotSource identifies where an entitlement snapshot's caps came
// from, and doubles as the source tag on resolved entitlements.
type SnapshotSource string

const (
	SourcePendingOrder  SnapshotSource = "pending_order"
	SourceWebhook       SnapshotSource = "webhook"
	SourceSnapshot      SnapshotSource = "snapshot"
	SourcePlanCatalogue SnapshotSource = "plan_catalogue"
	SourceFallback      SnapshotSource = "fallback"
)

// EntitlementSnapshot is an immutable, point-in-time record of what an
// org is allowed to use. Snapshots are append-only: new facts produce
// new rows, and the newest row wins when resolving. A nil cap field on
// a snapshot means "no cap from this source" and deliberately does NOT
// fall back to the plan catalogue; this is what lets a bespoke
// enterprise grant override a generic plan.
type EntitlementSnapshot struct {
	ID        string
	OrgID     string
	Caps      Caps
	Source    SnapshotSource
	Flags     map[string]string
	CreatedAt time.Time
}

// ResolvedEntitlements is the read-path answer to "what is this org
// entitled to use right now".
type ResolvedEntitlements struct {
	OrgID              string
	Caps               Caps
	Source             SnapshotSource
	PlanCode           string
	SubscriptionStatus SubscriptionStatus
	Usage              *UsageCounters
}

// ResolveEntitlements layers the three entitlement sources. Precedence
// per the product contract: if any snapshot exists it wins outright,
// even for fields it leaves nil; only with no snapshot at all does the
// catalogue (keyed by the subscription's plan code) supply defaults;
// with neither, all caps are nil and the source is "fallback".
//
// Pure: the caller supplies the newest subscription, snapshot, and
// usage rows (nil when none exist).
func ResolveEntitlements(orgID string, sub *Subscription, snap *EntitlementSnapshot, usage *UsageCounters) ResolvedEntitlements {
	resolved := ResolvedEntitlements{
		OrgID:  orgID,
		Source: SourceFallback,
		Usage:  usage,
	}

	if sub != nil {
		resolved.PlanCode = sub.PlanCode
		resolved.SubscriptionStatus = sub.Status
	}

	if snap != nil {
		resolved.Caps = snap.Caps
		resolved.Source = snap.Source
		return resolved
	}

	if sub != nil {
		if def, ok := LookupPlan(sub.PlanCode); ok {
			resolved.Caps = def.Caps
			resolved.Source = SourcePlanCatalogue
			return resolved
		}
	}

	return resolved
}
