package domain

import "time"

// EventKind is the closed set of normalized billing event kinds. Every
// provider adapter maps its own event types onto these; anything it
// cannot map becomes KindUnknown, which is recorded and ignored rather
// than rejected.
type EventKind string

const (
	KindSubscriptionCreated  EventKind = "subscription.created"
	KindSubscriptionUpdated  EventKind = "subscription.updated"
	KindSubscriptionCanceled EventKind = "subscription.canceled"
	KindInvoicePaid          EventKind = "invoice.paid"
	KindUnknown              EventKind = "unknown"
)

// BillingEvent is a provider webhook payload normalized into the shape
// the reconciler understands. It is ephemeral: only its (provider,
// event id) identity and outcome are persisted, in the event log.
type BillingEvent struct {
	Provider string
	EventID  string
	Kind     EventKind
	// RawKind preserves the provider's own event type for unknown
	// kinds, so the log stays useful for operators.
	RawKind string

	OrgID          string
	TenantID       string
	SubscriptionID string

	// Correlation back to a pending order, in resolution order:
	// explicit order id, then the checkout session handle.
	PendingOrderID string
	CheckoutRef    string

	PlanCode          string
	Status            SubscriptionStatus
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	CancelAtPeriodEnd bool

	// Inline entitlement values some providers attach to events. Only
	// used when no pending order matches, and only when all four of
	// active users, seats, storage, and sites are present; partial
	// inline data is discarded rather than guessed at.
	InlineActiveUsers *int64
	InlineSeats       *int64
	InlineStorageMB   *int64
	InlineSites       *int64
}

// InlineCaps returns the caps carried inline on the event, or ok=false
// when any of the four required fields is missing.
func (e BillingEvent) InlineCaps() (Caps, bool) {
	if e.InlineActiveUsers == nil || e.InlineSeats == nil || e.InlineStorageMB == nil || e.InlineSites == nil {
		return Caps{}, false
	}
	return Caps{
		ActiveUsers: e.InlineActiveUsers,
		Seats:       e.InlineSeats,
		StorageMB:   e.InlineStorageMB,
		Sites:       e.InlineSites,
	}, true
}

// EventOutcome is what happened to an event the first time it was seen.
type EventOutcome string

const (
	OutcomeApplied        EventOutcome = "applied"
	OutcomeIgnoredUnknown EventOutcome = "ignored_unknown"
)

// EventLogEntry records every (provider, event id) ever processed,
// whether applied or ignored. Its uniqueness constraint in storage is
// the authoritative idempotency guarantee; the application-level check
// is only a fast path.
type EventLogEntry struct {
	Provider   string
	EventID    string
	Kind       EventKind
	Outcome    EventOutcome
	OrgID      string
	ReceivedAt time.Time
}

// ReconcileStatus is the caller-visible result of handling an event.
type ReconcileStatus string

const (
	ReconcileOK               ReconcileStatus = "ok"
	ReconcileIgnoredDuplicate ReconcileStatus = "ignored_duplicate"
	ReconcileIgnoredUnknown   ReconcileStatus = "ignored_unknown"
)

// ReconcileResult reports how an event was handled.
type ReconcileResult struct {
	EventID string
	Status  ReconcileStatus
}

// ReconcileChange is the set of writes one billing event produces. The
// storage adapter commits it atomically, with the log entry written
// last inside the same transaction, so a crash can never leave the
// mutation applied but unrecorded (or vice versa).
type ReconcileChange struct {
	// Subscription to upsert by (provider, provider subscription id).
	// Nil for ignored-unknown events.
	Subscription *Subscription

	// Snapshot to append, if this event produces one.
	Snapshot *EntitlementSnapshot

	// CompleteOrderID marks a pending order completed and stamps the
	// provider subscription id onto it. Empty when no order matched.
	CompleteOrderID        string
	ProviderSubscriptionID string

	// Log is always present and is the last write of the transaction.
	Log EventLogEntry
}

// EntitlementRefresh describes a committed reconciliation, published
// best-effort for downstream consumers (resolver warming, operator
// notification). Publishing failures never reverse the outcome.
type EntitlementRefresh struct {
	OrgID    string
	Provider string
	EventID  string
	PlanCode string
	Source   SnapshotSource
}
