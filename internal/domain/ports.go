package domain

import "context"

// BillingRepository defines the persistence contract for the
// reconciliation engine. "Latest" reads return the not-found sentinel
// for the record kind when the org has no rows.
type BillingRepository interface {
	// Pending orders.
	CreateOrder(ctx context.Context, order PendingOrder) error
	GetOrder(ctx context.Context, id string) (PendingOrder, error)
	SetOrderCheckoutRef(ctx context.Context, id, provider, checkoutRef string) error
	FindOpenOrderByCheckoutRef(ctx context.Context, provider, checkoutRef string) (PendingOrder, error)
	FindOpenOrderBySubscriptionRef(ctx context.Context, provider, subscriptionID string) (PendingOrder, error)
	ListOrdersByOrg(ctx context.Context, orgID string) ([]PendingOrder, error)

	// Read paths for the resolver.
	LatestSubscriptionByOrg(ctx context.Context, orgID string) (Subscription, error)
	LatestSnapshotByOrg(ctx context.Context, orgID string) (EntitlementSnapshot, error)
	LatestUsageByOrg(ctx context.Context, orgID string) (UsageCounters, error)

	// Usage ingestion (the external batch job's write path) and the
	// org listing the enforcement sweep iterates.
	RecordUsage(ctx context.Context, usage UsageCounters) error
	OrgIDsWithUsage(ctx context.Context) ([]string, error)

	// Idempotency fast path: the outcome previously recorded for an
	// event, or ErrEventNotLogged.
	EventOutcome(ctx context.Context, provider, eventID string) (EventOutcome, error)

	// ApplyReconciliation commits one event's writes atomically: the
	// subscription upsert, the optional snapshot append, the optional
	// order completion, then the event log entry, all or nothing.
	// Returns ErrDuplicateEvent when the log's uniqueness constraint
	// fires, which callers treat as ignored_duplicate.
	ApplyReconciliation(ctx context.Context, change ReconcileChange) error
}

// PaymentProvider is the boundary to one payment backend. Exactly two
// capabilities: starting a checkout session and turning a raw webhook
// delivery into a normalized billing event. Implementations are
// selected by configuration at startup.
type PaymentProvider interface {
	// CreateCheckoutSession obtains a hosted checkout session. The
	// params carry the pending-order id, which the provider must echo
	// back in later webhook metadata for correlation.
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (CheckoutSession, error)

	// VerifyAndParse authenticates a raw webhook body against its
	// signature and normalizes it. Returns ErrBadSignature for
	// absent/invalid signatures and *MalformedEventError for payloads
	// missing required fields.
	VerifyAndParse(payload []byte, signature string) (BillingEvent, error)
}

// CheckoutSessionParams is the input to a provider checkout session.
type CheckoutSessionParams struct {
	OrderID    string
	OrgID      string
	TenantID   string
	PlanCode   string
	Addons     AddonSelection
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is a provider-issued redirect handle.
type CheckoutSession struct {
	Provider   string
	SessionID  string
	SessionURL string
}

// OrderTransitionValidator guards pending-order lifecycle changes and
// classifies subscription status changes as ordinary or suspicious.
type OrderTransitionValidator interface {
	// ApplyOrder checks the event against the order lifecycle and
	// returns the destination status, or *OrderTransitionError.
	ApplyOrder(ctx context.Context, current OrderStatus, event OrderEvent) (OrderStatus, error)

	// OrdinarySubscriptionChange reports whether a provider status
	// change is in the expected lifecycle. Advisory only: unordinary
	// changes are logged, never rejected, because webhook delivery is
	// at-least-once and unordered.
	OrdinarySubscriptionChange(from, to SubscriptionStatus) bool
}

// EventPublisher emits post-commit entitlement refresh notifications.
// Best-effort: a publish failure never reverses a recorded outcome.
type EventPublisher interface {
	Publish(ctx context.Context, refresh EntitlementRefresh) error
}
