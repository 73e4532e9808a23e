package domain

import "time"

// OrderStatus is the lifecycle state of a pending order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
)

// OrderEvent represents an action that triggers an order state change.
type OrderEvent string

const (
	// EventOrderFulfilled fires when a billing event resolves the
	// order. Completion is terminal: no event leads back to pending.
	EventOrderFulfilled OrderEvent = "order_fulfilled"
)

// OrderTransition defines a valid order state change.
type OrderTransition struct {
	Event OrderEvent
	Src   OrderStatus
	Dst   OrderStatus
}

// OrderTransitions defines all valid order state changes. This is
// domain knowledge consumed by the FSM adapter.
var OrderTransitions = []OrderTransition{
	{Event: EventOrderFulfilled, Src: OrderPending, Dst: OrderCompleted},
}

// PendingOrder is a checkout intent awaiting a payment-provider webhook
// to confirm it. ProjectedCaps are the preview at checkout time; they
// become authoritative only when copied into an entitlement snapshot by
// the reconciler. Created at checkout, completed at most once.
type PendingOrder struct {
	ID                     string
	OrgID                  string
	TenantID               string
	PlanCode               string
	ProjectedCaps          Caps
	Provider               string
	CheckoutRef            string // provider session handle, empty until the provider responds
	ProviderSubscriptionID string // stamped when the order completes
	Status                 OrderStatus
	Warnings               []string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// NewPendingOrder creates an order in the initial "pending" state,
// carrying the effective caps and warnings from a checkout preview.
func NewPendingOrder(id, orgID, tenantID string, preview Preview) PendingOrder {
	now := time.Now().UTC()
	return PendingOrder{
		ID:            id,
		OrgID:         orgID,
		TenantID:      tenantID,
		PlanCode:      preview.PlanCode,
		ProjectedCaps: preview.Effective,
		Status:        OrderPending,
		Warnings:      preview.Warnings,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
