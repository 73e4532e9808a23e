package domain

import "time"

// SubscriptionStatus mirrors the payment provider's subscription
// lifecycle states.
type SubscriptionStatus string

const (
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionPastDue    SubscriptionStatus = "past_due"
	SubscriptionCanceled   SubscriptionStatus = "canceled"
	SubscriptionTrialing   SubscriptionStatus = "trialing"
	SubscriptionIncomplete SubscriptionStatus = "incomplete"
)

// knownSubscriptionStatuses guards against persisting provider states
// this engine does not model.
var knownSubscriptionStatuses = map[SubscriptionStatus]bool{
	SubscriptionActive:     true,
	SubscriptionPastDue:    true,
	SubscriptionCanceled:   true,
	SubscriptionTrialing:   true,
	SubscriptionIncomplete: true,
}

// KnownSubscriptionStatus reports whether s is a modelled status.
func KnownSubscriptionStatus(s SubscriptionStatus) bool {
	return knownSubscriptionStatuses[s]
}

// SubscriptionTransition defines a provider status change this engine
// considers ordinary. The table is advisory: webhooks are delivered
// at-least-once and out of order, so unusual transitions are applied
// anyway and only logged.
type SubscriptionTransition struct {
	Src SubscriptionStatus
	Dst SubscriptionStatus
}

// SubscriptionTransitions lists the ordinary provider status changes.
var SubscriptionTransitions = []SubscriptionTransition{
	{Src: SubscriptionIncomplete, Dst: SubscriptionActive},
	{Src: SubscriptionIncomplete, Dst: SubscriptionCanceled},
	{Src: SubscriptionTrialing, Dst: SubscriptionActive},
	{Src: SubscriptionTrialing, Dst: SubscriptionCanceled},
	{Src: SubscriptionActive, Dst: SubscriptionPastDue},
	{Src: SubscriptionActive, Dst: SubscriptionCanceled},
	{Src: SubscriptionPastDue, Dst: SubscriptionActive},
	{Src: SubscriptionPastDue, Dst: SubscriptionCanceled},
}

// Subscription is the local view of one provider-side subscription.
// There is exactly one row per (provider, provider subscription id);
// every billing event creates or updates that row, never a duplicate.
type Subscription struct {
	ID                     string
	Provider               string
	ProviderSubscriptionID string
	OrgID                  string
	PlanCode               string
	Status                 SubscriptionStatus
	CurrentPeriodStart     *time.Time
	CurrentPeriodEnd       *time.Time
	CancelAtPeriodEnd      bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
