package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrOrderNotFound        = errors.New("pending order not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrSnapshotNotFound     = errors.New("entitlement snapshot not found")
	ErrUsageNotFound        = errors.New("usage counters not found")
	ErrEventNotLogged       = errors.New("event not in log")

	// ErrDuplicateEvent means the (provider, event id) pair was already
	// recorded. Not a failure: the caller reports ignored_duplicate.
	ErrDuplicateEvent = errors.New("billing event already processed")

	// ErrBadSignature means the webhook signature was absent or did not
	// verify. The delivery is rejected so the provider retries.
	ErrBadSignature = errors.New("webhook signature verification failed")
)

// MalformedEventError is returned when a verified webhook payload is
// missing a field the reconciler requires.
type MalformedEventError struct {
	Provider string
	Field    string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed %s event: missing %s", e.Provider, e.Field)
}

// OrderTransitionError is returned when an order state change is not
// allowed, e.g. completing an already-completed order.
type OrderTransitionError struct {
	Event   OrderEvent
	Current OrderStatus
}

func (e *OrderTransitionError) Error() string {
	return fmt.Sprintf("order event %q is not valid from state %q", e.Event, e.Current)
}

// HardCapExceededError is the policy error surfaced to calling features
// when an org is at or beyond the hard enforcement threshold. It
// carries the org for operator visibility.
type HardCapExceededError struct {
	OrgID       string
	ActiveUsers int64
	Cap         int64
}

func (e *HardCapExceededError) Error() string {
	return fmt.Sprintf("org %s exceeds hard active-user cap: %d of %d", e.OrgID, e.ActiveUsers, e.Cap)
}
