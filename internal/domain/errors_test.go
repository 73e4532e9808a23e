package domain_test

import (
	"testing"

	"github.com/neomorfeo/billiq/internal/domain"
)

func TestMalformedEventError_Error(t *testing.T) {
	err := &domain.MalformedEventError{Provider: "fakepay", Field: "subscription_id"}
	want := "malformed fakepay event: missing subscription_id"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestOrderTransitionError_Error(t *testing.T) {
	err := &domain.OrderTransitionError{
		Event:   domain.EventOrderFulfilled,
		Current: domain.OrderCompleted,
	}
	want := `order event "order_fulfilled" is not valid from state "completed"`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestHardCapExceededError_Error(t *testing.T) {
	err := &domain.HardCapExceededError{OrgID: "org-1", ActiveUsers: 130, Cap: 100}
	want := "org org-1 exceeds hard active-user cap: 130 of 100"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
