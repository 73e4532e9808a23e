package fakepay_test

import (
	"context"
	"errors"
	"testing"

	"github.com/neomorfeo/billiq/internal/adapter/fakepay"
	"github.com/neomorfeo/billiq/internal/domain"
)

func TestCreateCheckoutSession_Deterministic(t *testing.T) {
	p := fakepay.New("")

	session, err := p.CreateCheckoutSession(context.Background(), domain.CheckoutSessionParams{
		OrderID: "ord-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if session.Provider != fakepay.ProviderName {
		t.Errorf("Provider = %q, want fakepay", session.Provider)
	}
	if session.SessionID != "fakepay_cs_ord-1" {
		t.Errorf("SessionID = %q, want fakepay_cs_ord-1", session.SessionID)
	}
	if session.SessionURL == "" {
		t.Error("SessionURL should not be empty")
	}
}

func TestVerifyAndParse_RejectsBadSignature(t *testing.T) {
	p := fakepay.New("secret")

	for _, sig := range []string{"", "wrong", fakepay.DefaultSignature} {
		_, err := p.VerifyAndParse([]byte(`{"id":"evt-1","type":"subscription.created","subscription_id":"sub-1"}`), sig)
		if !errors.Is(err, domain.ErrBadSignature) {
			t.Errorf("signature %q: expected ErrBadSignature, got %v", sig, err)
		}
	}
}

func TestVerifyAndParse_NormalizesEvent(t *testing.T) {
	p := fakepay.New("")

	payload := []byte(`{
		"id": "evt-1",
		"type": "subscription.created",
		"org_id": "org-1",
		"tenant_id": "tenant-1",
		"subscription_id": "sub-1",
		"pending_order_id": "ord-1",
		"plan_code": "STARTER_MONTHLY",
		"status": "active",
		"period_start": 1767225600,
		"period_end": 1769904000
	}`)

	event, err := p.VerifyAndParse(payload, fakepay.DefaultSignature)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if event.Kind != domain.KindSubscriptionCreated {
		t.Errorf("Kind = %q, want subscription.created", event.Kind)
	}
	if event.Provider != fakepay.ProviderName {
		t.Errorf("Provider = %q, want fakepay", event.Provider)
	}
	if event.EventID != "evt-1" {
		t.Errorf("EventID = %q, want evt-1", event.EventID)
	}
	if event.SubscriptionID != "sub-1" {
		t.Errorf("SubscriptionID = %q, want sub-1", event.SubscriptionID)
	}
	if event.PendingOrderID != "ord-1" {
		t.Errorf("PendingOrderID = %q, want ord-1", event.PendingOrderID)
	}
	if event.Status != domain.SubscriptionActive {
		t.Errorf("Status = %q, want active", event.Status)
	}
	if event.PeriodStart == nil || event.PeriodStart.Unix() != 1767225600 {
		t.Errorf("PeriodStart = %v, want unix 1767225600", event.PeriodStart)
	}
}

func TestVerifyAndParse_EventKinds(t *testing.T) {
	p := fakepay.New("")

	cases := []struct {
		rawType string
		want    domain.EventKind
	}{
		{"subscription.created", domain.KindSubscriptionCreated},
		{"subscription.updated", domain.KindSubscriptionUpdated},
		{"subscription.canceled", domain.KindSubscriptionCanceled},
		{"invoice.paid", domain.KindInvoicePaid},
	}

	for _, tc := range cases {
		payload := []byte(`{"id":"evt-1","type":"` + tc.rawType + `","subscription_id":"sub-1"}`)
		event, err := p.VerifyAndParse(payload, fakepay.DefaultSignature)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.rawType, err)
			continue
		}
		if event.Kind != tc.want {
			t.Errorf("%s: Kind = %q, want %q", tc.rawType, event.Kind, tc.want)
		}
	}
}

func TestVerifyAndParse_UnknownType(t *testing.T) {
	p := fakepay.New("")

	event, err := p.VerifyAndParse(
		[]byte(`{"id":"evt-1","type":"charge.disputed"}`), fakepay.DefaultSignature)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if event.Kind != domain.KindUnknown {
		t.Errorf("Kind = %q, want unknown", event.Kind)
	}
	if event.RawKind != "charge.disputed" {
		t.Errorf("RawKind = %q, want charge.disputed", event.RawKind)
	}
}

func TestVerifyAndParse_Malformed(t *testing.T) {
	p := fakepay.New("")

	cases := []struct {
		name      string
		payload   string
		wantField string
	}{
		{"not json", `not-json`, "body"},
		{"missing id", `{"type":"subscription.created","subscription_id":"sub-1"}`, "id"},
		{"missing subscription id", `{"id":"evt-1","type":"subscription.updated"}`, "subscription_id"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.VerifyAndParse([]byte(tc.payload), fakepay.DefaultSignature)
			var malformed *domain.MalformedEventError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedEventError, got %v", err)
			}
			if malformed.Field != tc.wantField {
				t.Errorf("Field = %q, want %q", malformed.Field, tc.wantField)
			}
		})
	}
}

func TestVerifyAndParse_InlineEntitlements(t *testing.T) {
	p := fakepay.New("")

	payload := []byte(`{
		"id": "evt-1",
		"type": "subscription.updated",
		"org_id": "org-1",
		"subscription_id": "sub-1",
		"entitlements": {"active_users": 80, "seats": 8, "storage_mb": 8192, "sites": 2}
	}`)

	event, err := p.VerifyAndParse(payload, fakepay.DefaultSignature)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	caps, ok := event.InlineCaps()
	if !ok {
		t.Fatal("expected a complete inline caps set")
	}
	if caps.ActiveUsers == nil || *caps.ActiveUsers != 80 {
		t.Errorf("ActiveUsers = %v, want 80", caps.ActiveUsers)
	}
	if caps.StorageMB == nil || *caps.StorageMB != 8192 {
		t.Errorf("StorageMB = %v, want 8192", caps.StorageMB)
	}
}

func TestVerifyAndParse_PartialInlineEntitlements(t *testing.T) {
	p := fakepay.New("")

	payload := []byte(`{
		"id": "evt-1",
		"type": "subscription.updated",
		"subscription_id": "sub-1",
		"entitlements": {"active_users": 80}
	}`)

	event, err := p.VerifyAndParse(payload, fakepay.DefaultSignature)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := event.InlineCaps(); ok {
		t.Error("partial entitlements should not produce inline caps")
	}
}
