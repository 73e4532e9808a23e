// Package fakepay is a stub payment provider for environments without a
// real payment backend. It issues deterministic checkout sessions and
// accepts webhook payloads that are already in normalized form, guarded
// by a fixed shared-secret signature. Behaviourally it matches the real
// providers: bad signatures are rejected, payloads are validated, and
// unrecognized kinds come back as unknown events.
package fakepay

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"time"

	"github.com/neomorfeo/billiq/internal/domain"
)

// ProviderName tags records written from fakepay data.
const ProviderName = "fakepay"

// DefaultSignature is the out-of-the-box webhook signature for local
// development. Override it per environment.
const DefaultSignature = "fakepay-test-signature"

// Provider implements domain.PaymentProvider without any backend.
type Provider struct {
	signature string
}

// Compile-time check: Provider implements the port.
var _ domain.PaymentProvider = (*Provider)(nil)

// New creates a fakepay provider accepting the given webhook signature.
// An empty signature selects DefaultSignature.
func New(signature string) *Provider {
	if signature == "" {
		signature = DefaultSignature
	}
	return &Provider{signature: signature}
}

// CreateCheckoutSession returns a deterministic session derived from
// the order id. The session URL points nowhere; tests and local tools
// drive fulfilment by posting webhook payloads directly.
func (p *Provider) CreateCheckoutSession(_ context.Context, params domain.CheckoutSessionParams) (domain.CheckoutSession, error) {
	return domain.CheckoutSession{
		Provider:   ProviderName,
		SessionID:  "fakepay_cs_" + params.OrderID,
		SessionURL: "https://checkout.fakepay.invalid/session/" + params.OrderID,
	}, nil
}

// webhookPayload is the fakepay wire format: the normalized event,
// spelled out.
type webhookPayload struct {
	ID                string          `json:"id"`
	Type              string          `json:"type"`
	OrgID             string          `json:"org_id"`
	TenantID          string          `json:"tenant_id"`
	SubscriptionID    string          `json:"subscription_id"`
	PendingOrderID    string          `json:"pending_order_id"`
	CheckoutRef       string          `json:"checkout_ref"`
	PlanCode          string          `json:"plan_code"`
	Status            string          `json:"status"`
	CancelAtPeriodEnd bool            `json:"cancel_at_period_end"`
	PeriodStart       *int64          `json:"period_start"`
	PeriodEnd         *int64          `json:"period_end"`
	Entitlements      *inlineCapsBody `json:"entitlements"`
}

type inlineCapsBody struct {
	ActiveUsers *int64 `json:"active_users"`
	Seats       *int64 `json:"seats"`
	StorageMB   *int64 `json:"storage_mb"`
	Sites       *int64 `json:"sites"`
}

// VerifyAndParse accepts the configured test signature and parses the
// normalized payload.
func (p *Provider) VerifyAndParse(payload []byte, signature string) (domain.BillingEvent, error) {
	if subtle.ConstantTimeCompare([]byte(signature), []byte(p.signature)) != 1 {
		return domain.BillingEvent{}, domain.ErrBadSignature
	}

	var body webhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return domain.BillingEvent{}, &domain.MalformedEventError{Provider: ProviderName, Field: "body"}
	}
	if body.ID == "" {
		return domain.BillingEvent{}, &domain.MalformedEventError{Provider: ProviderName, Field: "id"}
	}

	event := domain.BillingEvent{
		Provider:          ProviderName,
		EventID:           body.ID,
		RawKind:           body.Type,
		OrgID:             body.OrgID,
		TenantID:          body.TenantID,
		SubscriptionID:    body.SubscriptionID,
		PendingOrderID:    body.PendingOrderID,
		CheckoutRef:       body.CheckoutRef,
		PlanCode:          body.PlanCode,
		Status:            domain.SubscriptionStatus(body.Status),
		CancelAtPeriodEnd: body.CancelAtPeriodEnd,
		PeriodStart:       unixTime(body.PeriodStart),
		PeriodEnd:         unixTime(body.PeriodEnd),
	}

	switch body.Type {
	case "subscription.created":
		event.Kind = domain.KindSubscriptionCreated
	case "subscription.updated":
		event.Kind = domain.KindSubscriptionUpdated
	case "subscription.canceled":
		event.Kind = domain.KindSubscriptionCanceled
	case "invoice.paid":
		event.Kind = domain.KindInvoicePaid
	default:
		event.Kind = domain.KindUnknown
		return event, nil
	}

	if event.SubscriptionID == "" {
		return domain.BillingEvent{}, &domain.MalformedEventError{Provider: ProviderName, Field: "subscription_id"}
	}

	if caps := body.Entitlements; caps != nil {
		event.InlineActiveUsers = caps.ActiveUsers
		event.InlineSeats = caps.Seats
		event.InlineStorageMB = caps.StorageMB
		event.InlineSites = caps.Sites
	}

	return event, nil
}

func unixTime(ts *int64) *time.Time {
	if ts == nil {
		return nil
	}
	t := time.Unix(*ts, 0).UTC()
	return &t
}
