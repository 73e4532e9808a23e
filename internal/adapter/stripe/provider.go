// Package stripe implements the payment provider boundary against the
// Stripe API: hosted Checkout Sessions on the way out, signed webhook
// events on the way in.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	stripego "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/neomorfeo/billiq/internal/domain"
)

// ProviderName tags subscriptions, orders, and event-log rows written
// from Stripe data.
const ProviderName = "stripe"

// Metadata keys echoed back by Stripe in webhook payloads. The
// pending-order id is the primary correlation between a checkout intent
// and the events that fulfil it.
const (
	metadataOrderIDKey  = "pending_order_id"
	metadataOrgIDKey    = "org_id"
	metadataTenantIDKey = "tenant_id"
	metadataPlanCodeKey = "plan_code"
)

// PriceTable maps plan codes and add-on products to Stripe price ids.
// Populated from configuration at startup.
type PriceTable struct {
	Plans         map[string]string
	AV30Block     string
	StorageBlock  string
	ExtraSite     string
	MessagingPack string
}

// Config holds the Stripe credentials and price mapping.
type Config struct {
	APIKey        string
	WebhookSecret string
	Prices        PriceTable
}

// Provider implements domain.PaymentProvider against Stripe.
type Provider struct {
	api           *client.API
	webhookSecret string
	prices        PriceTable
}

// Compile-time check: Provider implements the port.
var _ domain.PaymentProvider = (*Provider)(nil)

// New creates a Stripe-backed payment provider.
func New(cfg Config) *Provider {
	api := &client.API{}
	api.Init(cfg.APIKey, nil)
	return &Provider{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		prices:        cfg.Prices,
	}
}

// CreateCheckoutSession starts a hosted subscription checkout. The
// pending-order id travels both on the session and on the subscription
// it creates, so every later webhook can be correlated back.
func (p *Provider) CreateCheckoutSession(ctx context.Context, params domain.CheckoutSessionParams) (domain.CheckoutSession, error) {
	priceID, ok := p.prices.Plans[params.PlanCode]
	if !ok {
		return domain.CheckoutSession{}, fmt.Errorf("no stripe price configured for plan %q", params.PlanCode)
	}

	lineItems := []*stripego.CheckoutSessionLineItemParams{
		{Price: stripego.String(priceID), Quantity: stripego.Int64(1)},
	}
	addonItems, err := p.addonLineItems(params.Addons)
	if err != nil {
		return domain.CheckoutSession{}, err
	}
	lineItems = append(lineItems, addonItems...)

	metadata := map[string]string{
		metadataOrderIDKey:  params.OrderID,
		metadataOrgIDKey:    params.OrgID,
		metadataTenantIDKey: params.TenantID,
		metadataPlanCodeKey: params.PlanCode,
	}

	sessionParams := &stripego.CheckoutSessionParams{
		Mode:              stripego.String(string(stripego.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripego.String(params.OrderID),
		LineItems:         lineItems,
		SuccessURL:        stripego.String(params.SuccessURL),
		CancelURL:         stripego.String(params.CancelURL),
		SubscriptionData: &stripego.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	sessionParams.Context = ctx
	for k, v := range metadata {
		sessionParams.AddMetadata(k, v)
	}

	session, err := p.api.CheckoutSessions.New(sessionParams)
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("creating stripe checkout session: %w", err)
	}

	return domain.CheckoutSession{
		Provider:   ProviderName,
		SessionID:  session.ID,
		SessionURL: session.URL,
	}, nil
}

func (p *Provider) addonLineItems(addons domain.AddonSelection) ([]*stripego.CheckoutSessionLineItemParams, error) {
	var items []*stripego.CheckoutSessionLineItemParams

	add := func(priceID, name string, quantity int64) error {
		if quantity <= 0 {
			return nil
		}
		if priceID == "" {
			return fmt.Errorf("no stripe price configured for add-on %q", name)
		}
		items = append(items, &stripego.CheckoutSessionLineItemParams{
			Price:    stripego.String(priceID),
			Quantity: stripego.Int64(quantity),
		})
		return nil
	}

	if err := add(p.prices.AV30Block, "av30_block", addons.AV30Blocks); err != nil {
		return nil, err
	}
	if err := add(p.prices.StorageBlock, "storage_block", addons.StorageBlocks); err != nil {
		return nil, err
	}
	if err := add(p.prices.ExtraSite, "extra_site", addons.ExtraSites); err != nil {
		return nil, err
	}
	if err := add(p.prices.MessagingPack, "messaging_pack", addons.MessagingPacks); err != nil {
		return nil, err
	}

	return items, nil
}

// VerifyAndParse authenticates a webhook delivery against the endpoint
// secret and normalizes it into a billing event.
func (p *Provider) VerifyAndParse(payload []byte, signature string) (domain.BillingEvent, error) {
	if signature == "" {
		return domain.BillingEvent{}, domain.ErrBadSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return domain.BillingEvent{}, fmt.Errorf("%w: %s", domain.ErrBadSignature, err)
	}

	return normalizeEvent(event)
}

func normalizeEvent(event stripego.Event) (domain.BillingEvent, error) {
	normalized := domain.BillingEvent{
		Provider: ProviderName,
		EventID:  event.ID,
		RawKind:  string(event.Type),
	}
	if event.ID == "" {
		return domain.BillingEvent{}, &domain.MalformedEventError{Provider: ProviderName, Field: "id"}
	}

	switch string(event.Type) {
	case "checkout.session.completed":
		return normalizeCheckoutSession(normalized, event.Data.Raw)
	case "customer.subscription.created":
		normalized.Kind = domain.KindSubscriptionCreated
		return normalizeSubscription(normalized, event.Data.Raw)
	case "customer.subscription.updated":
		normalized.Kind = domain.KindSubscriptionUpdated
		return normalizeSubscription(normalized, event.Data.Raw)
	case "customer.subscription.deleted":
		normalized.Kind = domain.KindSubscriptionCanceled
		return normalizeSubscription(normalized, event.Data.Raw)
	case "invoice.paid":
		return normalizeInvoice(normalized, event.Data.Raw)
	default:
		normalized.Kind = domain.KindUnknown
		return normalized, nil
	}
}

// normalizeCheckoutSession maps a completed checkout to a
// subscription.created event carrying the order correlation: the
// explicit pending-order id from metadata plus the session id as
// checkout ref.
func normalizeCheckoutSession(normalized domain.BillingEvent, raw json.RawMessage) (domain.BillingEvent, error) {
	var session stripego.CheckoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.BillingEvent{}, &domain.MalformedEventError{Provider: ProviderName, Field: "checkout session object"}
	}
	if session.Subscription == nil || session.Subscription.ID == "" {
		return domain.BillingEvent{}, &domain.MalformedEventError{Provider: ProviderName, Field: "subscription"}
	}

	normalized.Kind = domain.KindSubscriptionCreated
	normalized.SubscriptionID = session.Subscription.ID
	normalized.CheckoutRef = session.ID
	normalized.PendingOrderID = session.Metadata[metadataOrderIDKey]
	if normalized.PendingOrderID == "" {
		normalized.PendingOrderID = session.ClientReferenceID
	}
	normalized.OrgID = session.Metadata[metadataOrgIDKey]
	normalized.TenantID = session.Metadata[metadataTenantIDKey]
	normalized.PlanCode = session.Metadata[metadataPlanCodeKey]
	normalized.Status = domain.SubscriptionActive

	return normalized, nil
}

func normalizeSubscription(normalized domain.BillingEvent, raw json.RawMessage) (domain.BillingEvent, error) {
	var sub stripego.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return domain.BillingEvent{}, &domain.MalformedEventError{Provider: ProviderName, Field: "subscription object"}
	}
	if sub.ID == "" {
		return domain.BillingEvent{}, &domain.MalformedEventError{Provider: ProviderName, Field: "subscription id"}
	}

	normalized.SubscriptionID = sub.ID
	normalized.OrgID = sub.Metadata[metadataOrgIDKey]
	normalized.TenantID = sub.Metadata[metadataTenantIDKey]
	normalized.PendingOrderID = sub.Metadata[metadataOrderIDKey]
	normalized.PlanCode = sub.Metadata[metadataPlanCodeKey]
	normalized.Status = mapSubscriptionStatus(sub.Status)
	normalized.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	normalized.PeriodStart = unixTime(sub.CurrentPeriodStart)
	normalized.PeriodEnd = unixTime(sub.CurrentPeriodEnd)

	return normalized, nil
}

func normalizeInvoice(normalized domain.BillingEvent, raw json.RawMessage) (domain.BillingEvent, error) {
	var invoice stripego.Invoice
	if err := json.Unmarshal(raw, &invoice); err != nil {
		return domain.BillingEvent{}, &domain.MalformedEventError{Provider: ProviderName, Field: "invoice object"}
	}
	if invoice.Subscription == nil || invoice.Subscription.ID == "" {
		return domain.BillingEvent{}, &domain.MalformedEventError{Provider: ProviderName, Field: "subscription"}
	}

	normalized.Kind = domain.KindInvoicePaid
	normalized.SubscriptionID = invoice.Subscription.ID
	if details := invoice.SubscriptionDetails; details != nil {
		normalized.OrgID = details.Metadata[metadataOrgIDKey]
		normalized.TenantID = details.Metadata[metadataTenantIDKey]
		normalized.PendingOrderID = details.Metadata[metadataOrderIDKey]
		normalized.PlanCode = details.Metadata[metadataPlanCodeKey]
	}
	normalized.Status = domain.SubscriptionActive
	normalized.PeriodStart = unixTime(invoice.PeriodStart)
	normalized.PeriodEnd = unixTime(invoice.PeriodEnd)

	return normalized, nil
}

func mapSubscriptionStatus(status stripego.SubscriptionStatus) domain.SubscriptionStatus {
	switch status {
	case stripego.SubscriptionStatusActive:
		return domain.SubscriptionActive
	case stripego.SubscriptionStatusPastDue, stripego.SubscriptionStatusUnpaid:
		return domain.SubscriptionPastDue
	case stripego.SubscriptionStatusCanceled, stripego.SubscriptionStatusIncompleteExpired:
		return domain.SubscriptionCanceled
	case stripego.SubscriptionStatusTrialing:
		return domain.SubscriptionTrialing
	case stripego.SubscriptionStatusIncomplete:
		return domain.SubscriptionIncomplete
	default:
		// The reconciler defaults unmapped statuses to active.
		return ""
	}
}

func unixTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
