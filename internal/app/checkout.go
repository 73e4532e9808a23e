package app

import (
	"context"
	"fmt"

	"github.com/neomorfeo/billiq/internal/domain"
)

// CheckoutRequest is a plan selection plus the identity of the org
// buying it.
type CheckoutRequest struct {
	OrgID      string
	TenantID   string
	PlanCode   string
	Addons     domain.AddonSelection
	SuccessURL string
	CancelURL  string
}

// CheckoutResponse carries the preview, the persisted pending order,
// and the provider session handle to redirect the buyer to.
type CheckoutResponse struct {
	OrderID string
	Preview domain.Preview
	Session domain.CheckoutSession
}

// Checkout computes a preview, persists a pending order carrying the
// projected caps, and obtains a provider checkout session correlated
// to the order.
//
// If the provider call fails the order stays PENDING with no checkout
// ref; callers may retry, producing a fresh order. Abandoned pending
// orders are harmless: they are only ever read when a matching webhook
// arrives.
func (s *BillingService) Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResponse, error) {
	// Sanitize once; both the preview and the provider see the clamped
	// quantities, never the caller's raw input. PreviewPlan finds
	// nothing left to clamp, so the warning is carried here.
	addons, clamped := req.Addons.Normalise()
	preview := domain.PreviewPlan(req.PlanCode, addons)
	if clamped {
		preview.Warnings = append([]string{domain.WarnNegativeAddons}, preview.Warnings...)
	}

	order := domain.NewPendingOrder(generateID(), req.OrgID, req.TenantID, preview)
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return CheckoutResponse{}, fmt.Errorf("creating pending order: %w", err)
	}

	session, err := s.provider.CreateCheckoutSession(ctx, domain.CheckoutSessionParams{
		OrderID:    order.ID,
		OrgID:      req.OrgID,
		TenantID:   req.TenantID,
		PlanCode:   req.PlanCode,
		Addons:     addons,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		return CheckoutResponse{}, fmt.Errorf("creating checkout session for order %s: %w", order.ID, err)
	}

	if err := s.repo.SetOrderCheckoutRef(ctx, order.ID, session.Provider, session.SessionID); err != nil {
		return CheckoutResponse{}, fmt.Errorf("stamping checkout ref on order %s: %w", order.ID, err)
	}

	return CheckoutResponse{
		OrderID: order.ID,
		Preview: preview,
		Session: session,
	}, nil
}
