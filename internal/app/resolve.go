package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/neomorfeo/billiq/internal/domain"
)

// Resolve returns the currently-effective caps and usage for an org.
// The three source reads are independent, so they run in parallel; the
// layering itself is pure (domain.ResolveEntitlements).
func (s *BillingService) Resolve(ctx context.Context, orgID string) (domain.ResolvedEntitlements, error) {
	var (
		sub   *domain.Subscription
		snap  *domain.EntitlementSnapshot
		usage *domain.UsageCounters
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		latest, err := s.repo.LatestSubscriptionByOrg(gctx, orgID)
		if err != nil {
			if errors.Is(err, domain.ErrSubscriptionNotFound) {
				return nil
			}
			return fmt.Errorf("loading subscription: %w", err)
		}
		sub = &latest
		return nil
	})

	g.Go(func() error {
		latest, err := s.repo.LatestSnapshotByOrg(gctx, orgID)
		if err != nil {
			if errors.Is(err, domain.ErrSnapshotNotFound) {
				return nil
			}
			return fmt.Errorf("loading entitlement snapshot: %w", err)
		}
		snap = &latest
		return nil
	})

	g.Go(func() error {
		latest, err := s.repo.LatestUsageByOrg(gctx, orgID)
		if err != nil {
			if errors.Is(err, domain.ErrUsageNotFound) {
				return nil
			}
			return fmt.Errorf("loading usage counters: %w", err)
		}
		usage = &latest
		return nil
	})

	if err := g.Wait(); err != nil {
		return domain.ResolvedEntitlements{}, err
	}

	return domain.ResolveEntitlements(orgID, sub, snap, usage), nil
}

// ListOrders returns an org's pending orders, newest first.
func (s *BillingService) ListOrders(ctx context.Context, orgID string) ([]domain.PendingOrder, error) {
	return s.repo.ListOrdersByOrg(ctx, orgID)
}
