package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/billiq/internal/domain"
)

// HandleEvent consumes one normalized billing event. It is safe under
// at-least-once, out-of-order webhook delivery: the (provider, event
// id) pair is checked before any mutation, and the event-log row is
// written last inside the same transaction as the mutation it records,
// so redelivery after a crash can never re-apply side effects.
func (s *BillingService) HandleEvent(ctx context.Context, event domain.BillingEvent) (domain.ReconcileResult, error) {
	result := domain.ReconcileResult{EventID: event.EventID}

	// Fast-path duplicate check. Not the safety mechanism — that is
	// the log's uniqueness constraint — just a short circuit.
	outcome, err := s.repo.EventOutcome(ctx, event.Provider, event.EventID)
	switch {
	case err == nil:
		result.Status = priorStatus(outcome)
		s.log.InfoContext(ctx, "billing event redelivered",
			"provider", event.Provider, "event_id", event.EventID, "status", result.Status)
		return result, nil
	case !errors.Is(err, domain.ErrEventNotLogged):
		return result, fmt.Errorf("checking event log: %w", err)
	}

	switch event.Kind {
	case domain.KindSubscriptionCreated, domain.KindSubscriptionUpdated, domain.KindInvoicePaid:
		return s.applySubscriptionEvent(ctx, event, subscriptionStatusFor(event))
	case domain.KindSubscriptionCanceled:
		// Cancellation wins over whatever status field the event carries.
		return s.applySubscriptionEvent(ctx, event, domain.SubscriptionCanceled)
	case domain.KindUnknown:
		return s.recordUnknown(ctx, event)
	default:
		// The enum is closed; a new kind added upstream without a case
		// here is a programming error, but webhooks must stay safe, so
		// treat it like an unknown kind rather than failing delivery.
		s.log.ErrorContext(ctx, "unhandled billing event kind",
			"kind", event.Kind, "provider", event.Provider, "event_id", event.EventID)
		return s.recordUnknown(ctx, event)
	}
}

// subscriptionStatusFor defaults to ACTIVE unless the event carries an
// explicit, modelled status.
func subscriptionStatusFor(event domain.BillingEvent) domain.SubscriptionStatus {
	if domain.KnownSubscriptionStatus(event.Status) {
		return event.Status
	}
	return domain.SubscriptionActive
}

func (s *BillingService) applySubscriptionEvent(ctx context.Context, event domain.BillingEvent, status domain.SubscriptionStatus) (domain.ReconcileResult, error) {
	result := domain.ReconcileResult{EventID: event.EventID}

	if event.SubscriptionID == "" {
		return result, &domain.MalformedEventError{Provider: event.Provider, Field: "subscription_id"}
	}

	s.noteUnusualTransition(ctx, event, status)

	change := domain.ReconcileChange{
		Subscription: &domain.Subscription{
			ID:                     generateID(),
			Provider:               event.Provider,
			ProviderSubscriptionID: event.SubscriptionID,
			OrgID:                  event.OrgID,
			PlanCode:               event.PlanCode,
			Status:                 status,
			CurrentPeriodStart:     event.PeriodStart,
			CurrentPeriodEnd:       event.PeriodEnd,
			CancelAtPeriodEnd:      event.CancelAtPeriodEnd,
		},
		Log: logEntry(event, domain.OutcomeApplied),
	}

	order, found, err := s.findOrder(ctx, event)
	if err != nil {
		return result, err
	}

	switch {
	case found && order.Status == domain.OrderPending:
		// Completing the order and snapshotting its projected caps is
		// the moment the checkout-time preview becomes authoritative.
		if _, err := s.validator.ApplyOrder(ctx, order.Status, domain.EventOrderFulfilled); err != nil {
			return result, err
		}
		change.Snapshot = &domain.EntitlementSnapshot{
			ID:        generateID(),
			OrgID:     order.OrgID,
			Caps:      order.ProjectedCaps,
			Source:    domain.SourcePendingOrder,
			CreatedAt: time.Now().UTC(),
		}
		change.CompleteOrderID = order.ID
		change.ProviderSubscriptionID = event.SubscriptionID
		if change.Subscription.OrgID == "" {
			change.Subscription.OrgID = order.OrgID
		}
		if change.Subscription.PlanCode == "" {
			change.Subscription.PlanCode = order.PlanCode
		}
		change.Log.OrgID = order.OrgID
	case found:
		// Order already completed: later events referencing it only
		// update the subscription, never re-snapshot its caps.
		s.log.InfoContext(ctx, "order already completed, updating subscription only",
			"order_id", order.ID, "event_id", event.EventID)
	default:
		// No open order (e.g. a renewal). Snapshot inline entitlement
		// values only when the event carries all of them; partial
		// inline data is discarded rather than guessed at.
		if caps, ok := event.InlineCaps(); ok && event.OrgID != "" {
			change.Snapshot = &domain.EntitlementSnapshot{
				ID:        generateID(),
				OrgID:     event.OrgID,
				Caps:      caps,
				Source:    domain.SourceWebhook,
				CreatedAt: time.Now().UTC(),
			}
		}
	}

	if err := s.repo.ApplyReconciliation(ctx, change); err != nil {
		if errors.Is(err, domain.ErrDuplicateEvent) {
			// A concurrent delivery raced past the fast-path check and
			// committed first. Same answer as the fast path.
			result.Status = s.committedStatus(ctx, event)
			return result, nil
		}
		return result, fmt.Errorf("applying reconciliation for event %s: %w", event.EventID, err)
	}

	result.Status = domain.ReconcileOK
	s.publishRefresh(ctx, event, change)
	return result, nil
}

// findOrder resolves the pending order an event refers to: explicit
// order id first, then the checkout session handle, then an open order
// already stamped with this provider subscription id.
func (s *BillingService) findOrder(ctx context.Context, event domain.BillingEvent) (domain.PendingOrder, bool, error) {
	if event.PendingOrderID != "" {
		order, err := s.repo.GetOrder(ctx, event.PendingOrderID)
		switch {
		case err == nil:
			return order, true, nil
		case errors.Is(err, domain.ErrOrderNotFound):
			// A stale or foreign correlation id; fall through to the
			// weaker matches rather than failing the delivery.
			s.log.WarnContext(ctx, "event references unknown pending order",
				"order_id", event.PendingOrderID, "event_id", event.EventID)
		default:
			return domain.PendingOrder{}, false, fmt.Errorf("loading pending order %s: %w", event.PendingOrderID, err)
		}
	}

	if event.CheckoutRef != "" {
		order, err := s.repo.FindOpenOrderByCheckoutRef(ctx, event.Provider, event.CheckoutRef)
		switch {
		case err == nil:
			return order, true, nil
		case !errors.Is(err, domain.ErrOrderNotFound):
			return domain.PendingOrder{}, false, fmt.Errorf("matching order by checkout ref: %w", err)
		}
	}

	if event.SubscriptionID != "" {
		order, err := s.repo.FindOpenOrderBySubscriptionRef(ctx, event.Provider, event.SubscriptionID)
		switch {
		case err == nil:
			return order, true, nil
		case !errors.Is(err, domain.ErrOrderNotFound):
			return domain.PendingOrder{}, false, fmt.Errorf("matching order by subscription ref: %w", err)
		}
	}

	return domain.PendingOrder{}, false, nil
}

func (s *BillingService) recordUnknown(ctx context.Context, event domain.BillingEvent) (domain.ReconcileResult, error) {
	result := domain.ReconcileResult{EventID: event.EventID}

	change := domain.ReconcileChange{Log: logEntry(event, domain.OutcomeIgnoredUnknown)}
	if err := s.repo.ApplyReconciliation(ctx, change); err != nil {
		if errors.Is(err, domain.ErrDuplicateEvent) {
			result.Status = s.committedStatus(ctx, event)
			return result, nil
		}
		return result, fmt.Errorf("logging unknown event %s: %w", event.EventID, err)
	}

	s.log.InfoContext(ctx, "ignoring unknown billing event kind",
		"provider", event.Provider, "event_id", event.EventID, "raw_kind", event.RawKind)
	result.Status = domain.ReconcileIgnoredUnknown
	return result, nil
}

// noteUnusualTransition logs provider status changes outside the
// ordinary lifecycle, e.g. an activation arriving after a cancellation.
// Out-of-order delivery makes these legitimate, so they are applied
// regardless.
func (s *BillingService) noteUnusualTransition(ctx context.Context, event domain.BillingEvent, next domain.SubscriptionStatus) {
	current, err := s.repo.LatestSubscriptionByOrg(ctx, event.OrgID)
	if err != nil || current.ProviderSubscriptionID != event.SubscriptionID {
		return
	}
	if current.Status == next {
		return
	}
	if !s.validator.OrdinarySubscriptionChange(current.Status, next) {
		s.log.WarnContext(ctx, "unusual subscription status transition",
			"subscription_id", event.SubscriptionID,
			"from", current.Status, "to", next, "event_id", event.EventID)
	}
}

// publishRefresh notifies downstream consumers that entitlements may
// have changed. Strictly best-effort: the outcome is already recorded
// and a publish failure must not surface to the provider.
func (s *BillingService) publishRefresh(ctx context.Context, event domain.BillingEvent, change domain.ReconcileChange) {
	refresh := domain.EntitlementRefresh{
		OrgID:    change.Log.OrgID,
		Provider: event.Provider,
		EventID:  event.EventID,
		PlanCode: change.Subscription.PlanCode,
	}
	if change.Snapshot != nil {
		refresh.Source = change.Snapshot.Source
	}
	if err := s.publisher.Publish(ctx, refresh); err != nil {
		s.log.WarnContext(ctx, "entitlement refresh publish failed",
			"event_id", event.EventID, "error", err)
	}
}

// committedStatus answers a redelivery that lost the commit race by
// reading back what the winning delivery logged, so the race branch
// and the fast path report the same status for the same event.
func (s *BillingService) committedStatus(ctx context.Context, event domain.BillingEvent) domain.ReconcileStatus {
	outcome, err := s.repo.EventOutcome(ctx, event.Provider, event.EventID)
	if err != nil {
		return domain.ReconcileIgnoredDuplicate
	}
	return priorStatus(outcome)
}

func priorStatus(outcome domain.EventOutcome) domain.ReconcileStatus {
	if outcome == domain.OutcomeIgnoredUnknown {
		return domain.ReconcileIgnoredUnknown
	}
	return domain.ReconcileIgnoredDuplicate
}

func logEntry(event domain.BillingEvent, outcome domain.EventOutcome) domain.EventLogEntry {
	return domain.EventLogEntry{
		Provider:   event.Provider,
		EventID:    event.EventID,
		Kind:       event.Kind,
		Outcome:    outcome,
		OrgID:      event.OrgID,
		ReceivedAt: time.Now().UTC(),
	}
}
