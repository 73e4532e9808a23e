package otel

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/billiq/internal/domain"
)

const tracerName = "github.com/neomorfeo/billiq/internal/adapter/otel"

// TracingRepository wraps a domain.BillingRepository with OpenTelemetry
// tracing. Each method creates a span with semantic attributes and
// records errors. Not-found sentinels and duplicate-event results are
// ordinary outcomes, not span errors.
type TracingRepository struct {
	next   domain.BillingRepository
	tracer trace.Tracer
}

// Compile-time check: TracingRepository implements domain.BillingRepository.
var _ domain.BillingRepository = (*TracingRepository)(nil)

// NewTracingRepository creates a tracing decorator around the given repository.
func NewTracingRepository(next domain.BillingRepository) *TracingRepository {
	return &TracingRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingRepository) CreateOrder(ctx context.Context, order domain.PendingOrder) error {
	ctx, span := r.tracer.Start(ctx, "BillingRepository.CreateOrder",
		trace.WithAttributes(
			attribute.String("order.id", order.ID),
			attribute.String("org.id", order.OrgID),
			attribute.String("plan.code", order.PlanCode),
		),
	)
	defer span.End()

	err := r.next.CreateOrder(ctx, order)
	recordError(span, err)
	return err
}

func (r *TracingRepository) GetOrder(ctx context.Context, id string) (domain.PendingOrder, error) {
	ctx, span := r.tracer.Start(ctx, "BillingRepository.GetOrder",
		trace.WithAttributes(attribute.String("order.id", id)),
	)
	defer span.End()

	order, err := r.next.GetOrder(ctx, id)
	recordError(span, ignoring(err, domain.ErrOrderNotFound))
	return order, err
}

func (r *TracingRepository) SetOrderCheckoutRef(ctx context.Context, id, provider, checkoutRef string) error {
	ctx, span := r.tracer.Start(ctx, "BillingRepository.SetOrderCheckoutRef",
		trace.WithAttributes(
			attribute.String("order.id", id),
			attribute.String("payment.provider", provider),
		),
	)
	defer span.End()

	err := r.next.SetOrderCheckoutRef(ctx, id, provider, checkoutRef)
	recordError(span, err)
	return err
}

func (r *TracingRepository) FindOpenOrderByCheckoutRef(ctx context.Context, provider, checkoutRef string) (domain.PendingOrder, error) {
	ctx, span := r.tracer.Start(ctx, "BillingRepository.FindOpenOrderByCheckoutRef",
		trace.WithAttributes(attribute.String("payment.provider", provider)),
	)
	defer span.End()

	order, err := r.next.FindOpenOrderByCheckoutRef(ctx, provider, checkoutRef)
	recordError(span, ignoring(err, domain.ErrOrderNotFound))
	return order, err
}

func (r *TracingRepository) FindOpenOrderBySubscriptionRef(ctx context.Context, provider, subscriptionID string) (domain.PendingOrder, error) {
	ctx, span := r.tracer.Start(ctx, "BillingRepository.FindOpenOrderBySubscriptionRef",
		trace.WithAttributes(
			attribute.String("payment.provider", provider),
			attribute.String("subscription.provider_id", subscriptionID),
		),
	)
	defer span.End()

	order, err := r.next.FindOpenOrderBySubscriptionRef(ctx, provider, subscriptionID)
	recordError(span, ignoring(err, domain.ErrOrderNotFound))
	return order, err
}

func (r *TracingRepository) ListOrdersByOrg(ctx context.Context, orgID string) ([]domain.PendingOrder, error) {
	ctx, span := r.tracer.Start(ctx, "BillingRepository.ListOrdersByOrg",
		trace.WithAttributes(attribute.String("org.id", orgID)),
	)
	defer span.End()

	orders, err := r.next.ListOrdersByOrg(ctx, orgID)
	recordError(span, err)
	return orders, err
}

func (r *TracingRepository) LatestSubscriptionByOrg(ctx context.Context, orgID string) (domain.Subscription, error) {
	ctx, span := r.tracer.Start(ctx, "BillingRepository.LatestSubscriptionByOrg",
		trace.WithAttributes(attribute.String("org.id", orgID)),
	)
	defer span.End()

	sub, err := r.next.LatestSubscriptionByOrg(ctx, orgID)
	recordError(span, ignoring(err, domain.ErrSubscriptionNotFound))
	return sub, err
}

func (r *TracingRepository) LatestSnapshotByOrg(ctx context.Context, orgID string) (domain.EntitlementSnapshot, error) {
	ctx, span := r.tracer.Start(ctx, "BillingRepository.LatestSnapshotByOrg",
		trace.WithAttributes(attribute.String("org.id", orgID)),
	)
	defer span.End()

	snap, err := r.next.LatestSnapshotByOrg(ctx, orgID)
	recordError(span, ignoring(err, domain.ErrSnapshotNotFound))
	return snap, err
}

func (r *TracingRepository) LatestUsageByOrg(ctx context.Context, orgID string) (domain.UsageCounters, error) {
	ctx, span := r.tracer.Start(ctx, "BillingRepository.LatestUsageByOrg",
		trace.WithAttributes(attribute.String("org.id", orgID)),
	)
	defer span.End()

	usage, err := r.next.LatestUsageByOrg(ctx, orgID)
	recordError(span, ignoring(err, domain.ErrUsageNotFound))
	return usage, err
}

func (r *TracingRepository) RecordUsage(ctx context.Context, usage domain.UsageCounters) error {
	ctx, span := r.tracer.Start(ctx, "BillingRepository.RecordUsage",
		trace.WithAttributes(attribute.String("org.id", usage.OrgID)),
	)
	defer span.End()

	err := r.next.RecordUsage(ctx, usage)
	recordError(span, err)
	return err
}

func (r *TracingRepository) OrgIDsWithUsage(ctx context.Context) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "BillingRepository.OrgIDsWithUsage")
	defer span.End()

	orgIDs, err := r.next.OrgIDsWithUsage(ctx)
	recordError(span, err)
	return orgIDs, err
}

func (r *TracingRepository) EventOutcome(ctx context.Context, provider, eventID string) (domain.EventOutcome, error) {
	ctx, span := r.tracer.Start(ctx, "BillingRepository.EventOutcome",
		trace.WithAttributes(
			attribute.String("payment.provider", provider),
			attribute.String("event.id", eventID),
		),
	)
	defer span.End()

	outcome, err := r.next.EventOutcome(ctx, provider, eventID)
	recordError(span, ignoring(err, domain.ErrEventNotLogged))
	return outcome, err
}

func (r *TracingRepository) ApplyReconciliation(ctx context.Context, change domain.ReconcileChange) error {
	attrs := []attribute.KeyValue{
		attribute.String("payment.provider", change.Log.Provider),
		attribute.String("event.id", change.Log.EventID),
		attribute.String("event.outcome", string(change.Log.Outcome)),
		attribute.Bool("reconcile.snapshot", change.Snapshot != nil),
		attribute.Bool("reconcile.completes_order", change.CompleteOrderID != ""),
	}
	ctx, span := r.tracer.Start(ctx, "BillingRepository.ApplyReconciliation",
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	err := r.next.ApplyReconciliation(ctx, change)
	recordError(span, ignoring(err, domain.ErrDuplicateEvent))
	return err
}

func recordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// ignoring filters expected sentinel results out of span error
// recording while leaving the caller's error untouched.
func ignoring(err error, sentinels ...error) error {
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return nil
		}
	}
	return err
}
