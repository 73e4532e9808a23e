package otel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	adapter "github.com/neomorfeo/billiq/internal/adapter/otel"
	"github.com/neomorfeo/billiq/internal/adapter/sqlite"
	"github.com/neomorfeo/billiq/internal/domain"
)

// --- Test tracer setup ---

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter
}

func newTracedRepo(t *testing.T) (*adapter.TracingRepository, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := setupTestTracer(t)
	inner, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating repository: %v", err)
	}
	t.Cleanup(func() { inner.Close() })
	return adapter.NewTracingRepository(inner), exporter
}

func tracedTestOrder(id, orgID string) domain.PendingOrder {
	return domain.NewPendingOrder(id, orgID, "tenant-1", domain.PreviewPlan("STARTER_MONTHLY", domain.AddonSelection{}))
}

// --- Tests ---

func TestTracingRepository_CreateOrder_RecordsSpan(t *testing.T) {
	repo, exporter := newTracedRepo(t)

	if err := repo.CreateOrder(context.Background(), tracedTestOrder("ord-1", "org-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "BillingRepository.CreateOrder" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "BillingRepository.CreateOrder")
	}

	assertAttribute(t, spans[0], "order.id", "ord-1")
	assertAttribute(t, spans[0], "org.id", "org-1")
	assertAttribute(t, spans[0], "plan.code", "STARTER_MONTHLY")
}

func TestTracingRepository_CreateOrder_RecordsError(t *testing.T) {
	repo, exporter := newTracedRepo(t)

	if err := repo.CreateOrder(context.Background(), tracedTestOrder("ord-1", "org-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Same primary key again: the insert fails and the span says so.
	if err := repo.CreateOrder(context.Background(), tracedTestOrder("ord-1", "org-1")); err == nil {
		t.Fatal("expected error on duplicate order id")
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[1].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[1].Status.Code, codes.Error)
	}
	if len(spans[1].Events) == 0 {
		t.Error("expected error event on span")
	}
}

func TestTracingRepository_GetOrder_Delegates(t *testing.T) {
	repo, exporter := newTracedRepo(t)

	if err := repo.CreateOrder(context.Background(), tracedTestOrder("ord-1", "org-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := repo.GetOrder(context.Background(), "ord-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "ord-1" {
		t.Errorf("ID = %q, want %q", got.ID, "ord-1")
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[1].Name != "BillingRepository.GetOrder" {
		t.Errorf("span name = %q, want %q", spans[1].Name, "BillingRepository.GetOrder")
	}
}

func TestTracingRepository_GetOrder_NotFoundIsNotSpanError(t *testing.T) {
	repo, exporter := newTracedRepo(t)

	_, err := repo.GetOrder(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	// The sentinel still reaches the caller, but an empty lookup is a
	// normal read, not a trace-worthy failure.
	if spans[0].Status.Code == codes.Error {
		t.Errorf("span status = %v, want non-error", spans[0].Status.Code)
	}
}

func TestTracingRepository_ApplyReconciliation_DuplicateIsNotSpanError(t *testing.T) {
	repo, exporter := newTracedRepo(t)

	change := domain.ReconcileChange{
		Log: domain.EventLogEntry{
			Provider:   "fakepay",
			EventID:    "evt-1",
			Kind:       domain.KindSubscriptionUpdated,
			Outcome:    domain.OutcomeApplied,
			OrgID:      "org-1",
			ReceivedAt: time.Now().UTC(),
		},
	}
	if err := repo.ApplyReconciliation(context.Background(), change); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.ApplyReconciliation(context.Background(), change); !errors.Is(err, domain.ErrDuplicateEvent) {
		t.Fatalf("expected ErrDuplicateEvent, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[1].Status.Code == codes.Error {
		t.Errorf("span status = %v, want non-error", spans[1].Status.Code)
	}
	assertAttribute(t, spans[1], "event.id", "evt-1")
	assertAttribute(t, spans[1], "event.outcome", "applied")
}

func TestTracingRepository_EventOutcome_RecordsSpan(t *testing.T) {
	repo, exporter := newTracedRepo(t)

	_, err := repo.EventOutcome(context.Background(), "fakepay", "evt-x")
	if !errors.Is(err, domain.ErrEventNotLogged) {
		t.Fatalf("expected ErrEventNotLogged, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "BillingRepository.EventOutcome" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "BillingRepository.EventOutcome")
	}
	assertAttribute(t, spans[0], "payment.provider", "fakepay")
}

// assertAttribute checks that a span has an attribute with the given key and string value.
func assertAttribute(t *testing.T, span tracetest.SpanStub, key, want string) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			got := attr.Value.Emit()
			if got != want {
				t.Errorf("attribute %q = %q, want %q", key, got, want)
			}
			return
		}
	}
	t.Errorf("attribute %q not found on span %q", key, span.Name)
}
