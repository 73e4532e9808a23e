package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neomorfeo/billiq/internal/adapter/sqlite"
	"github.com/neomorfeo/billiq/internal/domain"
)

// newTestRepo creates an in-memory SQLite repository for testing.
func newTestRepo(t *testing.T) *sqlite.BillingRepository {
	t.Helper()
	repo, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating test repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testOrder(id, orgID string, createdAt time.Time) domain.PendingOrder {
	preview := domain.PreviewPlan("STARTER_MONTHLY", domain.AddonSelection{AV30Blocks: 1})
	order := domain.NewPendingOrder(id, orgID, "tenant-1", preview)
	order.CreatedAt = createdAt
	order.UpdatedAt = createdAt
	return order
}

func mustCreateOrder(t *testing.T, repo *sqlite.BillingRepository, order domain.PendingOrder) {
	t.Helper()
	if err := repo.CreateOrder(context.Background(), order); err != nil {
		t.Fatalf("mustCreateOrder failed: %v", err)
	}
}

func mustApply(t *testing.T, repo *sqlite.BillingRepository, change domain.ReconcileChange) {
	t.Helper()
	if err := repo.ApplyReconciliation(context.Background(), change); err != nil {
		t.Fatalf("mustApply failed: %v", err)
	}
}

func logEntry(eventID string) domain.EventLogEntry {
	return domain.EventLogEntry{
		Provider:   "fakepay",
		EventID:    eventID,
		Kind:       domain.KindSubscriptionCreated,
		Outcome:    domain.OutcomeApplied,
		OrgID:      "org-1",
		ReceivedAt: time.Now().UTC(),
	}
}

// --- Pending orders ---

func TestCreateOrder_And_GetOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	createdAt := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	mustCreateOrder(t, repo, testOrder("ord-1", "org-1", createdAt))

	got, err := repo.GetOrder(ctx, "ord-1")
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}

	if got.OrgID != "org-1" {
		t.Errorf("OrgID = %q, want org-1", got.OrgID)
	}
	if got.PlanCode != "STARTER_MONTHLY" {
		t.Errorf("PlanCode = %q, want STARTER_MONTHLY", got.PlanCode)
	}
	if got.Status != domain.OrderPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	// 50 base + 1 AV30 block of 25
	if got.ProjectedCaps.ActiveUsers == nil || *got.ProjectedCaps.ActiveUsers != 75 {
		t.Errorf("ProjectedCaps.ActiveUsers = %v, want 75", got.ProjectedCaps.ActiveUsers)
	}
	if !got.CreatedAt.Equal(createdAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, createdAt)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetOrder(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestSetOrderCheckoutRef(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mustCreateOrder(t, repo, testOrder("ord-1", "org-1", time.Now().UTC()))

	if err := repo.SetOrderCheckoutRef(ctx, "ord-1", "fakepay", "cs_123"); err != nil {
		t.Fatalf("SetOrderCheckoutRef failed: %v", err)
	}

	got, _ := repo.GetOrder(ctx, "ord-1")
	if got.Provider != "fakepay" {
		t.Errorf("Provider = %q, want fakepay", got.Provider)
	}
	if got.CheckoutRef != "cs_123" {
		t.Errorf("CheckoutRef = %q, want cs_123", got.CheckoutRef)
	}
}

func TestSetOrderCheckoutRef_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.SetOrderCheckoutRef(context.Background(), "nonexistent", "fakepay", "cs_123")
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestFindOpenOrderByCheckoutRef(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mustCreateOrder(t, repo, testOrder("ord-1", "org-1", time.Now().UTC()))
	if err := repo.SetOrderCheckoutRef(ctx, "ord-1", "fakepay", "cs_123"); err != nil {
		t.Fatalf("SetOrderCheckoutRef failed: %v", err)
	}

	got, err := repo.FindOpenOrderByCheckoutRef(ctx, "fakepay", "cs_123")
	if err != nil {
		t.Fatalf("FindOpenOrderByCheckoutRef failed: %v", err)
	}
	if got.ID != "ord-1" {
		t.Errorf("ID = %q, want ord-1", got.ID)
	}

	// Wrong provider never matches.
	if _, err := repo.FindOpenOrderByCheckoutRef(ctx, "stripe", "cs_123"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound for wrong provider, got %v", err)
	}

	// An empty ref never matches, even against orders with no ref yet.
	mustCreateOrder(t, repo, testOrder("ord-2", "org-1", time.Now().UTC()))
	if _, err := repo.FindOpenOrderByCheckoutRef(ctx, "", ""); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound for empty ref, got %v", err)
	}
}

func TestFindOpenOrderByCheckoutRef_SkipsCompleted(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mustCreateOrder(t, repo, testOrder("ord-1", "org-1", time.Now().UTC()))
	if err := repo.SetOrderCheckoutRef(ctx, "ord-1", "fakepay", "cs_123"); err != nil {
		t.Fatalf("SetOrderCheckoutRef failed: %v", err)
	}

	mustApply(t, repo, domain.ReconcileChange{
		CompleteOrderID:        "ord-1",
		ProviderSubscriptionID: "sub-1",
		Log:                    logEntry("evt-1"),
	})

	if _, err := repo.FindOpenOrderByCheckoutRef(ctx, "fakepay", "cs_123"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound for completed order, got %v", err)
	}
}

func TestFindOpenOrderBySubscriptionRef(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	order := testOrder("ord-1", "org-1", time.Now().UTC())
	order.Provider = "fakepay"
	order.ProviderSubscriptionID = "sub-1"
	mustCreateOrder(t, repo, order)

	got, err := repo.FindOpenOrderBySubscriptionRef(ctx, "fakepay", "sub-1")
	if err != nil {
		t.Fatalf("FindOpenOrderBySubscriptionRef failed: %v", err)
	}
	if got.ID != "ord-1" {
		t.Errorf("ID = %q, want ord-1", got.ID)
	}

	if _, err := repo.FindOpenOrderBySubscriptionRef(ctx, "fakepay", ""); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound for empty subscription ref, got %v", err)
	}
}

func TestListOrdersByOrg_NewestFirst(t *testing.T) {
	repo := newTestRepo(t)

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	mustCreateOrder(t, repo, testOrder("ord-old", "org-1", base))
	mustCreateOrder(t, repo, testOrder("ord-new", "org-1", base.Add(time.Hour)))
	mustCreateOrder(t, repo, testOrder("ord-other", "org-2", base))

	orders, err := repo.ListOrdersByOrg(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("ListOrdersByOrg failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("got %d orders, want 2", len(orders))
	}
	if orders[0].ID != "ord-new" || orders[1].ID != "ord-old" {
		t.Errorf("order = [%s, %s], want [ord-new, ord-old]", orders[0].ID, orders[1].ID)
	}
}

// --- Reconciliation ---

func fullChange(eventID, orderID string) domain.ReconcileChange {
	return domain.ReconcileChange{
		Subscription: &domain.Subscription{
			ID:                     "s-" + eventID,
			Provider:               "fakepay",
			ProviderSubscriptionID: "sub-1",
			OrgID:                  "org-1",
			PlanCode:               "STARTER_MONTHLY",
			Status:                 domain.SubscriptionActive,
		},
		Snapshot: &domain.EntitlementSnapshot{
			ID:        "snap-" + eventID,
			OrgID:     "org-1",
			Caps:      domain.Caps{ActiveUsers: domain.Cap(75)},
			Source:    domain.SourcePendingOrder,
			CreatedAt: time.Now().UTC(),
		},
		CompleteOrderID:        orderID,
		ProviderSubscriptionID: "sub-1",
		Log:                    logEntry(eventID),
	}
}

func TestApplyReconciliation_CommitsAllWrites(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mustCreateOrder(t, repo, testOrder("ord-1", "org-1", time.Now().UTC()))
	mustApply(t, repo, fullChange("evt-1", "ord-1"))

	order, _ := repo.GetOrder(ctx, "ord-1")
	if order.Status != domain.OrderCompleted {
		t.Errorf("order Status = %q, want completed", order.Status)
	}
	if order.ProviderSubscriptionID != "sub-1" {
		t.Errorf("order ProviderSubscriptionID = %q, want sub-1", order.ProviderSubscriptionID)
	}

	sub, err := repo.LatestSubscriptionByOrg(ctx, "org-1")
	if err != nil {
		t.Fatalf("LatestSubscriptionByOrg failed: %v", err)
	}
	if sub.Status != domain.SubscriptionActive {
		t.Errorf("subscription Status = %q, want active", sub.Status)
	}

	snap, err := repo.LatestSnapshotByOrg(ctx, "org-1")
	if err != nil {
		t.Fatalf("LatestSnapshotByOrg failed: %v", err)
	}
	if snap.Caps.ActiveUsers == nil || *snap.Caps.ActiveUsers != 75 {
		t.Errorf("snapshot ActiveUsers = %v, want 75", snap.Caps.ActiveUsers)
	}

	outcome, err := repo.EventOutcome(ctx, "fakepay", "evt-1")
	if err != nil {
		t.Fatalf("EventOutcome failed: %v", err)
	}
	if outcome != domain.OutcomeApplied {
		t.Errorf("outcome = %q, want applied", outcome)
	}
}

func TestApplyReconciliation_DuplicateEventRollsBack(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mustApply(t, repo, domain.ReconcileChange{
		Snapshot: &domain.EntitlementSnapshot{
			ID:        "snap-1",
			OrgID:     "org-1",
			Caps:      domain.Caps{ActiveUsers: domain.Cap(75)},
			Source:    domain.SourcePendingOrder,
			CreatedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		},
		Log: logEntry("evt-1"),
	})

	// Same event id, different snapshot. The log's primary key must
	// reject it and take the snapshot down with it.
	err := repo.ApplyReconciliation(ctx, domain.ReconcileChange{
		Snapshot: &domain.EntitlementSnapshot{
			ID:        "snap-2",
			OrgID:     "org-1",
			Caps:      domain.Caps{ActiveUsers: domain.Cap(999)},
			Source:    domain.SourceWebhook,
			CreatedAt: time.Date(2026, 2, 1, 11, 0, 0, 0, time.UTC),
		},
		Log: logEntry("evt-1"),
	})
	if !errors.Is(err, domain.ErrDuplicateEvent) {
		t.Fatalf("expected ErrDuplicateEvent, got %v", err)
	}

	snap, err := repo.LatestSnapshotByOrg(ctx, "org-1")
	if err != nil {
		t.Fatalf("LatestSnapshotByOrg failed: %v", err)
	}
	if snap.ID != "snap-1" {
		t.Errorf("latest snapshot = %q, want snap-1: the duplicate's writes must roll back", snap.ID)
	}
}

func TestApplyReconciliation_CompletionIsMonotonic(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mustCreateOrder(t, repo, testOrder("ord-1", "org-1", time.Now().UTC()))
	mustApply(t, repo, fullChange("evt-1", "ord-1"))

	// A second event trying to complete the same order fails, and its
	// snapshot rolls back with it.
	err := repo.ApplyReconciliation(ctx, fullChange("evt-2", "ord-1"))
	var trErr *domain.OrderTransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected OrderTransitionError, got %v", err)
	}

	if _, err := repo.EventOutcome(ctx, "fakepay", "evt-2"); !errors.Is(err, domain.ErrEventNotLogged) {
		t.Errorf("evt-2 should not be logged after rollback, got %v", err)
	}

	snap, _ := repo.LatestSnapshotByOrg(ctx, "org-1")
	if snap.ID != "snap-evt-1" {
		t.Errorf("latest snapshot = %q, want snap-evt-1", snap.ID)
	}
}

func TestApplyReconciliation_SubscriptionUpsertKeepsEstablishedFields(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	mustApply(t, repo, domain.ReconcileChange{
		Subscription: &domain.Subscription{
			ID:                     "s-1",
			Provider:               "fakepay",
			ProviderSubscriptionID: "sub-1",
			OrgID:                  "org-1",
			PlanCode:               "STARTER_MONTHLY",
			Status:                 domain.SubscriptionActive,
			CurrentPeriodStart:     &start,
			CurrentPeriodEnd:       &end,
		},
		Log: logEntry("evt-1"),
	})

	// A later event without org, plan, or period data only moves the
	// status.
	mustApply(t, repo, domain.ReconcileChange{
		Subscription: &domain.Subscription{
			ID:                     "s-2",
			Provider:               "fakepay",
			ProviderSubscriptionID: "sub-1",
			Status:                 domain.SubscriptionPastDue,
		},
		Log: logEntry("evt-2"),
	})

	sub, err := repo.LatestSubscriptionByOrg(ctx, "org-1")
	if err != nil {
		t.Fatalf("LatestSubscriptionByOrg failed: %v", err)
	}
	if sub.ID != "s-1" {
		t.Errorf("ID = %q, want s-1: upsert must not create a second row", sub.ID)
	}
	if sub.Status != domain.SubscriptionPastDue {
		t.Errorf("Status = %q, want past_due", sub.Status)
	}
	if sub.PlanCode != "STARTER_MONTHLY" {
		t.Errorf("PlanCode = %q, want STARTER_MONTHLY retained", sub.PlanCode)
	}
	if sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.Equal(end) {
		t.Errorf("CurrentPeriodEnd = %v, want %v retained", sub.CurrentPeriodEnd, end)
	}
}

func TestLatestSubscriptionByOrg_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.LatestSubscriptionByOrg(context.Background(), "org-none")
	if !errors.Is(err, domain.ErrSubscriptionNotFound) {
		t.Errorf("expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestLatestSnapshotByOrg_PicksNewest(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"snap-1", "snap-2"} {
		mustApply(t, repo, domain.ReconcileChange{
			Snapshot: &domain.EntitlementSnapshot{
				ID:        id,
				OrgID:     "org-1",
				Caps:      domain.Caps{Sites: domain.Cap(int64(i + 1))},
				Source:    domain.SourceWebhook,
				CreatedAt: base.Add(time.Duration(i) * time.Hour),
			},
			Log: logEntry("evt-" + id),
		})
	}

	snap, err := repo.LatestSnapshotByOrg(ctx, "org-1")
	if err != nil {
		t.Fatalf("LatestSnapshotByOrg failed: %v", err)
	}
	if snap.ID != "snap-2" {
		t.Errorf("ID = %q, want snap-2", snap.ID)
	}
	if snap.Caps.Sites == nil || *snap.Caps.Sites != 2 {
		t.Errorf("Sites = %v, want 2", snap.Caps.Sites)
	}
}

func TestLatestSnapshotByOrg_SameSecondKeepsNewest(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Two snapshots inside the same wall-clock second, with ids chosen
	// so that sorting by id would pick the wrong row. Sub-second
	// precision must decide, not the random id.
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	snaps := []struct {
		id        string
		cap       int64
		createdAt time.Time
	}{
		{"zz-older", 100, base.Add(100 * time.Millisecond)},
		{"aa-newer", 999, base.Add(600 * time.Millisecond)},
	}
	for _, s := range snaps {
		mustApply(t, repo, domain.ReconcileChange{
			Snapshot: &domain.EntitlementSnapshot{
				ID:        s.id,
				OrgID:     "org-1",
				Caps:      domain.Caps{ActiveUsers: domain.Cap(s.cap)},
				Source:    domain.SourceWebhook,
				CreatedAt: s.createdAt,
			},
			Log: logEntry("evt-" + s.id),
		})
	}

	snap, err := repo.LatestSnapshotByOrg(ctx, "org-1")
	if err != nil {
		t.Fatalf("LatestSnapshotByOrg failed: %v", err)
	}
	if snap.ID != "aa-newer" {
		t.Errorf("ID = %q, want aa-newer", snap.ID)
	}
	if snap.Caps.ActiveUsers == nil || *snap.Caps.ActiveUsers != 999 {
		t.Errorf("ActiveUsers = %v, want 999", snap.Caps.ActiveUsers)
	}
}

func TestLatestSnapshotByOrg_EqualTimestampPicksLastInserted(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Identical timestamps fall back to insertion order, not id order.
	at := time.Date(2026, 2, 1, 10, 0, 0, 500_000_000, time.UTC)
	for _, id := range []string{"zz-first", "aa-second"} {
		mustApply(t, repo, domain.ReconcileChange{
			Snapshot: &domain.EntitlementSnapshot{
				ID:        id,
				OrgID:     "org-1",
				Caps:      domain.Caps{},
				Source:    domain.SourceWebhook,
				CreatedAt: at,
			},
			Log: logEntry("evt-" + id),
		})
	}

	snap, err := repo.LatestSnapshotByOrg(ctx, "org-1")
	if err != nil {
		t.Fatalf("LatestSnapshotByOrg failed: %v", err)
	}
	if snap.ID != "aa-second" {
		t.Errorf("ID = %q, want aa-second", snap.ID)
	}
}

func TestLatestSnapshotByOrg_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.LatestSnapshotByOrg(context.Background(), "org-none")
	if !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Errorf("expected ErrSnapshotNotFound, got %v", err)
	}
}

// --- Usage ---

func TestRecordUsage_And_LatestUsageByOrg(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"u-1", "u-2"} {
		if err := repo.RecordUsage(ctx, domain.UsageCounters{
			ID:             id,
			OrgID:          "org-1",
			ActiveUsers30d: int64(40 + i),
			StorageMB:      1000,
			CalculatedAt:   base.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("RecordUsage failed: %v", err)
		}
	}

	usage, err := repo.LatestUsageByOrg(ctx, "org-1")
	if err != nil {
		t.Fatalf("LatestUsageByOrg failed: %v", err)
	}
	if usage.ID != "u-2" {
		t.Errorf("ID = %q, want u-2", usage.ID)
	}
	if usage.ActiveUsers30d != 41 {
		t.Errorf("ActiveUsers30d = %d, want 41", usage.ActiveUsers30d)
	}
}

func TestLatestUsageByOrg_SameSecondKeepsNewest(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	rows := []struct {
		id           string
		users        int64
		calculatedAt time.Time
	}{
		{"zz-older", 40, base.Add(100 * time.Millisecond)},
		{"aa-newer", 75, base.Add(600 * time.Millisecond)},
	}
	for _, row := range rows {
		if err := repo.RecordUsage(ctx, domain.UsageCounters{
			ID:             row.id,
			OrgID:          "org-1",
			ActiveUsers30d: row.users,
			CalculatedAt:   row.calculatedAt,
		}); err != nil {
			t.Fatalf("RecordUsage failed: %v", err)
		}
	}

	usage, err := repo.LatestUsageByOrg(ctx, "org-1")
	if err != nil {
		t.Fatalf("LatestUsageByOrg failed: %v", err)
	}
	if usage.ID != "aa-newer" {
		t.Errorf("ID = %q, want aa-newer", usage.ID)
	}
	if usage.ActiveUsers30d != 75 {
		t.Errorf("ActiveUsers30d = %d, want 75", usage.ActiveUsers30d)
	}
}

func TestLatestUsageByOrg_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.LatestUsageByOrg(context.Background(), "org-none")
	if !errors.Is(err, domain.ErrUsageNotFound) {
		t.Errorf("expected ErrUsageNotFound, got %v", err)
	}
}

func TestOrgIDsWithUsage_Distinct(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	rows := []struct{ id, org string }{
		{"u-1", "org-1"}, {"u-2", "org-1"}, {"u-3", "org-2"},
	}
	for i, row := range rows {
		if err := repo.RecordUsage(ctx, domain.UsageCounters{
			ID:           row.id,
			OrgID:        row.org,
			CalculatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("RecordUsage failed: %v", err)
		}
	}

	ids, err := repo.OrgIDsWithUsage(ctx)
	if err != nil {
		t.Fatalf("OrgIDsWithUsage failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("got %d org ids, want 2 distinct: %v", len(ids), ids)
	}
}

// --- Event log ---

func TestEventOutcome_NotLogged(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.EventOutcome(context.Background(), "fakepay", "nonexistent")
	if !errors.Is(err, domain.ErrEventNotLogged) {
		t.Errorf("expected ErrEventNotLogged, got %v", err)
	}
}

func TestEventOutcome_PerProvider(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	entry := logEntry("evt-1")
	entry.Outcome = domain.OutcomeIgnoredUnknown
	mustApply(t, repo, domain.ReconcileChange{Log: entry})

	outcome, err := repo.EventOutcome(ctx, "fakepay", "evt-1")
	if err != nil {
		t.Fatalf("EventOutcome failed: %v", err)
	}
	if outcome != domain.OutcomeIgnoredUnknown {
		t.Errorf("outcome = %q, want ignored_unknown", outcome)
	}

	// The same event id under a different provider is a different event.
	if _, err := repo.EventOutcome(ctx, "stripe", "evt-1"); !errors.Is(err, domain.ErrEventNotLogged) {
		t.Errorf("expected ErrEventNotLogged for other provider, got %v", err)
	}
}
