package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/neomorfeo/billiq/internal/domain"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// BillingRepository implements domain.BillingRepository using SQLite.
type BillingRepository struct {
	db *sql.DB
}

// Compile-time check: BillingRepository implements the port.
var _ domain.BillingRepository = (*BillingRepository)(nil)

// New opens a SQLite database, runs migrations, and returns a ready
// repository.
func New(dataSourceName string) (*BillingRepository, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and
// returns a ready repository. Use this when the *sql.DB has been
// pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*BillingRepository, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &BillingRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *BillingRepository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other
// adapters (e.g., river).
func (r *BillingRepository) DB() *sql.DB {
	return r.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// timeFormat keeps nanosecond precision with fixed-width fractional
// digits, so lexicographic order of stored strings is chronological
// order. Recency queries tie-break on rowid (insertion order), never
// on the random id.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// --- Pending orders ---

func (r *BillingRepository) CreateOrder(ctx context.Context, order domain.PendingOrder) error {
	caps, err := json.Marshal(order.ProjectedCaps)
	if err != nil {
		return fmt.Errorf("encoding projected caps: %w", err)
	}
	warnings, err := json.Marshal(orEmpty(order.Warnings))
	if err != nil {
		return fmt.Errorf("encoding warnings: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO pending_orders
		   (id, org_id, tenant_id, plan_code, projected_caps, provider, checkout_ref,
		    provider_subscription_id, status, warnings, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.OrgID, order.TenantID, order.PlanCode, string(caps),
		order.Provider, order.CheckoutRef, order.ProviderSubscriptionID,
		string(order.Status), string(warnings),
		order.CreatedAt.UTC().Format(timeFormat), order.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting pending order: %w", err)
	}
	return nil
}

const orderColumns = `id, org_id, tenant_id, plan_code, projected_caps, provider,
	checkout_ref, provider_subscription_id, status, warnings, created_at, updated_at`

func (r *BillingRepository) GetOrder(ctx context.Context, id string) (domain.PendingOrder, error) {
	return r.scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM pending_orders WHERE id = ?`, id,
	))
}

func (r *BillingRepository) SetOrderCheckoutRef(ctx context.Context, id, provider, checkoutRef string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE pending_orders SET provider = ?, checkout_ref = ?, updated_at = ?
		 WHERE id = ?`,
		provider, checkoutRef, time.Now().UTC().Format(timeFormat), id,
	)
	if err != nil {
		return fmt.Errorf("stamping checkout ref: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}

func (r *BillingRepository) FindOpenOrderByCheckoutRef(ctx context.Context, provider, checkoutRef string) (domain.PendingOrder, error) {
	return r.scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM pending_orders
		 WHERE provider = ? AND checkout_ref = ? AND checkout_ref != '' AND status = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		provider, checkoutRef, string(domain.OrderPending),
	))
}

func (r *BillingRepository) FindOpenOrderBySubscriptionRef(ctx context.Context, provider, subscriptionID string) (domain.PendingOrder, error) {
	return r.scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM pending_orders
		 WHERE provider = ? AND provider_subscription_id = ? AND provider_subscription_id != ''
		   AND status = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		provider, subscriptionID, string(domain.OrderPending),
	))
}

func (r *BillingRepository) ListOrdersByOrg(ctx context.Context, orgID string) ([]domain.PendingOrder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM pending_orders
		 WHERE org_id = ? ORDER BY created_at DESC, rowid DESC`, orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing pending orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.PendingOrder
	for rows.Next() {
		order, err := r.scanOrderFromRows(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

// --- Subscriptions ---

func (r *BillingRepository) LatestSubscriptionByOrg(ctx context.Context, orgID string) (domain.Subscription, error) {
	return r.scanSubscription(r.db.QueryRowContext(ctx,
		`SELECT id, provider, provider_subscription_id, org_id, plan_code, status,
		        current_period_start, current_period_end, cancel_at_period_end,
		        created_at, updated_at
		 FROM subscriptions WHERE org_id = ?
		 ORDER BY current_period_end DESC NULLS LAST, updated_at DESC, rowid DESC LIMIT 1`,
		orgID,
	))
}

// --- Entitlement snapshots ---

func (r *BillingRepository) LatestSnapshotByOrg(ctx context.Context, orgID string) (domain.EntitlementSnapshot, error) {
	var (
		snap      domain.EntitlementSnapshot
		source    string
		caps      string
		flags     string
		createdAt string
	)

	err := r.db.QueryRowContext(ctx,
		`SELECT id, org_id, caps, source, flags, created_at
		 FROM entitlement_snapshots WHERE org_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`, orgID,
	).Scan(&snap.ID, &snap.OrgID, &caps, &source, &flags, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.EntitlementSnapshot{}, domain.ErrSnapshotNotFound
		}
		return domain.EntitlementSnapshot{}, fmt.Errorf("scanning snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(caps), &snap.Caps); err != nil {
		return domain.EntitlementSnapshot{}, fmt.Errorf("decoding snapshot caps: %w", err)
	}
	if err := json.Unmarshal([]byte(flags), &snap.Flags); err != nil {
		return domain.EntitlementSnapshot{}, fmt.Errorf("decoding snapshot flags: %w", err)
	}
	snap.Source = domain.SnapshotSource(source)
	snap.CreatedAt, _ = time.Parse(timeFormat, createdAt)

	return snap, nil
}

// --- Usage counters ---

func (r *BillingRepository) LatestUsageByOrg(ctx context.Context, orgID string) (domain.UsageCounters, error) {
	var (
		usage        domain.UsageCounters
		calculatedAt string
	)

	err := r.db.QueryRowContext(ctx,
		`SELECT id, org_id, active_users_30d, storage_mb, messages_this_month, calculated_at
		 FROM usage_counters WHERE org_id = ?
		 ORDER BY calculated_at DESC, rowid DESC LIMIT 1`, orgID,
	).Scan(&usage.ID, &usage.OrgID, &usage.ActiveUsers30d, &usage.StorageMB,
		&usage.MessagesThisMonth, &calculatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.UsageCounters{}, domain.ErrUsageNotFound
		}
		return domain.UsageCounters{}, fmt.Errorf("scanning usage counters: %w", err)
	}

	usage.CalculatedAt, _ = time.Parse(timeFormat, calculatedAt)
	return usage, nil
}

func (r *BillingRepository) RecordUsage(ctx context.Context, usage domain.UsageCounters) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO usage_counters (id, org_id, active_users_30d, storage_mb, messages_this_month, calculated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		usage.ID, usage.OrgID, usage.ActiveUsers30d, usage.StorageMB,
		usage.MessagesThisMonth, usage.CalculatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting usage counters: %w", err)
	}
	return nil
}

func (r *BillingRepository) OrgIDsWithUsage(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT org_id FROM usage_counters`)
	if err != nil {
		return nil, fmt.Errorf("listing orgs with usage: %w", err)
	}
	defer rows.Close()

	var orgIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning org id: %w", err)
		}
		orgIDs = append(orgIDs, id)
	}

	return orgIDs, rows.Err()
}

// --- Event log / reconciliation ---

func (r *BillingRepository) EventOutcome(ctx context.Context, provider, eventID string) (domain.EventOutcome, error) {
	var outcome string
	err := r.db.QueryRowContext(ctx,
		`SELECT outcome FROM billing_event_log WHERE provider = ? AND event_id = ?`,
		provider, eventID,
	).Scan(&outcome)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", domain.ErrEventNotLogged
		}
		return "", fmt.Errorf("scanning event outcome: %w", err)
	}
	return domain.EventOutcome(outcome), nil
}

// ApplyReconciliation commits one event's writes in a single SQLite
// transaction. The event-log insert runs last: its primary key on
// (provider, event_id) is the authoritative duplicate guard, so a
// racing duplicate delivery fails there and rolls back every other
// write with it.
func (r *BillingRepository) ApplyReconciliation(ctx context.Context, change domain.ReconcileChange) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning reconciliation tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if change.Subscription != nil {
		if err := upsertSubscription(ctx, tx, *change.Subscription); err != nil {
			return err
		}
	}

	if change.Snapshot != nil {
		if err := insertSnapshot(ctx, tx, *change.Snapshot); err != nil {
			return err
		}
	}

	if change.CompleteOrderID != "" {
		if err := completeOrder(ctx, tx, change.CompleteOrderID, change.ProviderSubscriptionID); err != nil {
			return err
		}
	}

	if err := insertLogEntry(ctx, tx, change.Log); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reconciliation tx: %w", err)
	}
	return nil
}

func upsertSubscription(ctx context.Context, tx *sql.Tx, sub domain.Subscription) error {
	now := time.Now().UTC().Format(timeFormat)

	// Empty plan/org/period fields on the incoming event keep whatever
	// an earlier event already established.
	_, err := tx.ExecContext(ctx,
		`INSERT INTO subscriptions
		   (id, provider, provider_subscription_id, org_id, plan_code, status,
		    current_period_start, current_period_end, cancel_at_period_end, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (provider, provider_subscription_id) DO UPDATE SET
		   org_id = CASE WHEN excluded.org_id != '' THEN excluded.org_id ELSE org_id END,
		   plan_code = CASE WHEN excluded.plan_code != '' THEN excluded.plan_code ELSE plan_code END,
		   status = excluded.status,
		   current_period_start = COALESCE(excluded.current_period_start, current_period_start),
		   current_period_end = COALESCE(excluded.current_period_end, current_period_end),
		   cancel_at_period_end = excluded.cancel_at_period_end,
		   updated_at = excluded.updated_at`,
		sub.ID, sub.Provider, sub.ProviderSubscriptionID, sub.OrgID, sub.PlanCode,
		string(sub.Status), nullableTime(sub.CurrentPeriodStart), nullableTime(sub.CurrentPeriodEnd),
		boolToInt(sub.CancelAtPeriodEnd), now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting subscription: %w", err)
	}
	return nil
}

func insertSnapshot(ctx context.Context, tx *sql.Tx, snap domain.EntitlementSnapshot) error {
	caps, err := json.Marshal(snap.Caps)
	if err != nil {
		return fmt.Errorf("encoding snapshot caps: %w", err)
	}
	flags, err := json.Marshal(orEmptyMap(snap.Flags))
	if err != nil {
		return fmt.Errorf("encoding snapshot flags: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entitlement_snapshots (id, org_id, caps, source, flags, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.OrgID, string(caps), string(snap.Source), string(flags),
		snap.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting entitlement snapshot: %w", err)
	}
	return nil
}

func completeOrder(ctx context.Context, tx *sql.Tx, orderID, providerSubscriptionID string) error {
	// The status guard makes completion monotonic even if two events
	// for the same order race: only one update finds the row pending.
	result, err := tx.ExecContext(ctx,
		`UPDATE pending_orders
		 SET status = ?, provider_subscription_id = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(domain.OrderCompleted), providerSubscriptionID,
		time.Now().UTC().Format(timeFormat), orderID, string(domain.OrderPending),
	)
	if err != nil {
		return fmt.Errorf("completing pending order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return &domain.OrderTransitionError{Event: domain.EventOrderFulfilled, Current: domain.OrderCompleted}
	}

	return nil
}

func insertLogEntry(ctx context.Context, tx *sql.Tx, entry domain.EventLogEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO billing_event_log (provider, event_id, kind, outcome, org_id, received_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Provider, entry.EventID, string(entry.Kind), string(entry.Outcome),
		entry.OrgID, entry.ReceivedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEvent
		}
		return fmt.Errorf("inserting event log entry: %w", err)
	}
	return nil
}

// --- Scan helpers ---

func (r *BillingRepository) scanOrder(row *sql.Row) (domain.PendingOrder, error) {
	var (
		order                  domain.PendingOrder
		caps, warnings, status string
		createdAt, updatedAt   string
	)

	err := row.Scan(&order.ID, &order.OrgID, &order.TenantID, &order.PlanCode, &caps,
		&order.Provider, &order.CheckoutRef, &order.ProviderSubscriptionID,
		&status, &warnings, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.PendingOrder{}, domain.ErrOrderNotFound
		}
		return domain.PendingOrder{}, fmt.Errorf("scanning pending order: %w", err)
	}

	return decodeOrder(order, caps, warnings, status, createdAt, updatedAt)
}

func (r *BillingRepository) scanOrderFromRows(rows *sql.Rows) (domain.PendingOrder, error) {
	var (
		order                  domain.PendingOrder
		caps, warnings, status string
		createdAt, updatedAt   string
	)

	err := rows.Scan(&order.ID, &order.OrgID, &order.TenantID, &order.PlanCode, &caps,
		&order.Provider, &order.CheckoutRef, &order.ProviderSubscriptionID,
		&status, &warnings, &createdAt, &updatedAt)
	if err != nil {
		return domain.PendingOrder{}, fmt.Errorf("scanning pending order: %w", err)
	}

	return decodeOrder(order, caps, warnings, status, createdAt, updatedAt)
}

func decodeOrder(order domain.PendingOrder, caps, warnings, status, createdAt, updatedAt string) (domain.PendingOrder, error) {
	if err := json.Unmarshal([]byte(caps), &order.ProjectedCaps); err != nil {
		return domain.PendingOrder{}, fmt.Errorf("decoding projected caps: %w", err)
	}
	if err := json.Unmarshal([]byte(warnings), &order.Warnings); err != nil {
		return domain.PendingOrder{}, fmt.Errorf("decoding warnings: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	order.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	order.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	return order, nil
}

func (r *BillingRepository) scanSubscription(row *sql.Row) (domain.Subscription, error) {
	var (
		sub                  domain.Subscription
		status               string
		periodStart          sql.NullString
		periodEnd            sql.NullString
		cancelAtPeriodEnd    int
		createdAt, updatedAt string
	)

	err := row.Scan(&sub.ID, &sub.Provider, &sub.ProviderSubscriptionID, &sub.OrgID,
		&sub.PlanCode, &status, &periodStart, &periodEnd, &cancelAtPeriodEnd,
		&createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Subscription{}, domain.ErrSubscriptionNotFound
		}
		return domain.Subscription{}, fmt.Errorf("scanning subscription: %w", err)
	}

	sub.Status = domain.SubscriptionStatus(status)
	sub.CurrentPeriodStart = parseNullableTime(periodStart)
	sub.CurrentPeriodEnd = parseNullableTime(periodEnd)
	sub.CancelAtPeriodEnd = cancelAtPeriodEnd != 0
	sub.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	sub.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return sub, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeFormat)
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(timeFormat, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint
// violation. The event-log primary key surfaces through here.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
