package river

import (
	"context"
	"errors"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/billiq/internal/domain"
)

// RefreshWorker processes entitlement refresh jobs. It re-reads the
// org's newest snapshot so the resolver-facing rows are warm in the
// page cache, and logs the refresh for operators. Best-effort by
// contract: failures here never touch the recorded reconciliation.
type RefreshWorker struct {
	river.WorkerDefaults[RefreshJobArgs]

	repo domain.BillingRepository
}

// NewRefreshWorker creates a refresh worker reading through the given
// repository.
func NewRefreshWorker(repo domain.BillingRepository) *RefreshWorker {
	return &RefreshWorker{repo: repo}
}

// Work processes a single refresh job.
func (w *RefreshWorker) Work(ctx context.Context, job *river.Job[RefreshJobArgs]) error {
	snap, err := w.repo.LatestSnapshotByOrg(ctx, job.Args.OrgID)
	if err != nil && !errors.Is(err, domain.ErrSnapshotNotFound) {
		return err
	}

	attrs := []any{
		"org_id", job.Args.OrgID,
		"provider", job.Args.Provider,
		"event_id", job.Args.EventID,
		"job_id", job.ID,
		"attempt", job.Attempt,
	}
	if err == nil {
		attrs = append(attrs, "snapshot_id", snap.ID, "source", snap.Source)
	}
	slog.InfoContext(ctx, "entitlements refreshed", attrs...)
	return nil
}

// SweepWorker periodically evaluates every org with recorded usage
// against its caps and logs the ones over the line, giving operators a
// push-based view of approaching enforcement instead of waiting for a
// blocked request.
type SweepWorker struct {
	river.WorkerDefaults[SweepJobArgs]

	repo   domain.BillingRepository
	policy domain.EnforcementPolicy
}

// NewSweepWorker creates an enforcement sweep worker.
func NewSweepWorker(repo domain.BillingRepository, policy domain.EnforcementPolicy) *SweepWorker {
	return &SweepWorker{repo: repo, policy: policy}
}

// Work evaluates enforcement for every org with usage data.
func (w *SweepWorker) Work(ctx context.Context, job *river.Job[SweepJobArgs]) error {
	orgIDs, err := w.repo.OrgIDsWithUsage(ctx)
	if err != nil {
		return err
	}

	flagged := 0
	for _, orgID := range orgIDs {
		result, err := w.evaluate(ctx, orgID)
		if err != nil {
			slog.WarnContext(ctx, "enforcement sweep: org evaluation failed",
				"org_id", orgID, "error", err)
			continue
		}
		if result.Tier == domain.TierOK {
			continue
		}
		flagged++
		slog.WarnContext(ctx, "org over active-user cap",
			"org_id", orgID,
			"tier", result.Tier,
			"active_users", result.ActiveUsers,
			"ratio", result.Ratio,
			"grace_until", result.GraceUntil,
		)
	}

	slog.InfoContext(ctx, "enforcement sweep complete",
		"orgs", len(orgIDs), "flagged", flagged, "job_id", job.ID)
	return nil
}

func (w *SweepWorker) evaluate(ctx context.Context, orgID string) (domain.EnforcementResult, error) {
	var (
		sub   *domain.Subscription
		snap  *domain.EntitlementSnapshot
		usage *domain.UsageCounters
	)

	if latest, err := w.repo.LatestSubscriptionByOrg(ctx, orgID); err == nil {
		sub = &latest
	} else if !errors.Is(err, domain.ErrSubscriptionNotFound) {
		return domain.EnforcementResult{}, err
	}

	if latest, err := w.repo.LatestSnapshotByOrg(ctx, orgID); err == nil {
		snap = &latest
	} else if !errors.Is(err, domain.ErrSnapshotNotFound) {
		return domain.EnforcementResult{}, err
	}

	if latest, err := w.repo.LatestUsageByOrg(ctx, orgID); err == nil {
		usage = &latest
	} else if !errors.Is(err, domain.ErrUsageNotFound) {
		return domain.EnforcementResult{}, err
	}

	resolved := domain.ResolveEntitlements(orgID, sub, snap, usage)
	return domain.EvaluateEnforcement(resolved, w.policy), nil
}
