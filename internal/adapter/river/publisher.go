package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/billiq/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// RefreshJobArgs carries a committed reconciliation outcome into the
// job queue. River serializes this as JSON; it is a snapshot of the
// refresh at publish time, so the worker never depends on the event
// still being interesting.
type RefreshJobArgs struct {
	OrgID    string `json:"org_id"`
	Provider string `json:"provider"`
	EventID  string `json:"event_id"`
	PlanCode string `json:"plan_code"`
	Source   string `json:"source"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (RefreshJobArgs) Kind() string { return "entitlement.refreshed" }

// SweepJobArgs triggers one enforcement sweep over every org with
// recorded usage.
type SweepJobArgs struct{}

// Kind returns the unique job type identifier used by River's job routing.
func (SweepJobArgs) Kind() string { return "enforcement.sweep" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues an entitlement refresh as an async job in River.
func (p *Publisher) Publish(ctx context.Context, refresh domain.EntitlementRefresh) error {
	_, err := p.client.Insert(ctx, RefreshJobArgs{
		OrgID:    refresh.OrgID,
		Provider: refresh.Provider,
		EventID:  refresh.EventID,
		PlanCode: refresh.PlanCode,
		Source:   string(refresh.Source),
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing refresh job: %w", err)
	}
	return nil
}
