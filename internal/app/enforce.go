package app

import (
	"context"

	"github.com/neomorfeo/billiq/internal/domain"
)

// CheckUsage resolves an org's entitlements and classifies its
// active-user usage into an enforcement tier.
func (s *BillingService) CheckUsage(ctx context.Context, orgID string) (domain.EnforcementResult, error) {
	resolved, err := s.Resolve(ctx, orgID)
	if err != nil {
		return domain.EnforcementResult{}, err
	}
	return domain.EvaluateEnforcement(resolved, s.policy), nil
}

// AssertWithinHardCap fails with *domain.HardCapExceededError when the
// org is at or beyond the hard threshold. Every other tier is advisory:
// callers may warn, but must not block.
func (s *BillingService) AssertWithinHardCap(ctx context.Context, orgID string) error {
	result, err := s.CheckUsage(ctx, orgID)
	if err != nil {
		return err
	}
	if result.Tier == domain.TierHardCap {
		var cap int64
		if result.Cap != nil {
			cap = *result.Cap
		}
		return &domain.HardCapExceededError{
			OrgID:       orgID,
			ActiveUsers: result.ActiveUsers,
			Cap:         cap,
		}
	}
	return nil
}
