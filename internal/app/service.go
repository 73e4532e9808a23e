package app

import (
	"log/slog"

	"github.com/neomorfeo/billiq/internal/domain"
)

// BillingService orchestrates checkout, webhook reconciliation,
// entitlement resolution, and usage enforcement.
type BillingService struct {
	repo      domain.BillingRepository
	provider  domain.PaymentProvider
	validator domain.OrderTransitionValidator
	publisher domain.EventPublisher
	policy    domain.EnforcementPolicy
	log       *slog.Logger
}

// NewBillingService creates a service with the given adapters.
func NewBillingService(
	repo domain.BillingRepository,
	provider domain.PaymentProvider,
	validator domain.OrderTransitionValidator,
	publisher domain.EventPublisher,
	policy domain.EnforcementPolicy,
	log *slog.Logger,
) *BillingService {
	if log == nil {
		log = slog.Default()
	}
	return &BillingService{
		repo:      repo,
		provider:  provider,
		validator: validator,
		publisher: publisher,
		policy:    policy,
		log:       log,
	}
}
