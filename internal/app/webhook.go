package app

import (
	"context"

	"github.com/neomorfeo/billiq/internal/domain"
)

// HandleWebhook verifies a raw provider delivery and reconciles the
// resulting event. Verification failures propagate so the transport
// can reject the delivery and the provider retries it.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) (domain.ReconcileResult, error) {
	event, err := s.provider.VerifyAndParse(payload, signature)
	if err != nil {
		return domain.ReconcileResult{}, err
	}
	return s.HandleEvent(ctx, event)
}
