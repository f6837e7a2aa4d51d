package payout

import (
	"context"

	"creatorhub-payments/pkg/provider"

	"go.uber.org/zap"
)

// WebhookEvent is the normalized shape of a provider callback after
// adapter-specific parsing and signature verification.
type WebhookEvent struct {
	Provider     provider.Name
	Reference    string
	Status       provider.TransferStatus
	ProviderTxID string
	Message      string
}

// Reconcile applies a provider callback to the payout it references.
//
// Reconciliation is idempotent and tolerant: an unknown or malformed
// reference is logged and dropped, a record already completed is left
// untouched, and a pending status is a no-op. Errors here never propagate to
// the provider; callbacks are always acknowledged.
func (s *Service) Reconcile(ctx context.Context, event WebhookEvent) {
	id, err := ParseTransferReference(event.Reference)
	if err != nil {
		zap.L().Warn("dropping webhook with unparseable reference",
			zap.String("provider", string(event.Provider)),
			zap.String("reference", event.Reference),
			zap.Error(err),
		)
		return
	}

	record, err := s.payouts.FindOne(ctx, &PayoutRecord{ID: id})
	if err != nil {
		zap.L().Error("failed to load payout for webhook", zap.String("payout_id", id), zap.Error(err))
		return
	}
	if record == nil {
		zap.L().Warn("webhook references unknown payout",
			zap.String("provider", string(event.Provider)),
			zap.String("payout_id", id),
		)
		return
	}

	if record.Status == StatusCompleted {
		return
	}
	if record.Provider != string(event.Provider) {
		zap.L().Warn("webhook provider does not match payout record",
			zap.String("payout_id", record.ID),
			zap.String("record_provider", record.Provider),
			zap.String("webhook_provider", string(event.Provider)),
		)
		return
	}

	switch event.Status {
	case provider.StatusSuccess:
		if err := s.finalize(ctx, record, event.ProviderTxID); err != nil {
			zap.L().Error("failed to finalize payout from webhook",
				zap.String("payout_id", record.ID),
				zap.Error(err),
			)
		}
	case provider.StatusFailed:
		reason := event.Message
		if reason == "" {
			reason = "provider reported failure"
		}
		if err := s.markFailed(ctx, record, reason); err != nil {
			zap.L().Error("failed to mark payout failed from webhook",
				zap.String("payout_id", record.ID),
				zap.Error(err),
			)
		}
	default:
		// Still pending provider-side.
	}
}
