package payout

import (
	"context"
	"time"

	"creatorhub-payments/pkg/accesscontrol"
	"creatorhub-payments/pkg/config"
	"creatorhub-payments/pkg/db/option"
	"creatorhub-payments/pkg/db/pagination"
	"creatorhub-payments/pkg/errutil"
	"creatorhub-payments/pkg/featureflags"
	"creatorhub-payments/pkg/middleware"
	"creatorhub-payments/pkg/provider"
	"creatorhub-payments/pkg/repository"
	"creatorhub-payments/pkg/sequence"
	"creatorhub-payments/services/campaign"
	"creatorhub-payments/services/creator"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	seq       sequence.Generator
	fee       *FeeCalculator
	providers provider.Registry
	authz     accesscontrol.Authorizer
	flags     featureflags.FeatureFlag
	creators  *creator.Service

	payouts   repository.Repository[PayoutRecord]
	campaigns repository.Repository[campaign.Campaign]
}

type ServiceParams struct {
	fx.In

	Config    *config.Config
	DB        *gorm.DB
	Node      *snowflake.Node
	Seq       sequence.Generator `optional:"true"`
	Providers provider.Registry
	Authz     accesscontrol.Authorizer
	Flags     featureflags.FeatureFlag
	Creators  *creator.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		seq:       p.Seq,
		fee:       NewFeeCalculator(p.Config.Fee.Rate),
		providers: p.Providers,
		authz:     p.Authz,
		flags:     p.Flags,
		creators:  p.Creators,
		payouts:   repository.ProvideStore[PayoutRecord](p.DB),
		campaigns: repository.ProvideStore[campaign.Campaign](p.DB),
	}
}

type ProcessRequest struct {
	CampaignID string `json:"campaign_id" binding:"required"`
	CreatorID  string `json:"creator_id" binding:"required"`
}

type ProcessResult struct {
	PayoutID  string    `json:"payout_id"`
	Code      string    `json:"code,omitempty"`
	Status    Status    `json:"status"`
	Provider  string    `json:"provider"`
	Reference string    `json:"reference"`
	Breakdown Breakdown `json:"breakdown"`
}

// Process releases a campaign's escrowed budget to a creator.
//
// All precondition checks run inside one transaction that also commits the
// record in `processing` state, so a crash between commit and provider call
// leaves a visible in-flight row instead of a silent double-pay window. The
// provider is invoked outside any transaction; the outcome is then applied
// in a second transaction that atomically moves the payout record, the
// campaign payment status and the creator stats together.
func (s *Service) Process(ctx context.Context, actor middleware.Actor, req ProcessRequest) (*ProcessResult, error) {
	var (
		record   *PayoutRecord
		cmp      *campaign.Campaign
		attached bool
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		cmp, err = s.campaigns.WithTrx(tx).FindOne(ctx, &campaign.Campaign{ID: req.CampaignID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if cmp == nil {
			return errutil.NotFound("campaign not found", nil)
		}

		if !s.authz.Can(actor.Role, "payouts", "process") && cmp.BrandID != actor.UserID {
			return errutil.Forbidden("not allowed to release this campaign's payout", nil)
		}

		if cmp.Status != campaign.StatusCompleted {
			return errutil.Conflict("campaign is not completed", nil)
		}
		if !cmp.Payable() {
			return errutil.Conflict("campaign payout already processed", nil)
		}
		if cmp.CreatorID != "" && cmp.CreatorID != req.CreatorID {
			return errutil.ValidationFailed("creator is not selected for this campaign", nil)
		}

		existing, err := s.payouts.WithTrx(tx).FindOne(ctx,
			&PayoutRecord{CampaignID: req.CampaignID, CreatorID: req.CreatorID},
			option.WithLockingUpdate(),
		)
		if err != nil {
			return err
		}
		if existing != nil && !existing.Retryable() {
			if existing.Status == StatusCompleted {
				return errutil.Conflict("payout already completed", nil)
			}
			// An attempt is already in flight. Attach to it instead of
			// starting a second transfer; the webhook or the reconcile
			// task settles it.
			record = existing
			attached = true
			return nil
		}

		profiles, err := s.creators.ProfilesTx(ctx, tx, req.CreatorID)
		if err != nil {
			return err
		}

		gatewayEnabled := s.flags.IsEnabled(ctx, FeatureGatewayPayouts)
		name, profile, ok := SelectProvider(profiles, gatewayEnabled)
		if !ok {
			return errutil.UnprocessableEntity("creator has no verified payment method", nil)
		}

		breakdown, err := s.fee.Calculate(cmp.Budget)
		if err != nil {
			return err
		}

		if existing != nil {
			record = existing
			if err := s.payouts.WithTrx(tx).Update(ctx, record.ID, map[string]any{
				"status":         StatusProcessing,
				"provider":       string(name),
				"recipient":      profile.AccountID,
				"gross_amount":   breakdown.Gross,
				"platform_fee":   breakdown.Fee,
				"net_amount":     breakdown.Net,
				"failure_reason": "",
				"attempts":       gorm.Expr("attempts + ?", 1),
			}); err != nil {
				return err
			}
			record.Status = StatusProcessing
			record.Provider = string(name)
			record.Recipient = profile.AccountID
			record.GrossAmount = breakdown.Gross
			record.PlatformFee = breakdown.Fee
			record.NetAmount = breakdown.Net
			record.FailureReason = ""
			record.Attempts++
			return nil
		}

		record = &PayoutRecord{
			ID:          s.node.Generate().String(),
			CampaignID:  cmp.ID,
			CreatorID:   req.CreatorID,
			BrandID:     cmp.BrandID,
			GrossAmount: breakdown.Gross,
			PlatformFee: breakdown.Fee,
			NetAmount:   breakdown.Net,
			Currency:    cmp.Currency,
			Provider:    string(name),
			Recipient:   profile.AccountID,
			Status:      StatusProcessing,
			Attempts:    1,
		}
		if s.seq != nil {
			code, err := s.seq.NextPayoutCode(ctx, cmp.BrandID)
			if err != nil {
				zap.L().Warn("failed to generate payout code", zap.Error(err))
			} else {
				record.Code = code
			}
		}

		return s.payouts.WithTrx(tx).Create(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	if attached {
		return &ProcessResult{
			PayoutID:  record.ID,
			Code:      record.Code,
			Status:    record.Status,
			Provider:  record.Provider,
			Reference: record.TransferReference(),
			Breakdown: Breakdown{Gross: record.GrossAmount, Fee: record.PlatformFee, Net: record.NetAmount},
		}, nil
	}

	client, ok := s.providers.Get(provider.Name(record.Provider))
	if !ok {
		// Configuration drift between selection and dispatch.
		_ = s.markFailed(ctx, record, "provider not configured")
		return nil, errutil.Internal("payout provider not configured", nil)
	}

	result := client.Transfer(ctx, provider.TransferRequest{
		Recipient:   record.Recipient,
		Amount:      record.NetAmount,
		Currency:    record.Currency,
		Reference:   record.TransferReference(),
		Description: "Creator payout for campaign " + record.CampaignID,
	})

	switch result.Status {
	case provider.StatusSuccess:
		if err := s.finalize(ctx, record, result.ProviderTxID); err != nil {
			return nil, err
		}
	case provider.StatusPending:
		// Leave the record in processing; the provider webhook or the
		// reconciliation task settles it.
		zap.L().Info("payout transfer pending provider confirmation",
			zap.String("payout_id", record.ID),
			zap.String("provider", record.Provider),
		)
	default:
		if err := s.markFailed(ctx, record, result.Message); err != nil {
			return nil, err
		}
		return nil, errutil.Internal("payout transfer failed", nil, errutil.WithDetails(errutil.Detail{
			Field:   "provider",
			Message: result.Message,
		}))
	}

	return &ProcessResult{
		PayoutID:  record.ID,
		Code:      record.Code,
		Status:    record.Status,
		Provider:  record.Provider,
		Reference: record.TransferReference(),
		Breakdown: Breakdown{Gross: record.GrossAmount, Fee: record.PlatformFee, Net: record.NetAmount},
	}, nil
}

// finalize applies a successful transfer: the payout record, the campaign's
// payment release and the creator's lifetime stats move in one transaction.
func (s *Service) finalize(ctx context.Context, record *PayoutRecord, providerTxID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.payouts.WithTrx(tx).FindOne(ctx, &PayoutRecord{ID: record.ID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if current == nil {
			return errutil.NotFound("payout record not found", nil)
		}
		if current.Status == StatusCompleted {
			// Already settled, e.g. by a webhook racing this call.
			record.Status = StatusCompleted
			return nil
		}

		now := time.Now().UTC()
		if err := s.payouts.WithTrx(tx).Update(ctx, record.ID, map[string]any{
			"status":         StatusCompleted,
			"provider_tx_id": providerTxID,
			"completed_at":   now,
		}); err != nil {
			return err
		}

		if err := s.campaigns.WithTrx(tx).Update(ctx, current.CampaignID, map[string]any{
			"payment_status":        campaign.PaymentReleased,
			"payout_transaction_id": record.ID,
			"payout_amount":         current.NetAmount,
			"platform_fee":          current.PlatformFee,
			"payout_provider":       current.Provider,
			"payment_error":         "",
		}); err != nil {
			return err
		}

		if err := s.creators.IncrementStats(ctx, tx, current.CreatorID, current.NetAmount); err != nil {
			return err
		}

		record.Status = StatusCompleted
		record.ProviderTxID = providerTxID
		record.CompletedAt = &now
		return nil
	})
}

// markFailed records a definite provider failure. Failure is data, not an
// exceptional state: the row stays and a later retry reuses it.
func (s *Service) markFailed(ctx context.Context, record *PayoutRecord, reason string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.payouts.WithTrx(tx).FindOne(ctx, &PayoutRecord{ID: record.ID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if current == nil || current.Status == StatusCompleted {
			return nil
		}

		if err := s.payouts.WithTrx(tx).Update(ctx, record.ID, map[string]any{
			"status":         StatusFailed,
			"failure_reason": reason,
		}); err != nil {
			return err
		}

		return s.campaigns.WithTrx(tx).Update(ctx, current.CampaignID, map[string]any{
			"payment_error": reason,
		})
	})
	if err != nil {
		return err
	}

	record.Status = StatusFailed
	record.FailureReason = reason
	return nil
}

type HistoryRequest struct {
	pagination.Pagination
	CreatorID  string `form:"creator_id"`
	CampaignID string `form:"campaign_id"`
	Status     string `form:"status"`
}

type HistoryResponse struct {
	Data     []*PayoutRecord      `json:"data"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

// History lists payout records visible to the actor. Admins see everything;
// brands see their own campaigns' payouts; creators see payouts addressed to
// them.
func (s *Service) History(ctx context.Context, actor middleware.Actor, req HistoryRequest) (*HistoryResponse, error) {
	query := &PayoutRecord{
		CreatorID:  req.CreatorID,
		CampaignID: req.CampaignID,
		Status:     Status(req.Status),
	}

	if !s.authz.Can(actor.Role, "payouts", "read_all") {
		switch actor.Role {
		case "creator":
			query.CreatorID = actor.UserID
		default:
			query.BrandID = actor.UserID
		}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc", Allow: map[string]bool{"created_at": true}}),
		option.WithLimit(limit + 1),
	}

	if req.Cursor != "" {
		cursor, err := pagination.DecodeCursor(req.Cursor)
		if err != nil {
			return nil, errutil.ValidationFailed("invalid cursor", err)
		}
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "created_at",
			Operator: option.LT,
			Value:    cursor.CreatedAt,
		}))
	}

	records, err := s.payouts.Find(ctx, query, opts...)
	if err != nil {
		return nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(records, int32(limit), func(r *PayoutRecord) string {
		c, _ := pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339Nano),
			ID:        r.ID,
		})
		return c
	})
	if len(records) > limit {
		records = records[:limit]
	}

	return &HistoryResponse{Data: records, PageInfo: pageInfo}, nil
}

// Get returns a single payout record.
func (s *Service) Get(ctx context.Context, id string) (*PayoutRecord, error) {
	record, err := s.payouts.FindOne(ctx, &PayoutRecord{ID: id})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, errutil.NotFound("payout record not found", nil)
	}
	return record, nil
}
