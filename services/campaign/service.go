package campaign

import (
	"context"
	"time"

	"creatorhub-payments/pkg/db/option"
	"creatorhub-payments/pkg/errutil"
	"creatorhub-payments/pkg/middleware"
	"creatorhub-payments/pkg/repository"
	"creatorhub-payments/pkg/sequence"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	seq  sequence.Generator

	campaigns repository.Repository[Campaign]
}

type ServiceParams struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
	Seq  sequence.Generator `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		seq:       p.Seq,
		campaigns: repository.ProvideStore[Campaign](p.DB),
	}
}

type CreateCampaignRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	CreatorID   string     `json:"creator_id"`
	Budget      float64    `json:"budget" binding:"required"`
	Currency    string     `json:"currency"`
	EndsAt      *time.Time `json:"ends_at"`
}

func (s *Service) Create(ctx context.Context, actor middleware.Actor, req CreateCampaignRequest) (*Campaign, error) {
	if req.Budget < 0 {
		return nil, errutil.ValidationFailed("budget must not be negative", nil)
	}

	currency := req.Currency
	if currency == "" {
		currency = "ETB"
	}

	c := &Campaign{
		ID:            s.node.Generate().String(),
		BrandID:       actor.UserID,
		CreatorID:     req.CreatorID,
		Title:         req.Title,
		Description:   req.Description,
		Budget:        req.Budget,
		Currency:      currency,
		Status:        StatusDraft,
		PaymentStatus: PaymentPending,
		EndsAt:        req.EndsAt,
	}

	if s.seq != nil {
		code, err := s.seq.NextCampaignCode(ctx, actor.UserID)
		if err != nil {
			zap.L().Warn("failed to generate campaign code", zap.Error(err))
		} else {
			c.Code = code
		}
	}

	if err := s.campaigns.Create(ctx, c); err != nil {
		return nil, errutil.Internal("failed to create campaign", err)
	}

	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Campaign, error) {
	if id == "" {
		return nil, errutil.ValidationFailed("campaign id is required", nil)
	}

	c, err := s.campaigns.FindOne(ctx, &Campaign{ID: id})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errutil.NotFound("campaign not found", nil)
	}

	return c, nil
}

func (s *Service) ListByBrand(ctx context.Context, brandID string, limit int) ([]*Campaign, error) {
	return s.campaigns.Find(ctx, &Campaign{BrandID: brandID},
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc", Allow: map[string]bool{"created_at": true}}),
		option.WithLimit(limit),
	)
}

// UpdateStatus advances the campaign lifecycle. Activating a draft escrows
// the budget; payout release itself is owned by the payout service.
func (s *Service) UpdateStatus(ctx context.Context, actor middleware.Actor, id string, next Status) (*Campaign, error) {
	var updated *Campaign
	err := s.db.Transaction(func(tx *gorm.DB) error {
		c, err := s.campaigns.WithTrx(tx).FindOne(ctx, &Campaign{ID: id}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if c == nil {
			return errutil.NotFound("campaign not found", nil)
		}

		if actor.Role != "admin" && c.BrandID != actor.UserID {
			return errutil.Forbidden("only the campaign brand may change its status", nil)
		}

		if !c.CanTransitionTo(next) {
			return errutil.Conflict("invalid status transition", nil)
		}

		updates := map[string]any{"status": next}
		if c.Status == StatusDraft && next == StatusActive {
			updates["payment_status"] = PaymentEscrowed
		}

		if err := s.campaigns.WithTrx(tx).Update(ctx, c.ID, updates); err != nil {
			return err
		}

		updated, err = s.campaigns.WithTrx(tx).FindOne(ctx, &Campaign{ID: id})
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// ExpireDue cancels active campaigns that ran past their end date and returns
// escrowed budgets to the brand. Each campaign moves in its own transaction
// so one contended row does not wedge the sweep.
func (s *Service) ExpireDue(ctx context.Context, limit int) (int, error) {
	due, err := s.campaigns.Find(ctx, &Campaign{Status: StatusActive},
		option.ApplyOperator(option.Condition{Field: "ends_at", Operator: option.LT, Value: time.Now().UTC()}),
		option.WithLimit(limit),
	)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, c := range due {
		cancelled := false
		err := s.db.Transaction(func(tx *gorm.DB) error {
			current, err := s.campaigns.WithTrx(tx).FindOne(ctx, &Campaign{ID: c.ID}, option.WithLockingUpdate())
			if err != nil {
				return err
			}
			if current == nil || current.Status != StatusActive {
				return nil
			}

			updates := map[string]any{"status": StatusCancelled}
			if current.PaymentStatus == PaymentEscrowed {
				updates["payment_status"] = PaymentRefunded
			}
			if err := s.campaigns.WithTrx(tx).Update(ctx, current.ID, updates); err != nil {
				return err
			}
			cancelled = true
			return nil
		})
		if err != nil {
			return expired, err
		}
		if cancelled {
			expired++
		}
	}

	return expired, nil
}
