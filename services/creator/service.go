package creator

import (
	"context"
	"time"

	"creatorhub-payments/pkg/errutil"
	"creatorhub-payments/pkg/provider"
	"creatorhub-payments/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	providers provider.Registry

	profiles repository.Repository[PaymentProfile]
	stats    repository.Repository[Stats]
}

type ServiceParams struct {
	fx.In

	DB        *gorm.DB
	Node      *snowflake.Node
	Providers provider.Registry
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		providers: p.Providers,
		profiles:  repository.ProvideStore[PaymentProfile](p.DB),
		stats:     repository.ProvideStore[Stats](p.DB),
	}
}

type VerifyAccountRequest struct {
	CreatorID string `json:"creator_id" binding:"required"`
	Provider  string `json:"provider" binding:"required"`
	AccountID string `json:"account_id" binding:"required"`
}

type VerifyAccountResult struct {
	Verified    bool   `json:"verified"`
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name,omitempty"`
}

// VerifyAccount validates the account identifier locally, resolves it with
// the provider, and upserts the creator's payment profile. A profile that
// fails provider resolution is stored unverified so a later retry can
// complete it.
func (s *Service) VerifyAccount(ctx context.Context, req VerifyAccountRequest) (*VerifyAccountResult, error) {
	name := provider.Name(req.Provider)
	client, ok := s.providers.Get(name)
	if !ok {
		return nil, errutil.ValidationFailed("unknown provider", nil)
	}

	validation := client.ValidateRecipient(req.AccountID)
	if !validation.Valid {
		return nil, errutil.ValidationFailed(validation.Message, nil)
	}
	accountID := validation.Normalized

	verification, err := client.VerifyAccount(ctx, accountID)
	if err != nil {
		zap.L().Warn("provider account verification failed",
			zap.String("provider", req.Provider),
			zap.String("creator_id", req.CreatorID),
			zap.Error(err),
		)
		return nil, errutil.BadGateway("provider verification unavailable", err)
	}

	existing, err := s.profiles.FindOne(ctx, &PaymentProfile{CreatorID: req.CreatorID, Provider: req.Provider})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if existing == nil {
		profile := &PaymentProfile{
			ID:          s.node.Generate().String(),
			CreatorID:   req.CreatorID,
			Provider:    req.Provider,
			AccountID:   accountID,
			DisplayName: verification.DisplayName,
			IsVerified:  verification.Verified,
		}
		if verification.Verified {
			profile.VerifiedAt = &now
		}
		if err := s.profiles.Create(ctx, profile); err != nil {
			return nil, errutil.Internal("failed to save payment profile", err)
		}
	} else {
		updates := map[string]any{
			"account_id":   accountID,
			"display_name": verification.DisplayName,
			"is_verified":  verification.Verified,
		}
		if verification.Verified {
			updates["verified_at"] = now
		}
		if err := s.profiles.Update(ctx, existing.ID, updates); err != nil {
			return nil, errutil.Internal("failed to update payment profile", err)
		}
	}

	return &VerifyAccountResult{
		Verified:    verification.Verified,
		AccountID:   accountID,
		DisplayName: verification.DisplayName,
	}, nil
}

// Profiles returns all payment profiles for a creator.
func (s *Service) Profiles(ctx context.Context, creatorID string) ([]*PaymentProfile, error) {
	return s.ProfilesTx(ctx, nil, creatorID)
}

// ProfilesTx is Profiles scoped to the caller's transaction, for reads that
// must see and participate in an open transaction's snapshot.
func (s *Service) ProfilesTx(ctx context.Context, tx *gorm.DB, creatorID string) ([]*PaymentProfile, error) {
	if creatorID == "" {
		return nil, errutil.ValidationFailed("creator id is required", nil)
	}
	return s.profiles.WithTrx(tx).Find(ctx, &PaymentProfile{CreatorID: creatorID})
}

// IncrementStats bumps a creator's lifetime counters inside the caller's
// transaction. The upsert keeps the counters consistent with the payout
// ledger even under concurrent completions.
func (s *Service) IncrementStats(ctx context.Context, tx *gorm.DB, creatorID string, amount float64) error {
	existing, err := s.stats.WithTrx(tx).FindOne(ctx, &Stats{CreatorID: creatorID})
	if err != nil {
		return err
	}

	if existing == nil {
		return s.stats.WithTrx(tx).Create(ctx, &Stats{
			ID:                 s.node.Generate().String(),
			CreatorID:          creatorID,
			TotalEarnings:      amount,
			CompletedCampaigns: 1,
		})
	}

	return s.stats.WithTrx(tx).Update(ctx, existing.ID, map[string]any{
		"total_earnings":      gorm.Expr("total_earnings + ?", amount),
		"completed_campaigns": gorm.Expr("completed_campaigns + ?", 1),
	})
}

// StatsFor returns the accumulated counters for a creator, zero-valued when
// the creator has not completed any payout yet.
func (s *Service) StatsFor(ctx context.Context, creatorID string) (*Stats, error) {
	st, err := s.stats.FindOne(ctx, &Stats{CreatorID: creatorID})
	if err != nil {
		return nil, err
	}
	if st == nil {
		return &Stats{CreatorID: creatorID}, nil
	}
	return st, nil
}
