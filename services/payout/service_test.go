package payout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"creatorhub-payments/pkg/config"
	"creatorhub-payments/pkg/errutil"
	"creatorhub-payments/pkg/middleware"
	"creatorhub-payments/pkg/provider"
	"creatorhub-payments/services/campaign"
	"creatorhub-payments/services/creator"
	"creatorhub-payments/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type fakeTransferClient struct {
	name          provider.Name
	transfer      provider.TransferResult
	query         provider.TransferResult
	transferCalls int64
}

func (f *fakeTransferClient) Name() provider.Name { return f.name }

func (f *fakeTransferClient) Transfer(_ context.Context, _ provider.TransferRequest) provider.TransferResult {
	atomic.AddInt64(&f.transferCalls, 1)
	return f.transfer
}

func (f *fakeTransferClient) ValidateRecipient(identifier string) provider.RecipientValidation {
	return provider.RecipientValidation{Valid: true, Normalized: identifier}
}

func (f *fakeTransferClient) VerifyAccount(_ context.Context, _ string) (provider.AccountVerification, error) {
	return provider.AccountVerification{Verified: true, DisplayName: "Test Account"}, nil
}

func (f *fakeTransferClient) QueryTransfer(_ context.Context, _ string) provider.TransferResult {
	return f.query
}

type stubAuthz struct{}

func (stubAuthz) Can(role, _, _ string) bool { return role == "admin" }

type stubFlags struct{ enabled bool }

func (s stubFlags) IsEnabled(_ context.Context, _ string) bool { return s.enabled }

type fixture struct {
	svc      *Service
	creators *creator.Service
	telebirr *fakeTransferClient
	chapa    *fakeTransferClient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t,
		&campaign.Campaign{},
		&creator.PaymentProfile{},
		&creator.Stats{},
		&PayoutRecord{},
	)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	telebirrClient := &fakeTransferClient{
		name:     provider.Telebirr,
		transfer: provider.TransferResult{Success: true, ProviderTxID: "tb-tx-1", Status: provider.StatusSuccess},
	}
	chapaClient := &fakeTransferClient{
		name:     provider.Chapa,
		transfer: provider.TransferResult{Success: true, ProviderTxID: "ch-tx-1", Status: provider.StatusSuccess},
	}
	registry := provider.NewRegistry(telebirrClient, chapaClient)

	creators := creator.NewService(creator.ServiceParams{
		DB:        db,
		Node:      node,
		Providers: registry,
	})

	cfg := &config.Config{}
	cfg.Fee.Rate = 0.05

	svc := NewService(ServiceParams{
		Config:    cfg,
		DB:        db,
		Node:      node,
		Providers: registry,
		Authz:     stubAuthz{},
		Flags:     stubFlags{enabled: true},
		Creators:  creators,
	})

	return &fixture{svc: svc, creators: creators, telebirr: telebirrClient, chapa: chapaClient}
}

func (f *fixture) seedCampaign(t *testing.T, c *campaign.Campaign) *campaign.Campaign {
	t.Helper()
	require.NoError(t, f.svc.db.Create(c).Error)
	return c
}

func (f *fixture) seedProfile(t *testing.T, creatorID string, name provider.Name) {
	t.Helper()
	require.NoError(t, f.svc.db.Create(&creator.PaymentProfile{
		ID:         creatorID + "-" + string(name),
		CreatorID:  creatorID,
		Provider:   string(name),
		AccountID:  "+251911223344",
		IsVerified: true,
	}).Error)
}

func completedCampaign(id string) *campaign.Campaign {
	return &campaign.Campaign{
		ID:            id,
		BrandID:       "brand-1",
		Title:         "Summer launch",
		Budget:        1000,
		Currency:      "ETB",
		Status:        campaign.StatusCompleted,
		PaymentStatus: campaign.PaymentEscrowed,
	}
}

func requireCode(t *testing.T, err error, code errutil.CoreStatus) {
	t.Helper()
	var be errutil.BaseError
	require.True(t, errors.As(err, &be), "expected BaseError, got %v", err)
	require.Equal(t, code, be.Code)
}

var brandActor = middleware.Actor{UserID: "brand-1", Role: "brand"}

func TestProcess_HappyPath(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign(t, completedCampaign("c1"))
	f.seedProfile(t, "cr-1", provider.Telebirr)

	ctx := context.Background()
	result, err := f.svc.Process(ctx, brandActor, ProcessRequest{CampaignID: "c1", CreatorID: "cr-1"})
	require.NoError(t, err)

	require.Equal(t, StatusCompleted, result.Status)
	require.Equal(t, string(provider.Telebirr), result.Provider)
	require.Equal(t, 50.0, result.Breakdown.Fee)
	require.Equal(t, 950.0, result.Breakdown.Net)
	require.Equal(t, "PR-"+result.PayoutID, result.Reference)

	record, err := f.svc.Get(ctx, result.PayoutID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, record.Status)
	require.Equal(t, "tb-tx-1", record.ProviderTxID)
	require.NotNil(t, record.CompletedAt)

	var cmp campaign.Campaign
	require.NoError(t, f.svc.db.First(&cmp, "id = ?", "c1").Error)
	require.Equal(t, campaign.PaymentReleased, cmp.PaymentStatus)
	require.Equal(t, record.ID, cmp.PayoutTransactionID)
	require.Equal(t, 950.0, cmp.PayoutAmount)

	stats, err := f.creators.StatsFor(ctx, "cr-1")
	require.NoError(t, err)
	require.Equal(t, 950.0, stats.TotalEarnings)
	require.EqualValues(t, 1, stats.CompletedCampaigns)
}

func TestProcess_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign(t, completedCampaign("c1"))
	f.seedProfile(t, "cr-1", provider.Telebirr)

	ctx := context.Background()
	_, err := f.svc.Process(ctx, brandActor, ProcessRequest{CampaignID: "c1", CreatorID: "cr-1"})
	require.NoError(t, err)

	_, err = f.svc.Process(ctx, brandActor, ProcessRequest{CampaignID: "c1", CreatorID: "cr-1"})
	requireCode(t, err, errutil.StatusConflict)

	require.EqualValues(t, 1, atomic.LoadInt64(&f.telebirr.transferCalls))

	var count int64
	require.NoError(t, f.svc.db.Model(&PayoutRecord{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestProcess_ConcurrentCallsPayOnce(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign(t, completedCampaign("c1"))
	f.seedProfile(t, "cr-1", provider.Telebirr)

	var g errgroup.Group
	var completed int64
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			result, err := f.svc.Process(context.Background(), brandActor, ProcessRequest{CampaignID: "c1", CreatorID: "cr-1"})
			if err == nil {
				// A caller either drives the transfer to completion or
				// attaches to the in-flight record; only the former may
				// report completed here.
				if result.Status == StatusCompleted {
					atomic.AddInt64(&completed, 1)
				}
				return nil
			}
			var be errutil.BaseError
			if errors.As(err, &be) && be.Code == errutil.StatusConflict {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	require.EqualValues(t, 1, completed)
	require.EqualValues(t, 1, atomic.LoadInt64(&f.telebirr.transferCalls))

	var count int64
	require.NoError(t, f.svc.db.Model(&PayoutRecord{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestProcess_PreconditionsCreateNoRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("campaign not found", func(t *testing.T) {
		_, err := f.svc.Process(ctx, brandActor, ProcessRequest{CampaignID: "missing", CreatorID: "cr-1"})
		requireCode(t, err, errutil.StatusNotFound)
	})

	t.Run("campaign not completed", func(t *testing.T) {
		c := completedCampaign("active-1")
		c.Status = campaign.StatusActive
		f.seedCampaign(t, c)
		f.seedProfile(t, "cr-1", provider.Telebirr)

		_, err := f.svc.Process(ctx, brandActor, ProcessRequest{CampaignID: "active-1", CreatorID: "cr-1"})
		requireCode(t, err, errutil.StatusConflict)
	})

	t.Run("not the campaign owner", func(t *testing.T) {
		f.seedCampaign(t, completedCampaign("owned-1"))

		stranger := middleware.Actor{UserID: "brand-2", Role: "brand"}
		_, err := f.svc.Process(ctx, stranger, ProcessRequest{CampaignID: "owned-1", CreatorID: "cr-1"})
		requireCode(t, err, errutil.StatusForbidden)
	})

	t.Run("no verified payment method", func(t *testing.T) {
		f.seedCampaign(t, completedCampaign("nomethod-1"))

		_, err := f.svc.Process(ctx, brandActor, ProcessRequest{CampaignID: "nomethod-1", CreatorID: "cr-unknown"})
		requireCode(t, err, errutil.StatusUnprocessableEntity)
	})

	var count int64
	require.NoError(t, f.svc.db.Model(&PayoutRecord{}).Count(&count).Error)
	require.Zero(t, count, "precondition failures must not leave payout records")
	require.Zero(t, atomic.LoadInt64(&f.telebirr.transferCalls))
}

func TestProcess_RejectsCreatorNotSelectedForCampaign(t *testing.T) {
	f := newFixture(t)
	c := completedCampaign("c1")
	c.CreatorID = "cr-target"
	f.seedCampaign(t, c)
	f.seedProfile(t, "cr-target", provider.Telebirr)
	f.seedProfile(t, "cr-other", provider.Telebirr)

	ctx := context.Background()
	_, err := f.svc.Process(ctx, brandActor, ProcessRequest{CampaignID: "c1", CreatorID: "cr-other"})
	requireCode(t, err, errutil.StatusValidationFailed)

	var count int64
	require.NoError(t, f.svc.db.Model(&PayoutRecord{}).Count(&count).Error)
	require.Zero(t, count)
	require.Zero(t, atomic.LoadInt64(&f.telebirr.transferCalls))

	// The selected creator still gets paid.
	result, err := f.svc.Process(ctx, brandActor, ProcessRequest{CampaignID: "c1", CreatorID: "cr-target"})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.Status)

	var record PayoutRecord
	require.NoError(t, f.svc.db.First(&record, "campaign_id = ?", "c1").Error)
	require.Equal(t, "cr-target", record.CreatorID)
}

func TestProcess_AttachesToInFlightRecord(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign(t, completedCampaign("c1"))
	f.seedProfile(t, "cr-1", provider.Telebirr)
	f.telebirr.transfer = provider.TransferResult{Status: provider.StatusPending}

	ctx := context.Background()
	first, err := f.svc.Process(ctx, brandActor, ProcessRequest{CampaignID: "c1", CreatorID: "cr-1"})
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, first.Status)

	second, err := f.svc.Process(ctx, brandActor, ProcessRequest{CampaignID: "c1", CreatorID: "cr-1"})
	require.NoError(t, err)
	require.Equal(t, first.PayoutID, second.PayoutID)
	require.Equal(t, StatusProcessing, second.Status)

	// Attaching reports state; it never re-dispatches the transfer.
	require.EqualValues(t, 1, atomic.LoadInt64(&f.telebirr.transferCalls))

	record, err := f.svc.Get(ctx, first.PayoutID)
	require.NoError(t, err)
	require.Equal(t, 1, record.Attempts)
}

func TestProcess_AdminMayReleaseAnyCampaign(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign(t, completedCampaign("c1"))
	f.seedProfile(t, "cr-1", provider.Telebirr)

	admin := middleware.Actor{UserID: "ops-1", Role: "admin"}
	_, err := f.svc.Process(context.Background(), admin, ProcessRequest{CampaignID: "c1", CreatorID: "cr-1"})
	require.NoError(t, err)
}

func TestProcess_ProviderFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign(t, completedCampaign("c1"))
	f.seedProfile(t, "cr-1", provider.Telebirr)
	f.telebirr.transfer = provider.TransferResult{Success: false, Status: provider.StatusFailed, Message: "insufficient float"}

	ctx := context.Background()
	_, err := f.svc.Process(ctx, brandActor, ProcessRequest{CampaignID: "c1", CreatorID: "cr-1"})
	requireCode(t, err, errutil.StatusInternal)

	var record PayoutRecord
	require.NoError(t, f.svc.db.First(&record, "campaign_id = ?", "c1").Error)
	require.Equal(t, StatusFailed, record.Status)
	require.Equal(t, "insufficient float", record.FailureReason)
	require.Equal(t, 1, record.Attempts)

	var cmp campaign.Campaign
	require.NoError(t, f.svc.db.First(&cmp, "id = ?", "c1").Error)
	require.Equal(t, campaign.PaymentEscrowed, cmp.PaymentStatus, "escrow must not release on failure")
	require.Equal(t, "insufficient float", cmp.PaymentError)
}

func TestProcess_RetryAfterFailureReusesRecord(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign(t, completedCampaign("c1"))
	f.seedProfile(t, "cr-1", provider.Telebirr)

	ctx := context.Background()

	f.telebirr.transfer = provider.TransferResult{Success: false, Status: provider.StatusFailed, Message: "timeout"}
	_, err := f.svc.Process(ctx, brandActor, ProcessRequest{CampaignID: "c1", CreatorID: "cr-1"})
	requireCode(t, err, errutil.StatusInternal)

	var failed PayoutRecord
	require.NoError(t, f.svc.db.First(&failed, "campaign_id = ?", "c1").Error)

	f.telebirr.transfer = provider.TransferResult{Success: true, ProviderTxID: "tb-tx-2", Status: provider.StatusSuccess}
	result, err := f.svc.Process(ctx, brandActor, ProcessRequest{CampaignID: "c1", CreatorID: "cr-1"})
	require.NoError(t, err)
	require.Equal(t, failed.ID, result.PayoutID, "retry must reuse the original record")

	var record PayoutRecord
	require.NoError(t, f.svc.db.First(&record, "id = ?", failed.ID).Error)
	require.Equal(t, StatusCompleted, record.Status)
	require.Equal(t, 2, record.Attempts)
	require.Empty(t, record.FailureReason)

	var count int64
	require.NoError(t, f.svc.db.Model(&PayoutRecord{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestProcess_GatewayDisabledByFlag(t *testing.T) {
	f := newFixture(t)
	f.svc.flags = stubFlags{enabled: false}
	f.seedCampaign(t, completedCampaign("c1"))
	f.seedProfile(t, "cr-1", provider.Chapa)

	_, err := f.svc.Process(context.Background(), brandActor, ProcessRequest{CampaignID: "c1", CreatorID: "cr-1"})
	requireCode(t, err, errutil.StatusUnprocessableEntity)
}

func TestReconcile_SettlesPendingTransfer(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign(t, completedCampaign("c1"))
	f.seedProfile(t, "cr-1", provider.Telebirr)
	f.telebirr.transfer = provider.TransferResult{Status: provider.StatusPending, ProviderTxID: "tb-tx-1"}

	ctx := context.Background()
	result, err := f.svc.Process(ctx, brandActor, ProcessRequest{CampaignID: "c1", CreatorID: "cr-1"})
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, result.Status)

	f.svc.Reconcile(ctx, WebhookEvent{
		Provider:     provider.Telebirr,
		Reference:    result.Reference,
		Status:       provider.StatusSuccess,
		ProviderTxID: "tb-tx-1",
	})

	record, err := f.svc.Get(ctx, result.PayoutID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, record.Status)

	var cmp campaign.Campaign
	require.NoError(t, f.svc.db.First(&cmp, "id = ?", "c1").Error)
	require.Equal(t, campaign.PaymentReleased, cmp.PaymentStatus)

	stats, err := f.creators.StatsFor(ctx, "cr-1")
	require.NoError(t, err)
	require.Equal(t, 950.0, stats.TotalEarnings)
}

func TestReconcile_IdempotentOnCompleted(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign(t, completedCampaign("c1"))
	f.seedProfile(t, "cr-1", provider.Telebirr)

	ctx := context.Background()
	result, err := f.svc.Process(ctx, brandActor, ProcessRequest{CampaignID: "c1", CreatorID: "cr-1"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		f.svc.Reconcile(ctx, WebhookEvent{
			Provider:     provider.Telebirr,
			Reference:    result.Reference,
			Status:       provider.StatusSuccess,
			ProviderTxID: "tb-tx-1",
		})
	}

	stats, err := f.creators.StatsFor(ctx, "cr-1")
	require.NoError(t, err)
	require.Equal(t, 950.0, stats.TotalEarnings, "replayed webhooks must not double-count")
	require.EqualValues(t, 1, stats.CompletedCampaigns)
}

func TestReconcile_DropsBadEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// None of these may panic or create rows.
	f.svc.Reconcile(ctx, WebhookEvent{Provider: provider.Telebirr, Reference: "not-a-reference", Status: provider.StatusSuccess})
	f.svc.Reconcile(ctx, WebhookEvent{Provider: provider.Telebirr, Reference: "PR-unknown", Status: provider.StatusSuccess})

	var count int64
	require.NoError(t, f.svc.db.Model(&PayoutRecord{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestReconcile_IgnoresProviderMismatch(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign(t, completedCampaign("c1"))
	f.seedProfile(t, "cr-1", provider.Telebirr)
	f.telebirr.transfer = provider.TransferResult{Status: provider.StatusPending}

	ctx := context.Background()
	result, err := f.svc.Process(ctx, brandActor, ProcessRequest{CampaignID: "c1", CreatorID: "cr-1"})
	require.NoError(t, err)

	f.svc.Reconcile(ctx, WebhookEvent{
		Provider:  provider.Chapa,
		Reference: result.Reference,
		Status:    provider.StatusSuccess,
	})

	record, err := f.svc.Get(ctx, result.PayoutID)
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, record.Status, "a different provider's webhook must not settle the payout")
}

func TestHistory_ScopedToActor(t *testing.T) {
	f := newFixture(t)
	f.seedCampaign(t, completedCampaign("c1"))
	f.seedProfile(t, "cr-1", provider.Telebirr)

	other := completedCampaign("c2")
	other.BrandID = "brand-2"
	f.seedCampaign(t, other)
	f.seedProfile(t, "cr-2", provider.Telebirr)

	ctx := context.Background()
	_, err := f.svc.Process(ctx, brandActor, ProcessRequest{CampaignID: "c1", CreatorID: "cr-1"})
	require.NoError(t, err)
	_, err = f.svc.Process(ctx, middleware.Actor{UserID: "brand-2", Role: "brand"}, ProcessRequest{CampaignID: "c2", CreatorID: "cr-2"})
	require.NoError(t, err)

	brandView, err := f.svc.History(ctx, brandActor, HistoryRequest{})
	require.NoError(t, err)
	require.Len(t, brandView.Data, 1)
	require.Equal(t, "c1", brandView.Data[0].CampaignID)

	creatorView, err := f.svc.History(ctx, middleware.Actor{UserID: "cr-2", Role: "creator"}, HistoryRequest{})
	require.NoError(t, err)
	require.Len(t, creatorView.Data, 1)
	require.Equal(t, "cr-2", creatorView.Data[0].CreatorID)

	adminView, err := f.svc.History(ctx, middleware.Actor{UserID: "ops-1", Role: "admin"}, HistoryRequest{})
	require.NoError(t, err)
	require.Len(t, adminView.Data, 2)
}
