package creator

import (
	"context"
	"errors"
	"testing"

	"creatorhub-payments/pkg/provider"
	"creatorhub-payments/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	name         provider.Name
	verification provider.AccountVerification
	verifyErr    error
}

func (f *fakeClient) Name() provider.Name { return f.name }

func (f *fakeClient) Transfer(_ context.Context, _ provider.TransferRequest) provider.TransferResult {
	return provider.TransferResult{}
}

func (f *fakeClient) ValidateRecipient(identifier string) provider.RecipientValidation {
	normalized, err := provider.NormalizeMSISDN(identifier)
	if err != nil {
		return provider.RecipientValidation{Valid: false, Message: err.Error()}
	}
	return provider.RecipientValidation{Valid: true, Normalized: normalized}
}

func (f *fakeClient) VerifyAccount(_ context.Context, _ string) (provider.AccountVerification, error) {
	if f.verifyErr != nil {
		return provider.AccountVerification{}, f.verifyErr
	}
	return f.verification, nil
}

func (f *fakeClient) QueryTransfer(_ context.Context, _ string) provider.TransferResult {
	return provider.TransferResult{}
}

func newTestService(t *testing.T, client *fakeClient) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &PaymentProfile{}, &Stats{})
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	return NewService(ServiceParams{
		DB:        db,
		Node:      node,
		Providers: provider.NewRegistry(client),
	})
}

func TestVerifyAccount_CreatesVerifiedProfile(t *testing.T) {
	client := &fakeClient{
		name:         provider.Telebirr,
		verification: provider.AccountVerification{Verified: true, DisplayName: "Abebe K."},
	}
	svc := newTestService(t, client)

	ctx := context.Background()
	result, err := svc.VerifyAccount(ctx, VerifyAccountRequest{
		CreatorID: "cr-1",
		Provider:  string(provider.Telebirr),
		AccountID: "0911223344",
	})
	require.NoError(t, err)
	require.True(t, result.Verified)
	require.Equal(t, "+251911223344", result.AccountID)
	require.Equal(t, "Abebe K.", result.DisplayName)

	profiles, err := svc.Profiles(ctx, "cr-1")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	require.True(t, profiles[0].IsVerified)
	require.NotNil(t, profiles[0].VerifiedAt)
	require.Equal(t, "+251911223344", profiles[0].AccountID)
}

func TestVerifyAccount_UpdatesExistingProfile(t *testing.T) {
	client := &fakeClient{
		name:         provider.Telebirr,
		verification: provider.AccountVerification{Verified: true, DisplayName: "Abebe K."},
	}
	svc := newTestService(t, client)

	ctx := context.Background()
	_, err := svc.VerifyAccount(ctx, VerifyAccountRequest{
		CreatorID: "cr-1",
		Provider:  string(provider.Telebirr),
		AccountID: "0911223344",
	})
	require.NoError(t, err)

	// Re-verifying with a new number replaces the account, not adds a row.
	_, err = svc.VerifyAccount(ctx, VerifyAccountRequest{
		CreatorID: "cr-1",
		Provider:  string(provider.Telebirr),
		AccountID: "0911998877",
	})
	require.NoError(t, err)

	profiles, err := svc.Profiles(ctx, "cr-1")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	require.Equal(t, "+251911998877", profiles[0].AccountID)
}

func TestVerifyAccount_InvalidIdentifier(t *testing.T) {
	client := &fakeClient{name: provider.Telebirr}
	svc := newTestService(t, client)

	_, err := svc.VerifyAccount(context.Background(), VerifyAccountRequest{
		CreatorID: "cr-1",
		Provider:  string(provider.Telebirr),
		AccountID: "12345",
	})
	require.Error(t, err)
}

func TestVerifyAccount_UnknownProvider(t *testing.T) {
	svc := newTestService(t, &fakeClient{name: provider.Telebirr})

	_, err := svc.VerifyAccount(context.Background(), VerifyAccountRequest{
		CreatorID: "cr-1",
		Provider:  "mpesa",
		AccountID: "0911223344",
	})
	require.Error(t, err)
}

func TestVerifyAccount_ProviderUnavailable(t *testing.T) {
	client := &fakeClient{name: provider.Telebirr, verifyErr: errors.New("connection refused")}
	svc := newTestService(t, client)

	_, err := svc.VerifyAccount(context.Background(), VerifyAccountRequest{
		CreatorID: "cr-1",
		Provider:  string(provider.Telebirr),
		AccountID: "0911223344",
	})
	require.Error(t, err)

	// Nothing persisted when the provider could not be reached.
	profiles, err := svc.Profiles(context.Background(), "cr-1")
	require.NoError(t, err)
	require.Empty(t, profiles)
}

func TestIncrementStats(t *testing.T) {
	svc := newTestService(t, &fakeClient{name: provider.Telebirr})
	ctx := context.Background()

	require.NoError(t, svc.IncrementStats(ctx, nil, "cr-1", 950))
	require.NoError(t, svc.IncrementStats(ctx, nil, "cr-1", 47.5))

	stats, err := svc.StatsFor(ctx, "cr-1")
	require.NoError(t, err)
	require.Equal(t, 997.5, stats.TotalEarnings)
	require.EqualValues(t, 2, stats.CompletedCampaigns)

	empty, err := svc.StatsFor(ctx, "cr-none")
	require.NoError(t, err)
	require.Zero(t, empty.TotalEarnings)
}
