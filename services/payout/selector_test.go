package payout

import (
	"testing"

	"creatorhub-payments/pkg/provider"
	"creatorhub-payments/services/creator"

	"github.com/stretchr/testify/require"
)

func TestSelectProvider(t *testing.T) {
	telebirrProfile := &creator.PaymentProfile{Provider: string(provider.Telebirr), AccountID: "+251911223344", IsVerified: true}
	chapaProfile := &creator.PaymentProfile{Provider: string(provider.Chapa), AccountID: "acct-1", IsVerified: true}

	t.Run("mobile money wins over gateway", func(t *testing.T) {
		// Order of the slice must not matter.
		name, profile, ok := SelectProvider([]*creator.PaymentProfile{chapaProfile, telebirrProfile}, true)
		require.True(t, ok)
		require.Equal(t, provider.Telebirr, name)
		require.Equal(t, telebirrProfile.AccountID, profile.AccountID)
	})

	t.Run("falls through to gateway", func(t *testing.T) {
		name, _, ok := SelectProvider([]*creator.PaymentProfile{chapaProfile}, true)
		require.True(t, ok)
		require.Equal(t, provider.Chapa, name)
	})

	t.Run("unverified profiles are skipped", func(t *testing.T) {
		unverified := &creator.PaymentProfile{Provider: string(provider.Telebirr), IsVerified: false}
		name, _, ok := SelectProvider([]*creator.PaymentProfile{unverified, chapaProfile}, true)
		require.True(t, ok)
		require.Equal(t, provider.Chapa, name)
	})

	t.Run("gateway disabled by flag", func(t *testing.T) {
		_, _, ok := SelectProvider([]*creator.PaymentProfile{chapaProfile}, false)
		require.False(t, ok)
	})

	t.Run("no verified profile", func(t *testing.T) {
		_, _, ok := SelectProvider(nil, true)
		require.False(t, ok)
	})
}

func TestParseTransferReference(t *testing.T) {
	record := &PayoutRecord{ID: "1234567890"}
	ref := record.TransferReference()
	require.Equal(t, "PR-1234567890", ref)

	id, err := ParseTransferReference(ref)
	require.NoError(t, err)
	require.Equal(t, record.ID, id)

	_, err = ParseTransferReference("garbage")
	require.Error(t, err)

	_, err = ParseTransferReference("PR-")
	require.Error(t, err)
}
