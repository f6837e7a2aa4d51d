package chapa

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	c := New(Config{WebhookSecret: "wh-secret"}, nil)
	body := []byte(`{"tx_ref":"PR-42","status":"success"}`)

	require.True(t, c.VerifyWebhookSignature(body, sign("wh-secret", body)))
	require.False(t, c.VerifyWebhookSignature(body, sign("wrong-secret", body)))
	require.False(t, c.VerifyWebhookSignature([]byte(`tampered`), sign("wh-secret", body)))
	require.False(t, c.VerifyWebhookSignature(body, "not-hex"))
	require.False(t, c.VerifyWebhookSignature(body, ""))
}

func TestVerifyWebhookSignature_NoSecretConfigured(t *testing.T) {
	c := New(Config{}, nil)
	require.True(t, c.VerifyWebhookSignature([]byte(`{}`), "anything"))
}

func TestValidateRecipient(t *testing.T) {
	c := New(Config{}, nil)

	t.Run("phone identifiers are normalized", func(t *testing.T) {
		v := c.ValidateRecipient("0911223344")
		require.True(t, v.Valid)
		require.Equal(t, "+251911223344", v.Normalized)
	})

	t.Run("account identifiers pass through", func(t *testing.T) {
		v := c.ValidateRecipient("1000123456789")
		require.True(t, v.Valid)
		require.Equal(t, "1000123456789", v.Normalized)
	})

	t.Run("empty rejected", func(t *testing.T) {
		require.False(t, c.ValidateRecipient("  ").Valid)
	})

	t.Run("whitespace rejected", func(t *testing.T) {
		require.False(t, c.ValidateRecipient("acct 123").Valid)
	})
}
