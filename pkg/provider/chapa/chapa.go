package chapa

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"creatorhub-payments/pkg/provider"
)

const defaultTimeout = 30 * time.Second

// Client talks to the chapa transfer API. Authentication is a bearer secret
// key; webhook authenticity is an HMAC-SHA256 of the raw body.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	secretKey     string
	webhookSecret string
}

type Config struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
}

func New(cfg Config, httpClient *http.Client) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient:    httpClient,
		baseURL:       cfg.BaseURL,
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
	}
}

func (c *Client) Name() provider.Name {
	return provider.Chapa
}

// ValidateRecipient accepts chapa account identifiers: non-empty, no spaces.
// Phone-style identifiers are normalized like mobile-money recipients.
func (c *Client) ValidateRecipient(identifier string) provider.RecipientValidation {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return provider.RecipientValidation{Valid: false, Message: "empty account identifier"}
	}

	if strings.HasPrefix(trimmed, "+") || strings.HasPrefix(trimmed, "0") {
		normalized, err := provider.NormalizeMSISDN(trimmed)
		if err != nil {
			return provider.RecipientValidation{Valid: false, Message: err.Error()}
		}
		return provider.RecipientValidation{Valid: true, Normalized: normalized}
	}

	if strings.ContainsAny(trimmed, " \t") {
		return provider.RecipientValidation{Valid: false, Message: "account identifier contains whitespace"}
	}

	return provider.RecipientValidation{Valid: true, Normalized: trimmed}
}

type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		TransferID  string `json:"transfer_id"`
		Status      string `json:"status"`
		AccountName string `json:"account_name"`
	} `json:"data"`
}

func (c *Client) Transfer(ctx context.Context, req provider.TransferRequest) provider.TransferResult {
	validation := c.ValidateRecipient(req.Recipient)
	if !validation.Valid {
		return provider.TransferResult{
			Success: false,
			Status:  provider.StatusFailed,
			Message: validation.Message,
		}
	}

	payload := map[string]any{
		"account_number": validation.Normalized,
		"amount":         fmt.Sprintf("%.2f", req.Amount),
		"currency":       req.Currency,
		"reference":      req.Reference,
		"description":    req.Description,
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/transfers", payload)
	if err != nil {
		zap.L().Warn("chapa transfer request failed", zap.String("reference", req.Reference), zap.Error(err))
		return provider.TransferResult{Success: false, Status: provider.StatusFailed, Message: err.Error()}
	}

	return c.toResult(resp)
}

func (c *Client) QueryTransfer(ctx context.Context, reference string) provider.TransferResult {
	resp, err := c.do(ctx, http.MethodGet, "/v1/transfers/verify/"+reference, nil)
	if err != nil {
		return provider.TransferResult{Success: false, Status: provider.StatusPending, Message: err.Error()}
	}

	return c.toResult(resp)
}

func (c *Client) VerifyAccount(ctx context.Context, accountID string) (provider.AccountVerification, error) {
	validation := c.ValidateRecipient(accountID)
	if !validation.Valid {
		return provider.AccountVerification{}, fmt.Errorf("invalid account: %s", validation.Message)
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/accounts/resolve", map[string]any{
		"account_number": validation.Normalized,
	})
	if err != nil {
		return provider.AccountVerification{}, err
	}

	if resp.Status != "success" {
		return provider.AccountVerification{Verified: false}, nil
	}

	return provider.AccountVerification{Verified: true, DisplayName: resp.Data.AccountName}, nil
}

// VerifyWebhookSignature checks the signature header sent with provider
// callbacks against the raw request body.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if c.webhookSecret == "" {
		return true
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(body)
	expected := mac.Sum(nil)

	sigBytes, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, sigBytes)
}

func (c *Client) do(ctx context.Context, method, path string, payload map[string]any) (*apiResponse, error) {
	var reader *bytes.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("chapa: unexpected status %s", resp.Status)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, err
	}

	return &apiResp, nil
}

func (c *Client) toResult(resp *apiResponse) provider.TransferResult {
	if resp.Status != "success" {
		return provider.TransferResult{
			Success: false,
			Status:  provider.StatusFailed,
			Message: resp.Message,
		}
	}

	switch resp.Data.Status {
	case "success", "completed":
		return provider.TransferResult{
			Success:      true,
			ProviderTxID: resp.Data.TransferID,
			Status:       provider.StatusSuccess,
			Message:      resp.Message,
		}
	case "failed", "reversed":
		return provider.TransferResult{
			Success:      false,
			ProviderTxID: resp.Data.TransferID,
			Status:       provider.StatusFailed,
			Message:      resp.Message,
		}
	default:
		return provider.TransferResult{
			Success:      false,
			ProviderTxID: resp.Data.TransferID,
			Status:       provider.StatusPending,
			Message:      resp.Message,
		}
	}
}
