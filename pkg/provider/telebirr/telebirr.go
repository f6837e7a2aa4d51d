package telebirr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"creatorhub-payments/pkg/provider"
	"creatorhub-payments/pkg/util"
)

const defaultTimeout = 30 * time.Second

// Client is a minimal telebirr B2C transfer client. All amounts are in ETB.
type Client struct {
	httpClient *http.Client
	baseURL    string
	appID      string
	appKey     string
	shortCode  string
	notifyURL  string
}

type Config struct {
	BaseURL     string
	AppID       string
	AppKey      string
	ShortCode   string
	CallbackURL string
	Timeout     time.Duration
}

// New constructs a telebirr client. Passing a nil httpClient installs one
// with the configured timeout so a slow provider cannot hang the caller.
func New(cfg Config, httpClient *http.Client) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		appID:      cfg.AppID,
		appKey:     cfg.AppKey,
		shortCode:  cfg.ShortCode,
		notifyURL:  cfg.CallbackURL,
	}
}

func (c *Client) Name() provider.Name {
	return provider.Telebirr
}

func (c *Client) ValidateRecipient(identifier string) provider.RecipientValidation {
	normalized, err := provider.NormalizeMSISDN(identifier)
	if err != nil {
		return provider.RecipientValidation{Valid: false, Message: err.Error()}
	}
	return provider.RecipientValidation{Valid: true, Normalized: normalized}
}

type apiResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TransactionID string `json:"transactionId"`
		Status        string `json:"status"`
		Name          string `json:"name"`
	} `json:"data"`
}

// Transfer pushes money to a subscriber wallet. The outTradeNo parameter is
// the caller's reference; telebirr treats a resubmitted outTradeNo as the
// same trade.
func (c *Client) Transfer(ctx context.Context, req provider.TransferRequest) provider.TransferResult {
	validation := c.ValidateRecipient(req.Recipient)
	if !validation.Valid {
		return provider.TransferResult{
			Success: false,
			Status:  provider.StatusFailed,
			Message: validation.Message,
		}
	}

	params := map[string]string{
		"appid":      c.appID,
		"shortcode":  c.shortCode,
		"receiver":   validation.Normalized,
		"amount":     strconv.FormatFloat(req.Amount, 'f', 2, 64),
		"currency":   req.Currency,
		"outTradeNo": req.Reference,
		"subject":    req.Description,
		"notifyUrl":  c.notifyURL,
		"timestamp":  strconv.FormatInt(time.Now().Unix(), 10),
		"nonce":      util.GenerateVerificationCode(),
	}
	params["sign"] = Sign(params, c.appKey)

	resp, err := c.post(ctx, "/payment/v1/transfer", params)
	if err != nil {
		zap.L().Warn("telebirr transfer request failed", zap.String("reference", req.Reference), zap.Error(err))
		return provider.TransferResult{Success: false, Status: provider.StatusFailed, Message: err.Error()}
	}

	return c.toResult(resp)
}

func (c *Client) QueryTransfer(ctx context.Context, reference string) provider.TransferResult {
	params := map[string]string{
		"appid":      c.appID,
		"shortcode":  c.shortCode,
		"outTradeNo": reference,
		"timestamp":  strconv.FormatInt(time.Now().Unix(), 10),
		"nonce":      util.GenerateVerificationCode(),
	}
	params["sign"] = Sign(params, c.appKey)

	resp, err := c.post(ctx, "/payment/v1/transfer/status", params)
	if err != nil {
		return provider.TransferResult{Success: false, Status: provider.StatusPending, Message: err.Error()}
	}

	return c.toResult(resp)
}

// VerifyAccount resolves the wallet holder's registered name.
func (c *Client) VerifyAccount(ctx context.Context, accountID string) (provider.AccountVerification, error) {
	validation := c.ValidateRecipient(accountID)
	if !validation.Valid {
		return provider.AccountVerification{}, fmt.Errorf("invalid msisdn: %s", validation.Message)
	}

	params := map[string]string{
		"appid":     c.appID,
		"shortcode": c.shortCode,
		"receiver":  validation.Normalized,
		"timestamp": strconv.FormatInt(time.Now().Unix(), 10),
		"nonce":     util.GenerateVerificationCode(),
	}
	params["sign"] = Sign(params, c.appKey)

	resp, err := c.post(ctx, "/payment/v1/account/info", params)
	if err != nil {
		return provider.AccountVerification{}, err
	}

	if resp.Code != 200 {
		return provider.AccountVerification{Verified: false}, nil
	}

	return provider.AccountVerification{Verified: true, DisplayName: resp.Data.Name}, nil
}

// VerifyCallbackSignature checks the sign field telebirr attaches to its
// notify callbacks. The signature covers every other parameter.
func (c *Client) VerifyCallbackSignature(params map[string]string) bool {
	signature, ok := params["sign"]
	if !ok || signature == "" {
		return false
	}

	unsigned := make(map[string]string, len(params)-1)
	for k, v := range params {
		if k == "sign" {
			continue
		}
		unsigned[k] = v
	}

	return Sign(unsigned, c.appKey) == signature
}

func (c *Client) post(ctx context.Context, path string, params map[string]string) (*apiResponse, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("telebirr: unexpected status %s", resp.Status)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, err
	}

	return &apiResp, nil
}

func (c *Client) toResult(resp *apiResponse) provider.TransferResult {
	if resp.Code != 200 {
		return provider.TransferResult{
			Success: false,
			Status:  provider.StatusFailed,
			Message: resp.Msg,
		}
	}

	switch resp.Data.Status {
	case "COMPLETED", "SUCCESS":
		return provider.TransferResult{
			Success:      true,
			ProviderTxID: resp.Data.TransactionID,
			Status:       provider.StatusSuccess,
			Message:      resp.Msg,
		}
	case "FAILED", "CANCELLED":
		return provider.TransferResult{
			Success:      false,
			ProviderTxID: resp.Data.TransactionID,
			Status:       provider.StatusFailed,
			Message:      resp.Msg,
		}
	default:
		return provider.TransferResult{
			Success:      false,
			ProviderTxID: resp.Data.TransactionID,
			Status:       provider.StatusPending,
			Message:      resp.Msg,
		}
	}
}
