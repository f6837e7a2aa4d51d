package payout

import (
	"encoding/json"
	"io"
	"net/http"

	"creatorhub-payments/pkg/middleware"
	"creatorhub-payments/pkg/provider"
	"creatorhub-payments/pkg/provider/chapa"
	"creatorhub-payments/pkg/provider/telebirr"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Handler struct {
	svc      *Service
	telebirr *telebirr.Client
	chapa    *chapa.Client
}

type HandlerParams struct {
	fx.In

	Service  *Service
	Telebirr *telebirr.Client `optional:"true"`
	Chapa    *chapa.Client    `optional:"true"`
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		svc:      p.Service,
		telebirr: p.Telebirr,
		chapa:    p.Chapa,
	}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	v1 := r.Group("/v1")
	{
		v1.POST("/payouts/process", h.Process)
		v1.GET("/payouts/history", h.History)
		v1.GET("/payouts/:id", h.Get)

		// Provider callbacks are unauthenticated; each adapter verifies its
		// own signature scheme and the handlers always acknowledge with 200.
		v1.POST("/payouts/telebirr-callback", h.TelebirrCallback)
		v1.POST("/payouts/chapa-callback", h.ChapaCallback)
	}
}

func (h *Handler) Process(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := middleware.GetActor(c.Request.Context())
	result, err := h.svc.Process(c.Request.Context(), actor, req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) History(c *gin.Context) {
	var req HistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := middleware.GetActor(c.Request.Context())
	resp, err := h.svc.History(c.Request.Context(), actor, req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Get(c *gin.Context) {
	record, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// TelebirrCallback handles telebirr's transfer notify. The body is a flat
// signed parameter object; tradeStatus carries the outcome.
func (h *Handler) TelebirrCallback(c *gin.Context) {
	// The provider retries on anything but 200, so acknowledge no matter
	// what and handle bad payloads by dropping them.
	defer c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "success"})

	var params map[string]string
	if err := json.NewDecoder(c.Request.Body).Decode(&params); err != nil {
		zap.L().Warn("dropping malformed telebirr callback", zap.Error(err))
		return
	}

	if h.telebirr != nil && !h.telebirr.VerifyCallbackSignature(params) {
		zap.L().Warn("dropping telebirr callback with bad signature",
			zap.String("outTradeNo", params["outTradeNo"]),
		)
		return
	}

	status := provider.StatusPending
	switch params["tradeStatus"] {
	case "COMPLETED", "SUCCESS":
		status = provider.StatusSuccess
	case "FAILED", "CANCELLED":
		status = provider.StatusFailed
	}

	h.svc.Reconcile(c.Request.Context(), WebhookEvent{
		Provider:     provider.Telebirr,
		Reference:    params["outTradeNo"],
		Status:       status,
		ProviderTxID: params["transactionId"],
		Message:      params["msg"],
	})
}

type chapaWebhookPayload struct {
	Event     string `json:"event"`
	Reference string `json:"tx_ref"`
	Status    string `json:"status"`
	ChapaTxID string `json:"reference"`
	Message   string `json:"message"`
}

// ChapaCallback handles chapa's webhook. The raw body is HMAC-signed via the
// Chapa-Signature header.
func (h *Handler) ChapaCallback(c *gin.Context) {
	defer c.JSON(http.StatusOK, gin.H{"status": "ok"})

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		zap.L().Warn("failed to read chapa webhook body", zap.Error(err))
		return
	}

	if h.chapa != nil && !h.chapa.VerifyWebhookSignature(body, c.GetHeader("Chapa-Signature")) {
		zap.L().Warn("dropping chapa webhook with bad signature")
		return
	}

	var payload chapaWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		zap.L().Warn("dropping malformed chapa webhook", zap.Error(err))
		return
	}

	status := provider.StatusPending
	switch payload.Status {
	case "success", "completed":
		status = provider.StatusSuccess
	case "failed", "cancelled", "reversed":
		status = provider.StatusFailed
	}

	h.svc.Reconcile(c.Request.Context(), WebhookEvent{
		Provider:     provider.Chapa,
		Reference:    payload.Reference,
		Status:       status,
		ProviderTxID: payload.ChapaTxID,
		Message:      payload.Message,
	})
}
