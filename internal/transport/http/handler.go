package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/finmen/healcoin-wallet/internal/auth"
	"github.com/finmen/healcoin-wallet/internal/repo"
	"github.com/finmen/healcoin-wallet/internal/service"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxIdempotencyKey = 64
)

type Handler struct {
	wallets     *service.WalletService
	redemptions *service.RedemptionService
	log         *zap.SugaredLogger
}

func RegisterHandlers(api *gin.RouterGroup, h *Handler) {
	w := api.Group("/wallet")
	{
		w.GET("", h.getWallet)
		w.POST("", h.createWallet)
		w.POST("/add", h.addCoins)
		w.POST("/spend", h.spendCoins)
		w.POST("/redeem", h.redeem)
		w.GET("/transactions", h.transactions)
	}

	admin := api.Group("/admin", auth.RequireAdmin())
	{
		admin.GET("/redemptions", h.listRedemptions)
		admin.PUT("/redemptions/approve/:id", h.approveRedemption)
		admin.PUT("/redemptions/reject/:id", h.rejectRedemption)
		admin.GET("/wallets/:userId/reconcile", h.reconcile)
	}
}

type amountReq struct {
	Amount      *decimal.Decimal `json:"amount"`
	Description string           `json:"description"`
}

type redeemReq struct {
	Amount *decimal.Decimal `json:"amount"`
	UpiID  string           `json:"upiId"`
}

func fail(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

// internalError hides storage details from the caller and logs them.
func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	h.log.Errorw(msg, "error", err, "path", c.FullPath(), "request_id", c.GetString(ctxRequestID))
	fail(c, http.StatusInternalServerError, msg)
}

// caller reads the authenticated user and the optional idempotency key.
func caller(c *gin.Context) (userID, key string, ok bool) {
	userID, ok = auth.UserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "Unauthorized. No token provided.")
		return "", "", false
	}
	key = c.GetHeader(idempotencyHeader)
	if len(key) > maxIdempotencyKey {
		fail(c, http.StatusBadRequest, "Idempotency-Key too long")
		return "", "", false
	}
	return userID, key, true
}

func (h *Handler) getWallet(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	w, err := h.wallets.GetWallet(c.Request.Context(), userID)
	switch {
	case errors.Is(err, repo.ErrWalletNotFound):
		fail(c, http.StatusNotFound, "Wallet not found")
	case err != nil:
		h.internalError(c, "Failed to load wallet", err)
	default:
		c.JSON(http.StatusOK, w)
	}
}

func (h *Handler) createWallet(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	w, created, err := h.wallets.Provision(c.Request.Context(), userID)
	if err != nil {
		h.internalError(c, "Failed to create wallet", err)
		return
	}
	if created {
		c.JSON(http.StatusCreated, gin.H{"message": "Wallet created", "wallet": w})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Wallet already exists", "wallet": w})
}

func (h *Handler) addCoins(c *gin.Context) {
	userID, key, ok := caller(c)
	if !ok {
		return
	}
	var req amountReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount == nil {
		fail(c, http.StatusBadRequest, "Invalid amount")
		return
	}
	rc, err := h.wallets.Credit(c.Request.Context(), userID, *req.Amount, req.Description, key)
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		fail(c, http.StatusBadRequest, "Invalid amount")
	case errors.Is(err, service.ErrCreditLimitExceeded):
		fail(c, http.StatusBadRequest, "Amount exceeds credit limit")
	case err != nil:
		h.internalError(c, "Failed to add coins", err)
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Coins added", "newBalance": rc.Balance})
	}
}

func (h *Handler) spendCoins(c *gin.Context) {
	userID, key, ok := caller(c)
	if !ok {
		return
	}
	var req amountReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount == nil {
		fail(c, http.StatusBadRequest, "Invalid amount")
		return
	}
	rc, err := h.wallets.Debit(c.Request.Context(), userID, *req.Amount, req.Description, key)
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		fail(c, http.StatusBadRequest, "Invalid amount")
	case errors.Is(err, repo.ErrInsufficientFunds):
		fail(c, http.StatusBadRequest, "Insufficient balance")
	case err != nil:
		h.internalError(c, "Failed to spend coins", err)
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Coins spent", "newBalance": rc.Balance})
	}
}

func (h *Handler) redeem(c *gin.Context) {
	userID, key, ok := caller(c)
	if !ok {
		return
	}
	var req redeemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Amount and UPI ID are required")
		return
	}
	amt := decimal.Zero
	if req.Amount != nil {
		amt = *req.Amount
	}
	rc, err := h.redemptions.Submit(c.Request.Context(), userID, amt, req.UpiID, key)
	switch {
	case errors.Is(err, service.ErrRedemptionFieldsRequired):
		fail(c, http.StatusBadRequest, "Amount and UPI ID are required")
	case errors.Is(err, service.ErrNonPositiveAmount):
		fail(c, http.StatusBadRequest, "Amount must be greater than zero")
	case errors.Is(err, service.ErrInvalidUPI):
		fail(c, http.StatusBadRequest, "Invalid UPI ID")
	case errors.Is(err, repo.ErrInsufficientFunds):
		fail(c, http.StatusBadRequest, "Insufficient wallet balance")
	case err != nil:
		h.internalError(c, "Failed to submit redemption", err)
	default:
		c.JSON(http.StatusOK, gin.H{
			"message":     "Redemption request submitted",
			"wallet":      rc.Wallet,
			"transaction": rc.Transaction,
		})
	}
}

func (h *Handler) transactions(c *gin.Context) {
	userID, _, ok := caller(c)
	if !ok {
		return
	}
	txs, err := h.wallets.History(c.Request.Context(), userID)
	if err != nil {
		h.internalError(c, "Failed to load transactions", err)
		return
	}
	c.JSON(http.StatusOK, txs)
}
