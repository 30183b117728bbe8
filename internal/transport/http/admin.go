package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/finmen/healcoin-wallet/internal/repo"
	"github.com/finmen/healcoin-wallet/internal/service"
)

func (h *Handler) listRedemptions(c *gin.Context) {
	txs, err := h.redemptions.List(c.Request.Context(), c.Query("status"))
	switch {
	case errors.Is(err, service.ErrInvalidStatus):
		fail(c, http.StatusBadRequest, "Invalid status")
	case err != nil:
		h.internalError(c, "Failed to load redemptions", err)
	default:
		c.JSON(http.StatusOK, txs)
	}
}

func redemptionID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, "Invalid redemption id")
		return 0, false
	}
	return id, true
}

// resolveFailed maps a resolution error to a response. It reports false
// when err is nil.
func (h *Handler) resolveFailed(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, repo.ErrTransactionNotFound):
		fail(c, http.StatusNotFound, "Redemption not found")
	case errors.Is(err, repo.ErrRedemptionResolved):
		fail(c, http.StatusConflict, "Redemption already processed")
	default:
		h.internalError(c, "Failed to update redemption", err)
	}
	return true
}

func (h *Handler) approveRedemption(c *gin.Context) {
	id, ok := redemptionID(c)
	if !ok {
		return
	}
	tx, err := h.redemptions.Approve(c.Request.Context(), id)
	if h.resolveFailed(c, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Redemption approved", "transaction": tx})
}

func (h *Handler) rejectRedemption(c *gin.Context) {
	id, ok := redemptionID(c)
	if !ok {
		return
	}
	tx, w, err := h.redemptions.Reject(c.Request.Context(), id)
	if h.resolveFailed(c, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Redemption rejected", "transaction": tx, "wallet": w})
}

func (h *Handler) reconcile(c *gin.Context) {
	rec, err := h.wallets.Reconcile(c.Request.Context(), c.Param("userId"))
	switch {
	case errors.Is(err, repo.ErrWalletNotFound):
		fail(c, http.StatusNotFound, "Wallet not found")
	case err != nil:
		h.internalError(c, "Failed to reconcile wallet", err)
	default:
		c.JSON(http.StatusOK, rec)
	}
}
