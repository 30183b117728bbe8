package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/finmen/healcoin-wallet/internal/metrics"
	"github.com/finmen/healcoin-wallet/internal/model"
	"github.com/finmen/healcoin-wallet/internal/repo"
)

// handle@provider, e.g. name.surname@okaxis
var upiPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,256}@[a-zA-Z][a-zA-Z0-9]{1,63}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("upi", func(fl validator.FieldLevel) bool {
		return upiPattern.MatchString(fl.Field().String())
	})
	return v
}

// RedemptionService runs the pending -> approved | rejected workflow.
//
// Coins leave the wallet when a request is submitted. A rejected request
// returns them to the wallet in the same database transaction that records
// the rejection; an approved one keeps them.
type RedemptionService struct {
	ledger
}

// NewRedemptionService returns RedemptionService.
func NewRedemptionService(r repo.RepositoryInterface, logger *zap.SugaredLogger, m *metrics.Collector) *RedemptionService {
	return &RedemptionService{ledger: ledger{repo: r, log: logger, metrics: m}}
}

// Submit debits amt and records a pending redeem entry for upiID.
func (s *RedemptionService) Submit(ctx context.Context, userID string, amt decimal.Decimal, upiID, key string) (*Receipt, error) {
	upiID = strings.TrimSpace(upiID)
	if amt.IsZero() || upiID == "" {
		s.metrics.Failed("redeem", "missing_fields")
		return nil, ErrRedemptionFieldsRequired
	}
	if amt.IsNegative() {
		s.metrics.Failed("redeem", "invalid_amount")
		return nil, ErrNonPositiveAmount
	}
	if err := validate.Var(upiID, "upi"); err != nil {
		s.metrics.Failed("redeem", "invalid_upi")
		return nil, ErrInvalidUPI
	}

	rc, err := s.run(ctx, userID, key, model.TxRedeem, func(tx *gorm.DB) (*Receipt, error) {
		w, err := s.repo.DecreaseBalance(ctx, tx, userID, amt)
		if err != nil {
			return nil, err
		}
		status := model.StatusPending
		t := &model.Transaction{
			UserID:         userID,
			Type:           model.TxRedeem,
			Amount:         amt,
			Description:    "Redemption request to UPI: " + upiID,
			Status:         &status,
			UpiID:          &upiID,
			BalanceAfter:   w.Balance,
			IdempotencyKey: optional(key),
		}
		if err := s.repo.CreateTransaction(ctx, tx, t); err != nil {
			return nil, err
		}
		if err := s.emit(ctx, tx, model.EventRedemptionSubmitted, walletEvent{
			UserID: userID, Amount: amt, Balance: w.Balance, TransactionID: t.ID, Status: status,
		}); err != nil {
			return nil, err
		}
		return &Receipt{Balance: w.Balance, Wallet: w, Transaction: t}, nil
	})
	if errors.Is(err, repo.ErrInsufficientFunds) {
		s.metrics.Failed("redeem", "insufficient_funds")
	}
	if err != nil {
		return nil, err
	}
	if !rc.Replayed {
		s.metrics.Redeemed(amt)
		s.log.Infow("redemption submitted", "user_id", userID, "amount", amt.String(),
			"transaction_id", rc.Transaction.ID, "upi_id", upiID)
	}
	return rc, nil
}

// Approve marks a pending redemption approved. The wallet is not touched.
func (s *RedemptionService) Approve(ctx context.Context, txID uint64) (*model.Transaction, error) {
	var t *model.Transaction
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		t, err = s.repo.ResolveRedemption(ctx, tx, txID, model.StatusApproved)
		if err != nil {
			return err
		}
		w, err := s.repo.GetWallet(ctx, tx, t.UserID)
		if err != nil {
			return err
		}
		return s.emit(ctx, tx, model.EventRedemptionApproved, walletEvent{
			UserID: t.UserID, Amount: t.Amount, Balance: w.Balance, TransactionID: t.ID, Status: model.StatusApproved,
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Resolved(model.StatusApproved, decimal.Zero)
	s.log.Infow("redemption approved", "transaction_id", txID, "user_id", t.UserID, "amount", t.Amount.String())
	return t, nil
}

// Reject marks a pending redemption rejected and refunds the held amount.
func (s *RedemptionService) Reject(ctx context.Context, txID uint64) (*model.Transaction, *model.Wallet, error) {
	var (
		t *model.Transaction
		w *model.Wallet
	)
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		t, err = s.repo.ResolveRedemption(ctx, tx, txID, model.StatusRejected)
		if err != nil {
			return err
		}
		w, err = s.repo.IncreaseBalance(ctx, tx, t.UserID, t.Amount)
		if err != nil {
			return err
		}
		return s.emit(ctx, tx, model.EventRedemptionRejected, walletEvent{
			UserID: t.UserID, Amount: t.Amount, Balance: w.Balance, TransactionID: t.ID, Status: model.StatusRejected,
		})
	})
	if err != nil {
		return nil, nil, err
	}
	s.refresh(ctx, t.UserID, w)
	s.metrics.Resolved(model.StatusRejected, t.Amount)
	s.log.Infow("redemption rejected, coins refunded", "transaction_id", txID, "user_id", t.UserID,
		"amount", t.Amount.String(), "balance", w.Balance.String())
	return t, w, nil
}

// List returns redemptions filtered by status; empty means all.
func (s *RedemptionService) List(ctx context.Context, status string) ([]model.Transaction, error) {
	if status != "" && !model.ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	return s.repo.ListRedemptions(ctx, s.repo.DB(ctx), status)
}
