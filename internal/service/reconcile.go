package service

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/finmen/healcoin-wallet/internal/model"
)

// Reconciliation compares a stored balance with the balance implied by the log.
type Reconciliation struct {
	UserID        string          `json:"userId"`
	Balance       decimal.Decimal `json:"balance"`
	LedgerBalance decimal.Decimal `json:"ledgerBalance"`
	Consistent    bool            `json:"consistent"`
}

// LedgerBalance folds a transaction history into the balance it implies:
// credits minus debits minus redemptions that still hold coins.
// Rejected redemptions were refunded and count as zero.
func LedgerBalance(txs []model.Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txs {
		switch t.Type {
		case model.TxCredit:
			sum = sum.Add(t.Amount)
		case model.TxDebit:
			sum = sum.Sub(t.Amount)
		case model.TxRedeem:
			if t.Status == nil || *t.Status != model.StatusRejected {
				sum = sum.Sub(t.Amount)
			}
		}
	}
	return sum
}

// Reconcile checks the wallet of userID against its transaction log.
func (s *WalletService) Reconcile(ctx context.Context, userID string) (*Reconciliation, error) {
	var rec *Reconciliation
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.repo.GetWallet(ctx, tx, userID)
		if err != nil {
			return err
		}
		txs, err := s.repo.ListTransactions(ctx, tx, userID)
		if err != nil {
			return err
		}
		derived := LedgerBalance(txs)
		rec = &Reconciliation{
			UserID:        userID,
			Balance:       w.Balance,
			LedgerBalance: derived,
			Consistent:    w.Balance.Equal(derived),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !rec.Consistent {
		s.log.Errorw("wallet does not reconcile with its log", "user_id", userID,
			"balance", rec.Balance.String(), "ledger_balance", rec.LedgerBalance.String())
	}
	return rec, nil
}
