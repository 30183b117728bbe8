package service

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/finmen/healcoin-wallet/internal/metrics"
	"github.com/finmen/healcoin-wallet/internal/model"
	"github.com/finmen/healcoin-wallet/internal/repo"
)

const (
	defaultCreditDescription = "HealCoins added"
	defaultDebitDescription  = "HealCoins spent"
)

// Options tunes wallet policy.
type Options struct {
	Metrics *metrics.Collector
	// MaxCredit caps a single credit; zero means no cap.
	MaxCredit decimal.Decimal
}

// WalletService glues business logic and repository.
type WalletService struct {
	ledger
	maxCredit decimal.Decimal
}

// NewWalletService returns WalletService.
func NewWalletService(r repo.RepositoryInterface, logger *zap.SugaredLogger, opts Options) *WalletService {
	return &WalletService{
		ledger:    ledger{repo: r, log: logger, metrics: opts.Metrics},
		maxCredit: opts.MaxCredit,
	}
}

// Provision creates the wallet of userID if it does not exist yet and
// reports whether it did. Safe to call any number of times.
func (s *WalletService) Provision(ctx context.Context, userID string) (*model.Wallet, bool, error) {
	var (
		w       *model.Wallet
		created bool
	)
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = s.repo.EnsureWallet(ctx, tx, userID)
		if err != nil {
			return err
		}
		w, err = s.repo.GetWallet(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		return s.emit(ctx, tx, model.EventWalletProvisioned, walletEvent{UserID: userID, Balance: w.Balance})
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.log.Infow("wallet provisioned", "user_id", userID)
	}
	return w, created, nil
}

// GetWallet returns the wallet of userID, preferring the cache.
func (s *WalletService) GetWallet(ctx context.Context, userID string) (*model.Wallet, error) {
	w, err := s.repo.GetCachedWallet(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, redis.Nil) {
		s.log.Warnw("wallet cache read failed", "user_id", userID, "error", err)
	}

	w, err = s.repo.GetWallet(ctx, s.repo.DB(ctx), userID)
	if err != nil {
		return nil, err
	}
	// a commit racing this read wins: its version is higher
	if _, err := s.repo.CacheWallet(ctx, w); err != nil {
		s.log.Warnw("wallet cache write failed", "user_id", userID, "error", err)
	}
	return w, nil
}

// Credit adds amt to the wallet, creating the wallet on first use.
func (s *WalletService) Credit(ctx context.Context, userID string, amt decimal.Decimal, description, key string) (*Receipt, error) {
	if !amt.IsPositive() {
		s.metrics.Failed("credit", "invalid_amount")
		return nil, ErrInvalidAmount
	}
	if s.maxCredit.IsPositive() && amt.GreaterThan(s.maxCredit) {
		s.metrics.Failed("credit", "limit_exceeded")
		return nil, ErrCreditLimitExceeded
	}
	if description == "" {
		description = defaultCreditDescription
	}

	rc, err := s.run(ctx, userID, key, model.TxCredit, func(tx *gorm.DB) (*Receipt, error) {
		if _, err := s.repo.EnsureWallet(ctx, tx, userID); err != nil {
			return nil, err
		}
		w, err := s.repo.IncreaseBalance(ctx, tx, userID, amt)
		if err != nil {
			return nil, err
		}
		t := &model.Transaction{
			UserID: userID, Type: model.TxCredit, Amount: amt, Description: description,
			BalanceAfter: w.Balance, IdempotencyKey: optional(key),
		}
		if err := s.repo.CreateTransaction(ctx, tx, t); err != nil {
			return nil, err
		}
		if err := s.emit(ctx, tx, model.EventWalletCredited, walletEvent{
			UserID: userID, Amount: amt, Balance: w.Balance, TransactionID: t.ID, Description: description,
		}); err != nil {
			return nil, err
		}
		return &Receipt{Balance: w.Balance, Wallet: w, Transaction: t}, nil
	})
	if err != nil {
		return nil, err
	}
	if !rc.Replayed {
		s.metrics.Credited(amt)
		s.log.Infow("coins credited", "user_id", userID, "amount", amt.String(), "balance", rc.Balance.String())
	}
	return rc, nil
}

// Debit subtracts amt if the balance covers it.
func (s *WalletService) Debit(ctx context.Context, userID string, amt decimal.Decimal, description, key string) (*Receipt, error) {
	if !amt.IsPositive() {
		s.metrics.Failed("debit", "invalid_amount")
		return nil, ErrInvalidAmount
	}
	if description == "" {
		description = defaultDebitDescription
	}

	rc, err := s.run(ctx, userID, key, model.TxDebit, func(tx *gorm.DB) (*Receipt, error) {
		w, err := s.repo.DecreaseBalance(ctx, tx, userID, amt)
		if err != nil {
			return nil, err
		}
		t := &model.Transaction{
			UserID: userID, Type: model.TxDebit, Amount: amt, Description: description,
			BalanceAfter: w.Balance, IdempotencyKey: optional(key),
		}
		if err := s.repo.CreateTransaction(ctx, tx, t); err != nil {
			return nil, err
		}
		if err := s.emit(ctx, tx, model.EventWalletDebited, walletEvent{
			UserID: userID, Amount: amt, Balance: w.Balance, TransactionID: t.ID, Description: description,
		}); err != nil {
			return nil, err
		}
		return &Receipt{Balance: w.Balance, Wallet: w, Transaction: t}, nil
	})
	if errors.Is(err, repo.ErrInsufficientFunds) {
		s.metrics.Failed("debit", "insufficient_funds")
	}
	if err != nil {
		return nil, err
	}
	if !rc.Replayed {
		s.metrics.Debited(amt)
		s.log.Infow("coins spent", "user_id", userID, "amount", amt.String(), "balance", rc.Balance.String())
	}
	return rc, nil
}

// History lists every transaction of userID, newest first.
func (s *WalletService) History(ctx context.Context, userID string) ([]model.Transaction, error) {
	return s.repo.ListTransactions(ctx, s.repo.DB(ctx), userID)
}
