package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/finmen/healcoin-wallet/internal/metrics"
	"github.com/finmen/healcoin-wallet/internal/model"
	"github.com/finmen/healcoin-wallet/internal/repo"
)

// Receipt is the outcome of a balance-affecting operation.
type Receipt struct {
	Balance     decimal.Decimal
	Wallet      *model.Wallet
	Transaction *model.Transaction
	// Replayed is set when an Idempotency-Key matched an earlier request.
	Replayed bool
}

// ledger holds what every mutating service shares: the repository, the
// unit-of-work runner and the post-commit hooks.
type ledger struct {
	repo    repo.RepositoryInterface
	log     *zap.SugaredLogger
	metrics *metrics.Collector
}

// run executes fn in one database transaction keyed by (userID, key, txType).
// A known key returns the recorded receipt instead of calling fn. A racing
// duplicate that loses on the unique index is replayed the same way.
func (l *ledger) run(ctx context.Context, userID, key, txType string, fn func(tx *gorm.DB) (*Receipt, error)) (*Receipt, error) {
	var rc *Receipt
	err := l.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		existed, prior, err := l.repo.TxExists(ctx, tx, userID, key, txType)
		if err != nil {
			return err
		}
		if existed {
			rc, err = l.replay(ctx, tx, prior)
			return err
		}
		rc, err = fn(tx)
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) && key != "" {
		l.log.Infow("replaying concurrent duplicate", "user_id", userID, "type", txType, "key", key)
		return l.replayKey(ctx, userID, key, txType)
	}
	if err != nil {
		return nil, err
	}
	if !rc.Replayed {
		l.refresh(ctx, userID, rc.Wallet)
	}
	return rc, nil
}

func (l *ledger) replay(ctx context.Context, tx *gorm.DB, prior *model.Transaction) (*Receipt, error) {
	w, err := l.repo.GetWallet(ctx, tx, prior.UserID)
	if err != nil && !errors.Is(err, repo.ErrWalletNotFound) {
		return nil, err
	}
	return &Receipt{Balance: prior.BalanceAfter, Wallet: w, Transaction: prior, Replayed: true}, nil
}

func (l *ledger) replayKey(ctx context.Context, userID, key, txType string) (*Receipt, error) {
	db := l.repo.DB(ctx)
	existed, prior, err := l.repo.TxExists(ctx, db, userID, key, txType)
	if err != nil {
		return nil, err
	}
	if !existed {
		return nil, fmt.Errorf("idempotency key %q vanished after conflict", key)
	}
	return l.replay(ctx, db, prior)
}

// refresh writes the committed wallet through to the cache. The write is
// guarded by the row version, so it also fences out a reader that loaded the
// wallet before this commit and fills the cache after it. If the write fails
// the entry is dropped instead.
func (l *ledger) refresh(ctx context.Context, userID string, w *model.Wallet) {
	if w != nil {
		_, err := l.repo.CacheWallet(ctx, w)
		if err == nil {
			return
		}
		l.log.Warnw("wallet cache write-through failed", "user_id", userID, "error", err)
	}
	if err := l.repo.InvalidateWallet(ctx, userID); err != nil {
		l.log.Warnw("wallet cache invalidation failed", "user_id", userID, "error", err)
	}
}

type walletEvent struct {
	EventID       string          `json:"event_id"`
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	Balance       decimal.Decimal `json:"balance"`
	TransactionID uint64          `json:"transaction_id,omitempty"`
	Status        string          `json:"status,omitempty"`
	Description   string          `json:"description,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// emit appends an outbox row inside tx.
func (l *ledger) emit(ctx context.Context, tx *gorm.DB, eventType string, e walletEvent) error {
	e.EventID = uuid.NewString()
	e.OccurredAt = time.Now().UTC()
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return l.repo.CreateOutboxEvent(ctx, tx, &model.OutboxEvent{
		Aggregate:   model.AggregateWallet,
		AggregateID: e.UserID,
		EventType:   eventType,
		Payload:     string(payload),
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
