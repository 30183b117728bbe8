package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finmen/healcoin-wallet/internal/model"
	"gorm.io/gorm"
)

// CreateTransaction inserts record.
func (r *Repository) CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction) error {
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// TxExists checks duplicate by idem key.
func (r *Repository) TxExists(ctx context.Context, tx *gorm.DB, userID, idemKey, txType string) (bool, *model.Transaction, error) {
	if idemKey == "" {
		return false, nil, nil
	}
	var t model.Transaction
	err := tx.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ? AND type = ?", userID, idemKey, txType).
		First(&t).Error
	if err == nil {
		return true, &t, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil, nil
	}
	return false, nil, fmt.Errorf("lookup idempotency key: %w", err)
}

// ListTransactions returns every entry of userID, newest first.
func (r *Repository) ListTransactions(ctx context.Context, tx *gorm.DB, userID string) ([]model.Transaction, error) {
	txs := make([]model.Transaction, 0)
	err := tx.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").Order("id desc").
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// GetTransaction loads one entry by id.
func (r *Repository) GetTransaction(ctx context.Context, tx *gorm.DB, id uint64) (*model.Transaction, error) {
	var t model.Transaction
	err := tx.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}

// ListRedemptions returns redeem entries, newest first. An empty status
// returns all of them.
func (r *Repository) ListRedemptions(ctx context.Context, tx *gorm.DB, status string) ([]model.Transaction, error) {
	q := tx.WithContext(ctx).Where("type = ?", model.TxRedeem)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	txs := make([]model.Transaction, 0)
	if err := q.Order("created_at desc").Order("id desc").Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	return txs, nil
}

// ResolveRedemption moves a pending redeem entry to status. The update is
// conditional on the entry still being pending, so only one decision wins.
func (r *Repository) ResolveRedemption(ctx context.Context, tx *gorm.DB, id uint64, status string) (*model.Transaction, error) {
	now := time.Now().UTC()
	res := tx.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ? AND type = ? AND status = ?", id, model.TxRedeem, model.StatusPending).
		Updates(map[string]interface{}{"status": status, "resolved_at": now})
	if res.Error != nil {
		return nil, fmt.Errorf("resolve redemption: %w", res.Error)
	}

	t, err := r.GetTransaction(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		if t.Type != model.TxRedeem {
			return nil, ErrTransactionNotFound
		}
		if !t.IsPending() {
			return t, ErrRedemptionResolved
		}
		return nil, fmt.Errorf("resolve redemption %d: pending entry was not updated", id)
	}
	return t, nil
}
