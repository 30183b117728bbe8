package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finmen/healcoin-wallet/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsureWallet creates a zero balance wallet unless one exists.
// It reports whether a row was inserted.
func (r *Repository) EnsureWallet(ctx context.Context, tx *gorm.DB, userID string) (bool, error) {
	w := model.Wallet{UserID: userID, Balance: decimal.Zero, LastUpdated: time.Now().UTC()}
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&w)
	if res.Error != nil {
		return false, fmt.Errorf("ensure wallet: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// GetWallet loads the wallet of userID.
func (r *Repository) GetWallet(ctx context.Context, tx *gorm.DB, userID string) (*model.Wallet, error) {
	var w model.Wallet
	err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return &w, nil
}

// IncreaseBalance adds amt in a single UPDATE and returns the new state.
func (r *Repository) IncreaseBalance(ctx context.Context, tx *gorm.DB, userID string, amt decimal.Decimal) (*model.Wallet, error) {
	res := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"balance":      gorm.Expr("balance + ?", amt),
			"version":      gorm.Expr("version + 1"),
			"last_updated": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("increase balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrWalletNotFound
	}
	return r.GetWallet(ctx, tx, userID)
}

// DecreaseBalance subtracts amt only while the balance covers it. The check
// and the write are one statement, so concurrent debits cannot overdraw.
func (r *Repository) DecreaseBalance(ctx context.Context, tx *gorm.DB, userID string, amt decimal.Decimal) (*model.Wallet, error) {
	res := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("user_id = ? AND balance >= ?", userID, amt).
		Updates(map[string]interface{}{
			"balance":      gorm.Expr("balance - ?", amt),
			"version":      gorm.Expr("version + 1"),
			"last_updated": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("decrease balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrInsufficientFunds
	}
	return r.GetWallet(ctx, tx, userID)
}
