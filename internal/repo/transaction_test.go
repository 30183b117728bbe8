package repo

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/finmen/healcoin-wallet/internal/model"
)

func strptr(s string) *string { return &s }

func TestListTransactions_NewestFirst(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	db := r.DB(ctx)

	for i, typ := range []string{model.TxCredit, model.TxDebit, model.TxCredit} {
		require.NoError(t, r.CreateTransaction(ctx, db, &model.Transaction{
			UserID: "u1", Type: typ, Amount: decimal.NewFromInt(int64(i + 1)),
		}))
	}
	require.NoError(t, r.CreateTransaction(ctx, db, &model.Transaction{
		UserID: "u2", Type: model.TxCredit, Amount: decimal.NewFromInt(9),
	}))

	txs, err := r.ListTransactions(ctx, db, "u1")
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "3", txs[0].Amount.StringFixed(0))
	assert.Equal(t, "2", txs[1].Amount.StringFixed(0))
	assert.Equal(t, "1", txs[2].Amount.StringFixed(0))

	empty, err := r.ListTransactions(ctx, db, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestTxExists(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	db := r.DB(ctx)

	found, _, err := r.TxExists(ctx, db, "u1", "", model.TxCredit)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, r.CreateTransaction(ctx, db, &model.Transaction{
		UserID: "u1", Type: model.TxCredit, Amount: decimal.NewFromInt(5),
		BalanceAfter: decimal.NewFromInt(5), IdempotencyKey: strptr("k1"),
	}))

	found, tx, err := r.TxExists(ctx, db, "u1", "k1", model.TxCredit)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "5", tx.BalanceAfter.StringFixed(0))

	found, _, err = r.TxExists(ctx, db, "u1", "k1", model.TxDebit)
	require.NoError(t, err)
	assert.False(t, found)

	err = r.CreateTransaction(ctx, db, &model.Transaction{
		UserID: "u1", Type: model.TxCredit, Amount: decimal.NewFromInt(5), IdempotencyKey: strptr("k1"),
	})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestResolveRedemption(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	db := r.DB(ctx)

	redeem := &model.Transaction{
		UserID: "u1", Type: model.TxRedeem, Amount: decimal.NewFromInt(20),
		Status: strptr(model.StatusPending), UpiID: strptr("a@upi"),
	}
	require.NoError(t, r.CreateTransaction(ctx, db, redeem))
	credit := &model.Transaction{UserID: "u1", Type: model.TxCredit, Amount: decimal.NewFromInt(1)}
	require.NoError(t, r.CreateTransaction(ctx, db, credit))

	pending, err := r.ListRedemptions(ctx, db, model.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	got, err := r.ResolveRedemption(ctx, db, redeem.ID, model.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, *got.Status)
	assert.NotNil(t, got.ResolvedAt)

	_, err = r.ResolveRedemption(ctx, db, redeem.ID, model.StatusRejected)
	assert.ErrorIs(t, err, ErrRedemptionResolved)

	_, err = r.ResolveRedemption(ctx, db, credit.ID, model.StatusApproved)
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	_, err = r.ResolveRedemption(ctx, db, 9999, model.StatusApproved)
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	all, err := r.ListRedemptions(ctx, db, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
	pending, err = r.ListRedemptions(ctx, db, model.StatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
