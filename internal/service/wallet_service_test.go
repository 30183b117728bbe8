package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finmen/healcoin-wallet/internal/logger"
	"github.com/finmen/healcoin-wallet/internal/metrics"
	"github.com/finmen/healcoin-wallet/internal/model"
	"github.com/finmen/healcoin-wallet/internal/repo"
	"github.com/finmen/healcoin-wallet/internal/testutil"
)

type testEnv struct {
	repo        *repo.Repository
	wallets     *WalletService
	redemptions *RedemptionService
}

func newTestEnv(t *testing.T, opts Options) (*testEnv, context.Context) {
	t.Helper()
	db := testutil.NewDB(t)
	rdb, _ := testutil.NewRedis(t)
	log := logger.NewNop()
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	r := repo.NewRepository(db, rdb, 0, log)
	return &testEnv{
		repo:        r,
		wallets:     NewWalletService(r, log, opts),
		redemptions: NewRedemptionService(r, log, opts.Metrics),
	}, context.Background()
}

func coins(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func (e *testEnv) outboxTypes(t *testing.T, ctx context.Context) []string {
	t.Helper()
	evts, err := e.repo.PollOutbox(ctx, 1000)
	require.NoError(t, err)
	types := make([]string, 0, len(evts))
	for _, evt := range evts {
		types = append(types, evt.EventType)
	}
	return types
}

func TestWalletService_FullFlow(t *testing.T) {
	env, ctx := newTestEnv(t, Options{})
	svc := env.wallets

	// absent wallet
	_, err := svc.GetWallet(ctx, "u1")
	assert.ErrorIs(t, err, repo.ErrWalletNotFound)

	// first credit creates the wallet
	rc, err := svc.Credit(ctx, "u1", coins(50), "", "")
	require.NoError(t, err)
	assert.Equal(t, "50", rc.Balance.StringFixed(0))
	assert.Equal(t, model.TxCredit, rc.Transaction.Type)
	assert.Equal(t, "HealCoins added", rc.Transaction.Description)
	assert.Nil(t, rc.Transaction.Status)

	// spend
	rc, err = svc.Debit(ctx, "u1", coins(30), "Bought avatar", "")
	require.NoError(t, err)
	assert.Equal(t, "20", rc.Balance.StringFixed(0))
	assert.Equal(t, "Bought avatar", rc.Transaction.Description)

	// overspend leaves everything unchanged
	_, err = svc.Debit(ctx, "u1", coins(1000), "", "")
	assert.ErrorIs(t, err, repo.ErrInsufficientFunds)

	w, err := svc.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "20", w.Balance.StringFixed(0))

	hist, err := svc.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, model.TxDebit, hist[0].Type)
	assert.Equal(t, "30", hist[0].Amount.StringFixed(0))
	assert.Equal(t, model.TxCredit, hist[1].Type)
	assert.Equal(t, "50", hist[1].Amount.StringFixed(0))

	assert.Equal(t, []string{model.EventWalletCredited, model.EventWalletDebited}, env.outboxTypes(t, ctx))
}

func TestWalletService_InvalidAmounts(t *testing.T) {
	env, ctx := newTestEnv(t, Options{})

	for _, amt := range []decimal.Decimal{decimal.Zero, coins(-5)} {
		_, err := env.wallets.Credit(ctx, "u1", amt, "", "")
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = env.wallets.Debit(ctx, "u1", amt, "", "")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}

	_, err := env.wallets.GetWallet(ctx, "u1")
	assert.ErrorIs(t, err, repo.ErrWalletNotFound, "rejected credits must not create a wallet")
}

func TestWalletService_CreditLimit(t *testing.T) {
	env, ctx := newTestEnv(t, Options{MaxCredit: coins(100)})

	_, err := env.wallets.Credit(ctx, "u1", coins(101), "", "")
	assert.ErrorIs(t, err, ErrCreditLimitExceeded)

	rc, err := env.wallets.Credit(ctx, "u1", coins(100), "", "")
	require.NoError(t, err)
	assert.Equal(t, "100", rc.Balance.StringFixed(0))
}

func TestWalletService_BalanceIsSumOfOperations(t *testing.T) {
	env, ctx := newTestEnv(t, Options{})

	ops := []int64{40, -10, 25, -100, -55, 7, -1, -7}
	want := decimal.Zero
	for _, op := range ops {
		var err error
		if op > 0 {
			_, err = env.wallets.Credit(ctx, "u1", coins(op), "", "")
			require.NoError(t, err)
			want = want.Add(coins(op))
			continue
		}
		amt := coins(-op)
		_, err = env.wallets.Debit(ctx, "u1", amt, "", "")
		if want.LessThan(amt) {
			assert.ErrorIs(t, err, repo.ErrInsufficientFunds)
			continue
		}
		require.NoError(t, err)
		want = want.Sub(amt)
	}

	w, err := env.wallets.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(want), "balance %s, want %s", w.Balance, want)
	assert.False(t, w.Balance.IsNegative())

	rec, err := env.wallets.Reconcile(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
}

func TestWalletService_GetWalletIsStable(t *testing.T) {
	env, ctx := newTestEnv(t, Options{})

	_, err := env.wallets.Credit(ctx, "u1", coins(10), "", "")
	require.NoError(t, err)

	first, err := env.wallets.GetWallet(ctx, "u1")
	require.NoError(t, err)
	second, err := env.wallets.GetWallet(ctx, "u1")
	require.NoError(t, err)

	assert.True(t, first.Balance.Equal(second.Balance))
	assert.True(t, first.LastUpdated.Equal(second.LastUpdated))

	// a mutation invalidates the cached copy
	_, err = env.wallets.Credit(ctx, "u1", coins(5), "", "")
	require.NoError(t, err)
	third, err := env.wallets.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "15", third.Balance.StringFixed(0))
	assert.False(t, third.LastUpdated.Before(second.LastUpdated))
}

func TestWalletService_IdempotentReplay(t *testing.T) {
	env, ctx := newTestEnv(t, Options{})

	rc1, err := env.wallets.Credit(ctx, "u1", coins(50), "", "game-42")
	require.NoError(t, err)
	rc2, err := env.wallets.Credit(ctx, "u1", coins(50), "", "game-42")
	require.NoError(t, err)

	assert.False(t, rc1.Replayed)
	assert.True(t, rc2.Replayed)
	assert.Equal(t, rc1.Transaction.ID, rc2.Transaction.ID)
	assert.Equal(t, "50", rc2.Balance.StringFixed(0))

	// the same key for a different operation is a different request
	rc3, err := env.wallets.Debit(ctx, "u1", coins(10), "", "game-42")
	require.NoError(t, err)
	assert.False(t, rc3.Replayed)
	assert.Equal(t, "40", rc3.Balance.StringFixed(0))

	hist, err := env.wallets.History(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}

func TestWalletService_ConcurrentSpends(t *testing.T) {
	env, ctx := newTestEnv(t, Options{})

	_, err := env.wallets.Credit(ctx, "u1", coins(50), "", "")
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.wallets.Debit(ctx, "u1", coins(30), "", "")
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, repo.ErrInsufficientFunds):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)

	w, err := env.wallets.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "20", w.Balance.StringFixed(0), "balance must never reach -10")
}

func TestWalletService_Provision(t *testing.T) {
	env, ctx := newTestEnv(t, Options{})

	w, created, err := env.wallets.Provision(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, w.Balance.IsZero())

	_, err = env.wallets.Credit(ctx, "u1", coins(3), "", "")
	require.NoError(t, err)

	w, created, err = env.wallets.Provision(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "3", w.Balance.StringFixed(0))

	assert.Equal(t, []string{model.EventWalletProvisioned, model.EventWalletCredited}, env.outboxTypes(t, ctx))
}

func TestLedgerBalance(t *testing.T) {
	st := func(s string) *string { return &s }
	txs := []model.Transaction{
		{Type: model.TxCredit, Amount: coins(100)},
		{Type: model.TxDebit, Amount: coins(10)},
		{Type: model.TxRedeem, Amount: coins(20), Status: st(model.StatusPending)},
		{Type: model.TxRedeem, Amount: coins(30), Status: st(model.StatusApproved)},
		{Type: model.TxRedeem, Amount: coins(15), Status: st(model.StatusRejected)},
	}
	assert.Equal(t, "40", LedgerBalance(txs).StringFixed(0))
	assert.True(t, LedgerBalance(nil).IsZero())
}

// racingRepo runs commit once, between GetWallet's database read and its
// cache fill.
type racingRepo struct {
	*repo.Repository
	commit func()
}

func (r *racingRepo) CacheWallet(ctx context.Context, w *model.Wallet) (bool, error) {
	if r.commit != nil {
		commit := r.commit
		r.commit = nil
		commit()
	}
	return r.Repository.CacheWallet(ctx, w)
}

func TestWalletService_LateCacheFillAfterCommit(t *testing.T) {
	env, ctx := newTestEnv(t, Options{})
	_, err := env.wallets.Credit(ctx, "u1", coins(50), "", "")
	require.NoError(t, err)
	require.NoError(t, env.repo.InvalidateWallet(ctx, "u1"))

	racing := &racingRepo{Repository: env.repo}
	reader := NewWalletService(racing, logger.NewNop(), Options{})
	racing.commit = func() {
		_, err := env.wallets.Debit(ctx, "u1", coins(30), "", "")
		require.NoError(t, err)
	}

	// the reader still returns what it read, but must not cache it
	w, err := reader.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "50", w.Balance.StringFixed(0))

	w, err = env.wallets.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "20", w.Balance.StringFixed(0), "balance served after committed debit")
}

func TestWalletService_LargeCredit(t *testing.T) {
	env, ctx := newTestEnv(t, Options{})
	big := decimal.RequireFromString("1000000000000000")

	rc, err := env.wallets.Credit(ctx, "u1", big, "", "")
	require.NoError(t, err)
	assert.True(t, rc.Balance.Equal(big), "balance %s", rc.Balance)

	w, err := env.wallets.GetWallet(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(big))
}
