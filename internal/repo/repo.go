package repo

import (
	"context"
	"errors"
	"time"

	"github.com/finmen/healcoin-wallet/internal/model"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInsufficientFunds is returned when wallet balance is not enough.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrWalletNotFound is returned when the user has no wallet yet.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrTransactionNotFound is returned for an unknown transaction id.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrRedemptionResolved is returned when a redemption already left pending.
	ErrRedemptionResolved = errors.New("redemption already resolved")
)

// RepositoryInterface restricts Repo methods so services can be tested
// against any implementation.
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB

	EnsureWallet(ctx context.Context, tx *gorm.DB, userID string) (bool, error)
	GetWallet(ctx context.Context, tx *gorm.DB, userID string) (*model.Wallet, error)
	IncreaseBalance(ctx context.Context, tx *gorm.DB, userID string, amt decimal.Decimal) (*model.Wallet, error)
	DecreaseBalance(ctx context.Context, tx *gorm.DB, userID string, amt decimal.Decimal) (*model.Wallet, error)

	CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction) error
	TxExists(ctx context.Context, tx *gorm.DB, userID, idemKey, txType string) (bool, *model.Transaction, error)
	ListTransactions(ctx context.Context, tx *gorm.DB, userID string) ([]model.Transaction, error)
	GetTransaction(ctx context.Context, tx *gorm.DB, id uint64) (*model.Transaction, error)
	ListRedemptions(ctx context.Context, tx *gorm.DB, status string) ([]model.Transaction, error)
	ResolveRedemption(ctx context.Context, tx *gorm.DB, id uint64, status string) (*model.Transaction, error)

	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error

	CacheWallet(ctx context.Context, w *model.Wallet) (bool, error)
	GetCachedWallet(ctx context.Context, userID string) (*model.Wallet, error)
	InvalidateWallet(ctx context.Context, userID string) error
}

// Repository implements RepositoryInterface on gorm and Redis.
type Repository struct {
	db       *gorm.DB
	rdb      *redis.Client
	cacheTTL time.Duration
	log      *zap.SugaredLogger
}

// NewRepository constructs repo. A nil rdb disables the wallet cache: reads
// always miss and writes are no-ops.
func NewRepository(db *gorm.DB, rdb *redis.Client, cacheTTL time.Duration, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, cacheTTL: cacheTTL, log: logger}
}

// Migrate creates or updates the ledger tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Wallet{}, &model.Transaction{}, &model.OutboxEvent{})
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }
