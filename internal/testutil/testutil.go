package testutil

import (
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/finmen/healcoin-wallet/internal/model"
)

// NewDB opens a private in-memory SQLite database with the ledger schema.
// The pool is pinned to one connection so the memory database lives as long
// as the test and concurrent callers queue on it.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.Wallet{}, &model.Transaction{}, &model.OutboxEvent{}))
	return db
}

// NewRedis starts an in-process Redis server and returns a client for it.
func NewRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

// RecordSQL captures every statement db runs from now on, with placeholders
// in place of values. The returned func snapshots what was seen so far.
func RecordSQL(t *testing.T, db *gorm.DB) func() []string {
	t.Helper()

	var (
		mu    sync.Mutex
		stmts []string
	)
	record := func(d *gorm.DB) {
		mu.Lock()
		defer mu.Unlock()
		stmts = append(stmts, d.Statement.SQL.String())
	}
	cb := db.Callback()
	require.NoError(t, cb.Query().After("gorm:query").Register("testutil:record_query", record))
	require.NoError(t, cb.Update().After("gorm:update").Register("testutil:record_update", record))
	require.NoError(t, cb.Create().After("gorm:create").Register("testutil:record_create", record))
	require.NoError(t, cb.Raw().After("gorm:raw").Register("testutil:record_raw", record))

	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), stmts...)
	}
}
