package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/finmen/healcoin-wallet/internal/model"
)

func walletKey(userID string) string { return fmt.Sprintf("wallet:%s", userID) }

// storeIfNewer keeps the cached wallet monotonic in its row version, so a
// slow reader can never overwrite the state a later commit wrote.
var storeIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'd', ARGV[2])
if tonumber(ARGV[3]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// CacheWallet writes w unless the cache already holds a newer version.
// It reports whether the entry was stored. Without a Redis client it is a no-op.
func (r *Repository) CacheWallet(ctx context.Context, w *model.Wallet) (bool, error) {
	if r.rdb == nil {
		return false, nil
	}
	b, err := json.Marshal(w)
	if err != nil {
		return false, err
	}
	stored, err := storeIfNewer.Run(ctx, r.rdb, []string{walletKey(w.UserID)},
		w.Version, b, r.cacheTTL.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("cache wallet: %w", err)
	}
	return stored == 1, nil
}

// GetCachedWallet reads Redis. A miss is reported as redis.Nil.
func (r *Repository) GetCachedWallet(ctx context.Context, userID string) (*model.Wallet, error) {
	if r.rdb == nil {
		return nil, redis.Nil
	}
	fields, err := r.rdb.HGetAll(ctx, walletKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	data, ok := fields["d"]
	if !ok {
		return nil, redis.Nil
	}
	var w model.Wallet
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return nil, err
	}
	if w.Version, err = strconv.ParseUint(fields["v"], 10, 64); err != nil {
		return nil, fmt.Errorf("cached wallet version: %w", err)
	}
	return &w, nil
}

// InvalidateWallet drops the cached wallet of userID.
func (r *Repository) InvalidateWallet(ctx context.Context, userID string) error {
	if r.rdb == nil {
		return nil
	}
	return r.rdb.Del(ctx, walletKey(userID)).Err()
}
