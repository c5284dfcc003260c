package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/application/provider"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/domain"
)

// CachedAccountRepo decorates a provider.AccountHandler with a Redis cache of
// positive existence results.
// - Read path: Redis -> inner fallback -> Redis set (only when present)
// - Write path: inner -> Redis set (best effort)
// Accounts are never deleted through this service, so a cached "exists"
// cannot go stale. Negative results are not cached.
type CachedAccountRepo struct {
	inner   provider.AccountHandler
	rdb     *goredis.Client
	ttl     time.Duration
	keyPref string
}

func NewCachedAccountRepo(inner provider.AccountHandler, client *Client, ttl time.Duration) *CachedAccountRepo {
	var rdb *goredis.Client
	if client != nil {
		rdb = client.rdb
	}
	return &CachedAccountRepo{
		inner:   inner,
		rdb:     rdb,
		ttl:     ttl,
		keyPref: "mwauth:acct:",
	}
}

func (c *CachedAccountRepo) key(userID string) string {
	return c.keyPref + userID
}

func (c *CachedAccountRepo) CheckUserExists(ctx context.Context, userID string) (bool, error) {
	// 1) Try Redis; any redis error falls through to the store
	if c.rdb != nil {
		if n, err := c.rdb.Exists(ctx, c.key(userID)).Result(); err == nil && n > 0 {
			return true, nil
		}
	}

	// 2) Store is the source of truth
	ok, err := c.inner.CheckUserExists(ctx, userID)
	if err != nil || !ok {
		return ok, err
	}

	c.remember(ctx, userID)
	return true, nil
}

func (c *CachedAccountRepo) Register(ctx context.Context, a domain.Account) (domain.Account, error) {
	out, err := c.inner.Register(ctx, a)
	if err == nil || domain.Is(err, "account_exists") {
		c.remember(ctx, a.UserID)
	}
	return out, err
}

func (c *CachedAccountRepo) remember(ctx context.Context, userID string) {
	if c.rdb != nil {
		_ = c.rdb.Set(ctx, c.key(userID), "1", c.ttl).Err()
	}
}
