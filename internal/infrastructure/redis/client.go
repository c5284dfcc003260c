// Package redis backs the registration lock and the account existence cache.
// Both are optional: the service runs without Redis on one replica.
package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/domain"
)

const pingTimeout = 2 * time.Second

type Client struct {
	rdb *goredis.Client
}

// New does not dial; the first command or Ping does.
func New(addr, password string, db int) *Client {
	return &Client{
		rdb: goredis.NewClient(&goredis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,

			// a lock round trip must not outlive a login attempt
			DialTimeout:  pingTimeout,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   1,

			PoolSize:     20,
			MinIdleConns: 2,
		}),
	}
}

// Ping reports an unreachable server as redis_unavailable.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return domain.ErrRedisUnavailable(err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
