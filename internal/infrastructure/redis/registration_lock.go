package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/application/provider"
	"github.com/baechuer/real-time-ressys/services/mwauth-service/internal/domain"
)

// releaseScript deletes the lock only if we still own it, so a holder whose
// ttl ran out cannot free someone else's lock.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RegistrationLock is a single-instance Redis lock (SET NX PX) shared by all
// replicas. When Redis cannot be reached it hands out the fallback lock
// instead, which only serializes within this process.
type RegistrationLock struct {
	rdb        *goredis.Client
	fallback   provider.RegistrationLock
	log        zerolog.Logger
	keyPref    string
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewRegistrationLock(client *Client) *RegistrationLock {
	return &RegistrationLock{
		rdb:        client.rdb,
		keyPref:    "mwauth:lock:",
		minBackoff: 20 * time.Millisecond,
		maxBackoff: 200 * time.Millisecond,
		log:        zerolog.Nop(),
	}
}

func (l *RegistrationLock) WithFallback(fb provider.RegistrationLock, lg zerolog.Logger) *RegistrationLock {
	l.fallback = fb
	l.log = lg
	return l
}

// Acquire retries until the lock is free or ctx is done.
func (l *RegistrationLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	k := l.keyPref + key
	token := uuid.NewString()
	backoff := l.minBackoff

	for {
		ok, err := l.rdb.SetNX(ctx, k, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, domain.ErrLockBusy(key)
			}
			if l.fallback != nil {
				l.log.Warn().Err(err).Str("key", key).Msg("redis lock unavailable, using in-process lock")
				return l.fallback.Acquire(ctx, key, ttl)
			}
			return nil, domain.ErrRedisUnavailable(err)
		}
		if ok {
			return l.releaser(k, token), nil
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, domain.ErrLockBusy(key)
		case <-t.C:
		}
		if backoff *= 2; backoff > l.maxBackoff {
			backoff = l.maxBackoff
		}
	}
}

func (l *RegistrationLock) releaser(k, token string) func() {
	return func() {
		// the request context may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rdb, []string{k}, token).Err()
	}
}
