package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/glowmart/storefront-bff/cache"
)

// RenewalLock implements cache.RenewalLocker on Redis using SET NX with a
// TTL. The TTL bounds how long a crashed holder can block other instances;
// it should comfortably exceed one renew-plus-reauth round trip.
type RenewalLock struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRenewalLock creates a lock manager. A zero ttl defaults to 30s.
func NewRenewalLock(client *redis.Client, prefix string, ttl time.Duration) *RenewalLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RenewalLock{client: client, prefix: prefix, ttl: ttl}
}

func (l *RenewalLock) key(userID string) string {
	return fmt.Sprintf("%s:token_renewal:%s", l.prefix, userID)
}

// TryAcquire takes the per-user lock if free.
func (l *RenewalLock) TryAcquire(ctx context.Context, userID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(userID), 1, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire renewal lock: %w", err)
	}
	return ok, nil
}

// Release frees the lock. Errors are logged, not returned: the TTL will
// reclaim the key regardless.
func (l *RenewalLock) Release(ctx context.Context, userID string) {
	if err := l.client.Del(ctx, l.key(userID)).Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("failed to release renewal lock")
	}
}

var _ cache.RenewalLocker = (*RenewalLock)(nil)
