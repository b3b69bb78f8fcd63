package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"

	"github.com/glowmart/storefront-bff/domain"
)

// TokenCache is an in-process read cache of commerce tokens keyed by user
// id, sitting in front of the store. Entries are inserted with a TTL that
// ends at expiresAt minus the safety buffer, so a cache hit is always a
// token the lifecycle manager would classify as VALID. The store remains
// authoritative; the cache only saves a read on the hot path.
type TokenCache struct {
	cache *ttlcache.Cache[string, domain.CustomerToken]
}

// NewTokenCache creates the cache and starts its expiry janitor.
func NewTokenCache() *TokenCache {
	c := ttlcache.New[string, domain.CustomerToken]()
	go c.Start()
	return &TokenCache{cache: c}
}

// Get returns the cached token for the user, if a still-valid entry exists.
func (tc *TokenCache) Get(ctx context.Context, userID string) (domain.CustomerToken, bool) {
	item := tc.cache.Get(userID)
	if item == nil {
		return domain.CustomerToken{}, false
	}
	log.Ctx(ctx).Debug().Str("user_id", userID).Msg("token cache hit")
	return item.Value(), true
}

// Set caches a token until it stops being safely usable. Tokens already
// inside the buffer window are not cached at all.
func (tc *TokenCache) Set(ctx context.Context, userID string, token domain.CustomerToken, buffer time.Duration) {
	ttl := time.Until(token.ExpiresAt.Add(-buffer))
	if ttl <= 0 {
		return
	}
	tc.cache.Set(userID, token, ttl)
	log.Ctx(ctx).Debug().
		Str("user_id", userID).
		Time("expires_at", token.ExpiresAt).
		Msg("token cached")
}

// Delete drops the cached token for the user.
func (tc *TokenCache) Delete(userID string) {
	tc.cache.Delete(userID)
}

// Close stops the expiry janitor.
func (tc *TokenCache) Close() {
	tc.cache.Stop()
}
