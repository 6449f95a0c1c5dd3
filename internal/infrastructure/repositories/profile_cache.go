package repositories

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/you/tradegate/domain"
)

// ProfileCacheImpl implements domain.ProfileCache on Redis. Keys are derived
// from a hash of the bearer token so raw tokens never appear in key space;
// the short TTL bounds staleness after profile mutations upstream.
type ProfileCacheImpl struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewProfileCache creates a new profile cache.
func NewProfileCache(client *redis.Client, ttl time.Duration) domain.ProfileCache {
	return &ProfileCacheImpl{
		client: client,
		prefix: "profile:",
		ttl:    ttl,
	}
}

func (c *ProfileCacheImpl) key(bearer string) string {
	sum := sha256.Sum256([]byte(bearer))
	return c.prefix + hex.EncodeToString(sum[:16])
}

// Get implements domain.ProfileCache.
func (c *ProfileCacheImpl) Get(ctx context.Context, bearer string) (json.RawMessage, bool) {
	data, err := c.client.Get(ctx, c.key(bearer)).Result()
	if err != nil {
		return nil, false
	}
	return json.RawMessage(data), true
}

// Set implements domain.ProfileCache.
func (c *ProfileCacheImpl) Set(ctx context.Context, bearer string, payload json.RawMessage) error {
	return c.client.Set(ctx, c.key(bearer), []byte(payload), c.ttl).Err()
}

// Invalidate implements domain.ProfileCache.
func (c *ProfileCacheImpl) Invalidate(ctx context.Context, bearer string) error {
	return c.client.Del(ctx, c.key(bearer)).Err()
}
