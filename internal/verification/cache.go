package verification

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const missKeyPrefix = "verify:miss:"

// RedisNegativeCache remembers lookup misses in Redis. Tokens are hashed
// before use as keys so probed values never land in Redis verbatim.
type RedisNegativeCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisNegativeCache constructs a miss cache with the given TTL.
func NewRedisNegativeCache(client *redis.Client, ttl time.Duration) *RedisNegativeCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisNegativeCache{client: client, ttl: ttl}
}

func missKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return missKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *RedisNegativeCache) IsMiss(ctx context.Context, token string) (bool, error) {
	_, err := c.client.Get(ctx, missKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisNegativeCache) RememberMiss(ctx context.Context, token string) error {
	return c.client.Set(ctx, missKey(token), "1", c.ttl).Err()
}
