package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoked staff tokens are held in Redis until their natural expiry so a
// logged-out session cannot keep acting on onboarding files.
const revokedTokenKeyPrefix = "onboarding:token:revoked:"

// RedisTokenBlacklist implements TokenBlacklist using Redis.
type RedisTokenBlacklist struct {
	client *redis.Client
}

// NewRedisTokenBlacklist creates a new RedisTokenBlacklist.
func NewRedisTokenBlacklist(client *redis.Client) *RedisTokenBlacklist {
	return &RedisTokenBlacklist{client: client}
}

// Blacklist revokes a token for the given duration.
func (b *RedisTokenBlacklist) Blacklist(ctx context.Context, token string, expiration time.Duration) error {
	return b.client.Set(ctx, revokedTokenKeyPrefix+token, "revoked", expiration).Err()
}

// IsBlacklisted checks whether a token has been revoked.
func (b *RedisTokenBlacklist) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	exists, err := b.client.Exists(ctx, revokedTokenKeyPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
