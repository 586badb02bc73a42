// ==============================================================================
// REDIS CACHE - pkg/cache/redis.go
// ==============================================================================
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(url, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, expiration).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(data), dest)
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Client exposes the underlying redis client for middleware that
// operates on raw keys.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// RiskAssessmentKey is the cache key for the latest risk assessment of an
// onboarding. Cached reads are advisory; the store remains authoritative.
func RiskAssessmentKey(onboardingID uuid.UUID) string {
	return fmt.Sprintf("onboarding:%s:risk", onboardingID)
}

// ProgressKey is the cache key for checklist progress of an onboarding.
func ProgressKey(onboardingID uuid.UUID) string {
	return fmt.Sprintf("onboarding:%s:progress", onboardingID)
}
