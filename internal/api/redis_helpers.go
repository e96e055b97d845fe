package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

func incrWithTTL(ctx context.Context, client redisRateCounter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}

// allowWithinWindow counts one hit on a fixed window bucket and reports
// whether the hit stays within limit. Counter failures let the request
// through.
func allowWithinWindow(ctx context.Context, client redisRateCounter, prefix string, limit int, window time.Duration, now time.Time) bool {
	if client == nil || limit <= 0 {
		return true
	}
	bucket := now.UTC().Truncate(window).Unix()
	count, err := incrWithTTL(ctx, client, fmt.Sprintf("%s:%d", prefix, bucket), window)
	if err != nil {
		return true
	}
	return count <= int64(limit)
}
