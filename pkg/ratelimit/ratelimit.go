package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func key(client, action string) string {
	return fmt.Sprintf("rate_limit:client:%s:%s", client, action)
}

// CheckAndSet reports whether client may perform action now, and if so locks
// it for limit. A nil redis client disables limiting.
func CheckAndSet(ctx context.Context, rdb *redis.Client, client, action string, limit time.Duration) (bool, error) {
	if rdb == nil || limit <= 0 {
		return true, nil
	}

	wasSet, err := rdb.SetNX(ctx, key(client, action), "locked", limit).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit in redis: %w", err)
	}

	return wasSet, nil
}

func TTL(ctx context.Context, rdb *redis.Client, client, action string) (time.Duration, error) {
	if rdb == nil {
		return 0, nil
	}
	return rdb.TTL(ctx, key(client, action)).Result()
}
