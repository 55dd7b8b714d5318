package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const throttlePrefix = "crm:ratelimit"

// Throttle counts hits per key in fixed windows. The Redis store shares
// counts across replicas; the memory store is per process.
type Throttle struct {
	store limiter.Store
}

func NewRedisThrottle(client *redis.Client) (*Throttle, error) {
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: throttlePrefix})
	if err != nil {
		return nil, fmt.Errorf("redis limiter store: %w", err)
	}
	return &Throttle{store: store}, nil
}

func NewMemoryThrottle() *Throttle {
	return &Throttle{store: memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          throttlePrefix,
		CleanUpInterval: time.Minute,
	})}
}

// Store exposes the backing store so other limiters can share it.
func (t *Throttle) Store() limiter.Store { return t.store }

// Allow counts one hit against key and reports whether it is still
// within limit for the current window.
func (t *Throttle) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	lctx, err := limiter.New(t.store, limiter.Rate{Period: window, Limit: int64(limit)}).Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return !lctx.Reached, nil
}
