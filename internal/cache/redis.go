package cache

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/crmcore/internal/config"
)

type Cache struct {
	client *redis.Client
}

func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
