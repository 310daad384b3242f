package cache

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client goredis.UniversalClient
	prefix string
}

func NewRedisCache(client goredis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) Name() string { return BackendRedis }

func (c *RedisCache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get aggregation: %w", err)
	}
	return data, true, nil
}

// Put uses SET NX with the entry TTL.
func (c *RedisCache) Put(ctx context.Context, e Entry) (bool, error) {
	if e.TTL <= 0 {
		return false, nil
	}
	ok, err := c.client.SetNX(ctx, c.key(e.Key), e.Payload, e.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis put aggregation: %w", err)
	}
	return ok, nil
}
