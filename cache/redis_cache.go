package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

func InitRedisCache(ctx context.Context, redisAddress string, keyPrefix string) (*RedisCache, error) {
	rdc := redis.NewClient(&redis.Options{
		Addr:        redisAddress,
		ReadTimeout: time.Second * 20,
	})

	if err := rdc.Ping(ctx).Err(); err != nil {
		rdc.Close()
		return nil, err
	}

	return &RedisCache{
		client:    rdc,
		keyPrefix: keyPrefix,
	}, nil
}

func (cache *RedisCache) key(key string) string {
	return fmt.Sprintf("%s%s", cache.keyPrefix, key)
}

func (cache *RedisCache) SetBytes(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return cache.client.Set(ctx, cache.key(key), value, expiration).Err()
}

// GetBytes returns ErrCacheMiss for unknown keys.
func (cache *RedisCache) GetBytes(ctx context.Context, key string) ([]byte, time.Duration, error) {
	pipe := cache.client.Pipeline()
	getCmd := pipe.Get(ctx, cache.key(key))
	ttlCmd := pipe.TTL(ctx, cache.key(key))
	_, err := pipe.Exec(ctx)
	if err == redis.Nil {
		return nil, 0, ErrCacheMiss
	}
	if err != nil {
		return nil, 0, err
	}

	value, err := getCmd.Bytes()
	if err != nil {
		return nil, 0, err
	}
	return value, ttlCmd.Val(), nil
}

func (cache *RedisCache) Close() error {
	return cache.client.Close()
}
