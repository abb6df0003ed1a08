package cache

import (
	"context"
	"errors"
	"time"

	"github.com/coocood/freecache"
	"github.com/sirupsen/logrus"
)

var ErrCacheMiss = errors.New("cache miss")

// RemoteCache is a shared cache behind the local in-memory tier.
type RemoteCache interface {
	SetBytes(ctx context.Context, key string, value []byte, expiration time.Duration) error
	GetBytes(ctx context.Context, key string) ([]byte, time.Duration, error)
	Close() error
}

// TieredCache combines a local freecache with an optional remote cache.
type TieredCache struct {
	local     *freecache.Cache
	localSize int
	remote    RemoteCache
	logger    logrus.FieldLogger
}

// NewTieredCache creates a tiered cache with cacheSize bytes of local memory.
// The remote tier is only used when redisAddress is set.
func NewTieredCache(ctx context.Context, cacheSize int, redisAddress string, redisPrefix string, logger logrus.FieldLogger) (*TieredCache, error) {
	var remote RemoteCache
	if redisAddress != "" {
		ctx, cancel := context.WithTimeout(ctx, time.Second*30)
		defer cancel()

		redisCache, err := InitRedisCache(ctx, redisAddress, redisPrefix)
		if err != nil {
			logger.WithError(err).Errorf("error initializing remote redis cache. address: %v", redisAddress)
			return nil, err
		}
		remote = redisCache
	}

	return NewTieredCacheWithRemote(cacheSize, remote, logger), nil
}

func NewTieredCacheWithRemote(cacheSize int, remote RemoteCache, logger logrus.FieldLogger) *TieredCache {
	// freecache never goes below 512 KiB
	if cacheSize < 512*1024 {
		cacheSize = 512 * 1024
	}
	return &TieredCache{
		local:     freecache.NewCache(cacheSize),
		localSize: cacheSize,
		remote:    remote,
		logger:    logger,
	}
}

// MaxLocalEntrySize is the largest key plus value the local tier accepts.
// freecache limits entries to a quarter of one of its 256 segments, minus the entry header.
func (cache *TieredCache) MaxLocalEntrySize() int {
	return cache.localSize/1024 - 24
}

func (cache *TieredCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	if err := cache.local.Set([]byte(key), value, int(expiration.Seconds())); err != nil {
		if errors.Is(err, freecache.ErrLargeEntry) {
			cache.logger.Warnf("local cache rejected key %v: entry of %v bytes exceeds %v bytes, increase the cache size", key, len(key)+len(value), cache.MaxLocalEntrySize())
		} else {
			cache.logger.WithError(err).Warnf("local cache rejected key %v", key)
		}
	}
	if cache.remote != nil {
		return cache.remote.SetBytes(ctx, key, value, expiration)
	}
	return nil
}

func (cache *TieredCache) Get(ctx context.Context, key string) ([]byte, error) {
	if value, err := cache.local.Get([]byte(key)); err == nil {
		return value, nil
	}

	if cache.remote == nil {
		return nil, ErrCacheMiss
	}

	value, ttl, err := cache.remote.GetBytes(ctx, key)
	if err != nil {
		return nil, err
	}

	if ttl > 2*time.Second {
		_ = cache.local.Set([]byte(key), value, int(ttl.Seconds()))
	}
	return value, nil
}

func (cache *TieredCache) Close() error {
	if cache.remote != nil {
		return cache.remote.Close()
	}
	return nil
}
