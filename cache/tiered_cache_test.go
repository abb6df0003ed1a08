package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRemote struct {
	mu      sync.Mutex
	entries map[string][]byte
	gets    int
}

func newMemoryRemote() *memoryRemote {
	return &memoryRemote{entries: map[string][]byte{}}
}

func (m *memoryRemote) SetBytes(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *memoryRemote) GetBytes(_ context.Context, key string) ([]byte, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	value, ok := m.entries[key]
	if !ok {
		return nil, 0, ErrCacheMiss
	}
	return value, time.Minute, nil
}

func (m *memoryRemote) Close() error {
	return nil
}

func TestTieredCacheLocalOnly(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cache, err := NewTieredCache(context.Background(), 1024*1024, "", "", logger)
	require.NoError(t, err)

	_, err = cache.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.Set(context.Background(), "key", []byte("value"), time.Minute))
	value, err := cache.Get(context.Background(), "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)
	assert.NoError(t, cache.Close())
}

func TestTieredCacheRemoteFill(t *testing.T) {
	logger, _ := test.NewNullLogger()
	remote := newMemoryRemote()
	remote.entries["shared"] = []byte("from-remote")

	cache := NewTieredCacheWithRemote(1024*1024, remote, logger)

	value, err := cache.Get(context.Background(), "shared")
	require.NoError(t, err)
	assert.Equal(t, []byte("from-remote"), value)

	// second read is answered by the local tier
	_, err = cache.Get(context.Background(), "shared")
	require.NoError(t, err)
	assert.Equal(t, 1, remote.gets)

	require.NoError(t, cache.Set(context.Background(), "written", []byte("both"), time.Minute))
	assert.Equal(t, []byte("both"), remote.entries["written"])
}

func TestTieredCacheLargeEntry(t *testing.T) {
	logger, hook := test.NewNullLogger()
	remote := newMemoryRemote()
	cache := NewTieredCacheWithRemote(512*1024, remote, logger)
	assert.Equal(t, 488, cache.MaxLocalEntrySize())

	value := make([]byte, 1024)
	require.NoError(t, cache.Set(context.Background(), "large", value, time.Minute))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Contains(t, entry.Message, "exceeds 488 bytes")

	// served by the remote tier only
	cached, err := cache.Get(context.Background(), "large")
	require.NoError(t, err)
	assert.Len(t, cached, 1024)
	assert.Equal(t, 1, remote.gets)
}
