package cache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karloscodes/conductor/cache"
)

func newStore(t *testing.T, opts ...cache.Option) *cache.MemoryStore {
	t.Helper()
	store := cache.NewMemoryStore(opts...)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMemoryStoreGetSet(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.Set("10.0.0.1", []byte("3"), 0))

	got, err := store.Get("10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got)

	got, err = store.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreIgnoresEmptyKeysAndValues(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.Set("", []byte("x"), 0))
	require.NoError(t, store.Set("key", nil, 0))
	assert.Equal(t, 0, store.Len())

	got, err := store.Get("")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := newStore(t, cache.WithCleanupInterval(0))

	require.NoError(t, store.Set("short", []byte("v"), 10*time.Millisecond))
	require.NoError(t, store.Set("forever", []byte("v"), 0))

	time.Sleep(20 * time.Millisecond)

	got, err := store.Get("short")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.Get("forever")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	stats := store.Stats()
	assert.Equal(t, int64(2), stats.Entries, "expired entries wait for cleanup")
	assert.Equal(t, int64(1), stats.ExpiredEntries)
}

func TestMemoryStoreCleanup(t *testing.T) {
	store := newStore(t, cache.WithCleanupInterval(5*time.Millisecond))

	require.NoError(t, store.Set("short", []byte("v"), time.Millisecond))
	require.NoError(t, store.Set("forever", []byte("v"), 0))

	assert.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestMemoryStoreEvictsOldest(t *testing.T) {
	store := newStore(t, cache.WithMaxEntries(2))

	require.NoError(t, store.Set("a", []byte("1"), 0))
	require.NoError(t, store.Set("b", []byte("2"), 0))
	require.NoError(t, store.Set("a", []byte("3"), 0), "overwriting keeps insertion order")
	require.NoError(t, store.Set("c", []byte("4"), 0))

	got, _ := store.Get("a")
	assert.Nil(t, got)
	got, _ = store.Get("b")
	assert.Equal(t, []byte("2"), got)
	got, _ = store.Get("c")
	assert.Equal(t, []byte("4"), got)

	stats := store.Stats()
	assert.Equal(t, int64(2), stats.Entries)
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, "memory", stats.Backend)
}

func TestMemoryStoreDeleteAndReset(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.Set("a", []byte("1"), 0))
	require.NoError(t, store.Set("b", []byte("2"), 0))

	require.NoError(t, store.Delete("a"))
	require.NoError(t, store.Delete("never-set"))
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Reset())
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := newStore(t, cache.WithMaxEntries(50))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("client-%d-%d", worker, j)
				_ = store.Set(key, []byte("1"), time.Minute)
				_, _ = store.Get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, store.Len())
}

func TestMemoryStoreCloseTwice(t *testing.T) {
	store := cache.NewMemoryStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
