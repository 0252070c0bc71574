package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"txcrawler/internal/config"
	"txcrawler/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryHashSet struct {
	mu     sync.Mutex
	hashes map[string]bool
	hits   int
	err    error
}

func (m *memoryHashSet) Has(_ context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.hashes[hash] {
		m.hits++
		return true, nil
	}
	return false, nil
}

func (m *memoryHashSet) Add(_ context.Context, hashes ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hashes == nil {
		m.hashes = make(map[string]bool)
	}
	for _, hash := range hashes {
		m.hashes[hash] = true
	}
	return nil
}

func (m *memoryHashSet) Close() error { return nil }

func openSqlite(t *testing.T) Adapter {
	t.Helper()
	adapter, err := Open(config.DatabaseSqlite, config.StoreConfig{URI: filepath.Join(t.TempDir(), "crawler.db")})
	require.NoError(t, err)
	require.NoError(t, adapter.Connect(context.Background()))
	t.Cleanup(func() { _ = adapter.Close() })
	return adapter
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open("oracle", config.StoreConfig{URI: "x"})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestCachedAdapterRemembersSavedHashes(t *testing.T) {
	ctx := context.Background()
	known := &memoryHashSet{}
	adapter := &CachedAdapter{Adapter: openSqlite(t), known: known}

	inserted, err := adapter.BulkSave(ctx, []domain.Record{{TxHash: "0xa", BlockDatetime: "x"}})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	exists, err := adapter.Exists(ctx, "0xa")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 1, known.hits)

	exists, err = adapter.Exists(ctx, "0xb")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCachedAdapterFallsBackOnCacheError(t *testing.T) {
	ctx := context.Background()
	base := openSqlite(t)
	require.NoError(t, base.Save(ctx, domain.Record{TxHash: "0xa"}))

	adapter := &CachedAdapter{Adapter: base, known: &memoryHashSet{err: errors.New("redis down")}}
	exists, err := adapter.Exists(ctx, "0xa")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNewCachedAdapterWithoutRedis(t *testing.T) {
	adapter, err := NewCachedAdapter(context.Background(), openSqlite(t), CacheConfig{})
	require.NoError(t, err)
	assert.Nil(t, adapter.known)
}
