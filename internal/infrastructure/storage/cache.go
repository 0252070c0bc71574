package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"txcrawler/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	txCacheKeyPrefix = "txcrawler:tx:"
	defaultCacheTTL  = 24 * time.Hour
)

type CacheConfig struct {
	Addr string
	TTL  time.Duration
}

// hashSet remembers transaction hashes known to be stored.
type hashSet interface {
	Has(ctx context.Context, hash string) (bool, error)
	Add(ctx context.Context, hashes ...string) error
	Close() error
}

// CachedAdapter answers Exists from Redis before falling back to the database.
// Cache failures are never fatal; the database stays authoritative.
type CachedAdapter struct {
	Adapter
	known hashSet
}

// NewCachedAdapter wraps base with a Redis hash cache. An empty address
// returns an adapter that passes everything through.
func NewCachedAdapter(ctx context.Context, base Adapter, cfg CacheConfig) (*CachedAdapter, error) {
	if base == nil {
		return nil, errors.New("base adapter is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return &CachedAdapter{Adapter: base}, nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &CachedAdapter{Adapter: base, known: redisHashSet{client: client, ttl: cfg.TTL}}, nil
}

func (a *CachedAdapter) Save(ctx context.Context, record domain.Record) error {
	if err := a.Adapter.Save(ctx, record); err != nil {
		return err
	}
	a.remember(ctx, record.TxHash)
	return nil
}

func (a *CachedAdapter) BulkSave(ctx context.Context, records []domain.Record) (int, error) {
	inserted, err := a.Adapter.BulkSave(ctx, records)
	if err != nil {
		return 0, err
	}
	hashes := make([]string, 0, len(records))
	for _, record := range records {
		hashes = append(hashes, record.TxHash)
	}
	a.remember(ctx, hashes...)
	return inserted, nil
}

func (a *CachedAdapter) Exists(ctx context.Context, hash string) (bool, error) {
	if a.known != nil {
		if ok, err := a.known.Has(ctx, hash); err == nil && ok {
			return true, nil
		}
	}
	exists, err := a.Adapter.Exists(ctx, hash)
	if err != nil {
		return false, err
	}
	if exists {
		a.remember(ctx, hash)
	}
	return exists, nil
}

func (a *CachedAdapter) Close() error {
	err := a.Adapter.Close()
	if a.known != nil {
		err = errors.Join(err, a.known.Close())
	}
	return err
}

func (a *CachedAdapter) remember(ctx context.Context, hashes ...string) {
	if a.known == nil || len(hashes) == 0 {
		return
	}
	_ = a.known.Add(ctx, hashes...)
}

type redisHashSet struct {
	client *redis.Client
	ttl    time.Duration
}

func (s redisHashSet) Has(ctx context.Context, hash string) (bool, error) {
	n, err := s.client.Exists(ctx, txCacheKey(hash)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s redisHashSet) Add(ctx context.Context, hashes ...string) error {
	pipe := s.client.Pipeline()
	for _, hash := range hashes {
		pipe.Set(ctx, txCacheKey(hash), 1, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s redisHashSet) Close() error {
	return s.client.Close()
}

func txCacheKey(hash string) string {
	return txCacheKeyPrefix + strings.ToLower(hash)
}
