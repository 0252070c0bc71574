package storage

import (
	"context"
	"fmt"

	"txcrawler/internal/config"
	"txcrawler/internal/domain"
	"txcrawler/internal/infrastructure/mysql"
	"txcrawler/internal/infrastructure/postgres"
	"txcrawler/internal/infrastructure/sqlite"
)

// Adapter is the persistence contract shared by every backend.
type Adapter interface {
	Connect(ctx context.Context) error
	Save(ctx context.Context, record domain.Record) error
	// BulkSave returns the number of records that were not stored before.
	BulkSave(ctx context.Context, records []domain.Record) (int, error)
	Exists(ctx context.Context, hash string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the adapter selected by backend. The adapter is not connected yet.
func Open(backend string, cfg config.StoreConfig) (Adapter, error) {
	table := cfg.Table
	if table == "" {
		table = config.DefaultTable
	}
	switch backend {
	case config.DatabasePostgres:
		return postgres.New(cfg.URI, table)
	case config.DatabaseMysql:
		return mysql.New(cfg.URI, table)
	case config.DatabaseSqlite:
		return sqlite.New(cfg.URI, table)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", config.ErrInvalid, backend)
	}
}
