package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"txcrawler/internal/domain"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrNotConnected = errors.New("storage not connected")

// Dialect carries everything that differs between SQL backends.
type Dialect struct {
	// System is reported as the db.system span attribute.
	System string
	// Driver is the database/sql driver name; BindName is the name sqlx uses
	// to pick a placeholder style.
	Driver   string
	BindName string
	Quote    func(identifier string) string
	// Schema returns the DDL for the quoted table name; name is the raw
	// identifier, used to derive index names.
	Schema func(table, name string) []string
	// InsertIgnore and Upsert are formatted with the quoted table name, the
	// column list and the named value list.
	InsertIgnore string
	Upsert       string
	// MaxParams is the most bind parameters one statement may carry.
	MaxParams int
}

const columnList = `transaction_hash, block_number, block_hash, block_timestamp, block_datetime,
	from_address, to_address, value, ether_value, nonce, status, gas_limit, gas_price, gas_used`

const namedValues = `(:transaction_hash, :block_number, :block_hash, :block_timestamp, :block_datetime,
	:from_address, :to_address, :value, :ether_value, :nonce, :status, :gas_limit, :gas_price, :gas_used)`

const (
	columnCount      = 14
	defaultMaxParams = 999
)

// UpdateColumns lists the columns rewritten by an upsert.
var UpdateColumns = []string{
	"block_number", "block_hash", "block_timestamp", "block_datetime",
	"from_address", "to_address", "value", "ether_value", "nonce", "status",
	"gas_limit", "gas_price", "gas_used",
}

type Repository struct {
	dialect Dialect
	dsn     string
	name    string
	table   string
	timeout time.Duration

	mu sync.RWMutex
	db *sqlx.DB

	insertIgnore string
	upsert       string
	exists       string
	selectOne    string
}

func New(dialect Dialect, dsn, table string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%s dsn is required", dialect.System)
	}
	if table == "" {
		return nil, fmt.Errorf("%s table is required", dialect.System)
	}
	quoted := dialect.Quote(table)
	return &Repository{
		dialect:      dialect,
		dsn:          dsn,
		name:         table,
		table:        quoted,
		timeout:      10 * time.Second,
		insertIgnore: fmt.Sprintf(dialect.InsertIgnore, quoted, columnList, namedValues),
		upsert:       fmt.Sprintf(dialect.Upsert, quoted, columnList, namedValues),
		exists:       fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE transaction_hash = ?", quoted),
		selectOne:    fmt.Sprintf("SELECT %s FROM %s WHERE transaction_hash = ?", columnList, quoted),
	}, nil
}

// Connect opens the pool, verifies it and creates the table when missing.
func (r *Repository) Connect(ctx context.Context) error {
	ctx, span := r.startSpan(ctx, "Connect")
	defer span.End()

	raw, err := sql.Open(r.dialect.Driver, r.dsn)
	if err != nil {
		return r.fail(span, fmt.Errorf("failed to open %s: %w", r.dialect.System, err))
	}
	db := sqlx.NewDb(raw, r.dialect.BindName)

	pingCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return r.fail(span, fmt.Errorf("failed to ping %s: %w", r.dialect.System, err))
	}
	for _, stmt := range r.dialect.Schema(r.table, r.name) {
		if _, err := db.ExecContext(pingCtx, stmt); err != nil {
			_ = db.Close()
			return r.fail(span, fmt.Errorf("failed to create schema: %w", err))
		}
	}

	r.mu.Lock()
	r.db = db
	r.mu.Unlock()
	return nil
}

// Save writes one record, overwriting an existing row with the same hash.
func (r *Repository) Save(ctx context.Context, record domain.Record) error {
	db, err := r.conn()
	if err != nil {
		return err
	}
	ctx, span := r.startSpan(ctx, "Save", attribute.String("tx.hash", record.TxHash))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := db.NamedExecContext(ctx, r.upsert, newRow(record)); err != nil {
		return r.fail(span, fmt.Errorf("failed to save %s: %w", record.TxHash, err))
	}
	return nil
}

// BulkSave inserts records in one transaction and returns how many rows were
// new; rows whose hash is already stored are left untouched. Records are split
// across statements so none exceeds the dialect's bind parameter limit.
func (r *Repository) BulkSave(ctx context.Context, records []domain.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	db, err := r.conn()
	if err != nil {
		return 0, err
	}
	ctx, span := r.startSpan(ctx, "BulkSave", attribute.Int("tx.count", len(records)))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows := make([]row, 0, len(records))
	for _, record := range records {
		rows = append(rows, newRow(record))
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, r.fail(span, err)
	}
	defer tx.Rollback()

	inserted := 0
	step := r.RowsPerStatement()
	for start := 0; start < len(rows); start += step {
		end := min(start+step, len(rows))
		result, err := tx.NamedExecContext(ctx, r.insertIgnore, rows[start:end])
		if err != nil {
			return 0, r.fail(span, fmt.Errorf("failed to bulk save records [%d,%d) of %d: %w", start, end, len(rows), err))
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, r.fail(span, err)
		}
		inserted += int(affected)
	}
	if err := tx.Commit(); err != nil {
		return 0, r.fail(span, err)
	}
	span.SetAttributes(attribute.Int("tx.inserted", inserted))
	return inserted, nil
}

// RowsPerStatement is the number of records one multi-row insert carries.
func (r *Repository) RowsPerStatement() int {
	limit := r.dialect.MaxParams
	if limit <= 0 {
		limit = defaultMaxParams
	}
	return max(limit/columnCount, 1)
}

func (r *Repository) Exists(ctx context.Context, hash string) (bool, error) {
	db, err := r.conn()
	if err != nil {
		return false, err
	}
	ctx, span := r.startSpan(ctx, "Exists", attribute.String("tx.hash", hash))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int
	if err := db.GetContext(ctx, &count, db.Rebind(r.exists), hash); err != nil {
		return false, r.fail(span, err)
	}
	return count > 0, nil
}

// Get loads the stored record for hash.
func (r *Repository) Get(ctx context.Context, hash string) (domain.Record, bool, error) {
	db, err := r.conn()
	if err != nil {
		return domain.Record{}, false, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stored row
	err = db.GetContext(ctx, &stored, db.Rebind(r.selectOne), hash)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, false, nil
	}
	if err != nil {
		return domain.Record{}, false, err
	}
	return stored.record(), true, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	db, err := r.conn()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Repository) conn() (*sqlx.DB, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.db == nil {
		return nil, ErrNotConnected
	}
	return r.db, nil
}

func (r *Repository) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("db.system", r.dialect.System),
		attribute.String("db.sql.table", r.table),
	)
	return otel.Tracer("txcrawler/sqlstore").Start(ctx, r.dialect.System+"."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func (r *Repository) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// SetList renders the upsert assignment list, formatting each update column
// twice into pattern.
func SetList(pattern string) string {
	parts := make([]string, 0, len(UpdateColumns))
	for _, column := range UpdateColumns {
		parts = append(parts, fmt.Sprintf(pattern, column, column))
	}
	return strings.Join(parts, ", ")
}
