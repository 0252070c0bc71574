package sqlite

import (
	"fmt"
	"strings"

	"txcrawler/internal/infrastructure/sqlstore"

	_ "modernc.org/sqlite"
)

func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		System: "sqlite",
		Driver: "sqlite",
		// modernc registers as "sqlite"; sqlx knows the placeholder style by the cgo driver name.
		BindName: "sqlite3",
		Quote:    quoteIdentifier,
		Schema: func(table, name string) []string {
			return []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
					transaction_hash TEXT PRIMARY KEY,
					block_number INTEGER NOT NULL,
					block_hash TEXT NOT NULL,
					block_timestamp INTEGER NOT NULL,
					block_datetime TEXT NOT NULL,
					from_address TEXT NOT NULL,
					to_address TEXT NULL,
					value TEXT NULL,
					ether_value TEXT NULL,
					nonce INTEGER NOT NULL,
					status INTEGER NULL,
					gas_limit TEXT NULL,
					gas_price TEXT NULL,
					gas_used TEXT NULL
				)`, table),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (block_number)`,
					quoteIdentifier(name+"_block_idx"), table),
			}
		},
		InsertIgnore: `INSERT OR IGNORE INTO %s (%s) VALUES %s`,
		Upsert:       `INSERT INTO %s (%s) VALUES %s ON CONFLICT (transaction_hash) DO UPDATE SET ` + sqlstore.SetList("%s = excluded.%s"),
		MaxParams:    32766, // SQLITE_MAX_VARIABLE_NUMBER since 3.32
	}
}

// New returns a repository backed by a SQLite file; dsn is passed to the
// modernc driver unchanged (a path or a file: URI).
func New(dsn, table string) (*sqlstore.Repository, error) {
	return sqlstore.New(Dialect(), dsn, table)
}

func quoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
