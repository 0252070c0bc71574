package postgres

import (
	"fmt"

	"txcrawler/internal/infrastructure/sqlstore"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		System:   "postgresql",
		Driver:   "pgx",
		BindName: "pgx",
		Quote:    pq.QuoteIdentifier,
		Schema: func(table, name string) []string {
			return []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
					transaction_hash VARCHAR(66) PRIMARY KEY,
					block_number BIGINT NOT NULL,
					block_hash VARCHAR(66) NOT NULL,
					block_timestamp BIGINT NOT NULL,
					block_datetime VARCHAR(19) NOT NULL,
					from_address VARCHAR(42) NOT NULL,
					to_address VARCHAR(42) NULL,
					value NUMERIC(78,0) NULL,
					ether_value VARCHAR(100) NULL,
					nonce BIGINT NOT NULL,
					status SMALLINT NULL,
					gas_limit NUMERIC(78,0) NULL,
					gas_price NUMERIC(78,0) NULL,
					gas_used NUMERIC(78,0) NULL
				)`, table),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (block_number)`,
					pq.QuoteIdentifier(name+"_block_idx"), table),
			}
		},
		InsertIgnore: `INSERT INTO %s (%s) VALUES %s ON CONFLICT (transaction_hash) DO NOTHING`,
		Upsert:       `INSERT INTO %s (%s) VALUES %s ON CONFLICT (transaction_hash) DO UPDATE SET ` + sqlstore.SetList("%s = EXCLUDED.%s"),
		MaxParams:    65535,
	}
}

// New returns a repository backed by PostgreSQL through the pgx driver.
func New(dsn, table string) (*sqlstore.Repository, error) {
	return sqlstore.New(Dialect(), dsn, table)
}
