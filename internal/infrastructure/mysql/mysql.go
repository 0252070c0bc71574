package mysql

import (
	"fmt"
	"strings"

	"txcrawler/internal/infrastructure/sqlstore"

	_ "github.com/go-sql-driver/mysql"
)

func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		System:   "mysql",
		Driver:   "mysql",
		BindName: "mysql",
		Quote:    quoteIdentifier,
		Schema: func(table, name string) []string {
			return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				transaction_hash VARCHAR(66) NOT NULL,
				block_number BIGINT UNSIGNED NOT NULL,
				block_hash VARCHAR(66) NOT NULL,
				block_timestamp BIGINT UNSIGNED NOT NULL,
				block_datetime VARCHAR(19) NOT NULL,
				from_address VARCHAR(42) NOT NULL,
				to_address VARCHAR(42) NULL,
				value DECIMAL(65,0) NULL,
				ether_value VARCHAR(100) NULL,
				nonce BIGINT UNSIGNED NOT NULL,
				status TINYINT UNSIGNED NULL,
				gas_limit DECIMAL(65,0) NULL,
				gas_price DECIMAL(65,0) NULL,
				gas_used DECIMAL(65,0) NULL,
				PRIMARY KEY (transaction_hash),
				KEY %s (block_number)
			)`, table, quoteIdentifier(name+"_block_idx"))}
		},
		InsertIgnore: `INSERT IGNORE INTO %s (%s) VALUES %s`,
		Upsert:       `INSERT INTO %s (%s) VALUES %s ON DUPLICATE KEY UPDATE ` + sqlstore.SetList("%s = VALUES(%s)"),
		MaxParams:    65535,
	}
}

// New returns a repository backed by MySQL. The DSN must be in
// go-sql-driver format, e.g. user:pass@tcp(host:3306)/crawler.
func New(dsn, table string) (*sqlstore.Repository, error) {
	return sqlstore.New(Dialect(), dsn, table)
}

func quoteIdentifier(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}
