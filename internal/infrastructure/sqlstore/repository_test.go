package sqlstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDialect() Dialect {
	return Dialect{
		System:       "test",
		Driver:       "test",
		BindName:     "test",
		Quote:        func(s string) string { return "[" + s + "]" },
		Schema:       func(table, name string) []string { return nil },
		InsertIgnore: `INSERT IGNORE INTO %s (%s) VALUES %s`,
		Upsert:       `INSERT INTO %s (%s) VALUES %s ON DUPLICATE KEY UPDATE ` + SetList("%s = VALUES(%s)"),
	}
}

func TestNewRendersStatements(t *testing.T) {
	repo, err := New(testDialect(), "dsn", "transfers")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(repo.insertIgnore, "INSERT IGNORE INTO [transfers] (transaction_hash,"))
	assert.Contains(t, repo.upsert, "gas_used = VALUES(gas_used)")
	assert.NotContains(t, repo.upsert, "transaction_hash = VALUES")
	assert.Equal(t, "SELECT COUNT(1) FROM [transfers] WHERE transaction_hash = ?", repo.exists)
}

func TestNewRequiresDSNAndTable(t *testing.T) {
	_, err := New(testDialect(), " ", "transfers")
	assert.Error(t, err)
	_, err = New(testDialect(), "dsn", "")
	assert.Error(t, err)
}

func TestRowsPerStatement(t *testing.T) {
	cases := map[int]int{
		0:     71,
		28:    2,
		5:     1,
		65535: 4681,
	}
	for limit, want := range cases {
		dialect := testDialect()
		dialect.MaxParams = limit
		repo, err := New(dialect, "dsn", "transfers")
		require.NoError(t, err)
		assert.Equal(t, want, repo.RowsPerStatement(), "limit %d", limit)
	}
}
