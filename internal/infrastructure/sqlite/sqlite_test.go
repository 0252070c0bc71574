package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"txcrawler/internal/domain"
	"txcrawler/internal/infrastructure/sqlstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *sqlstore.Repository {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "crawler.db"), "transactions")
	require.NoError(t, err)
	require.NoError(t, repo.Connect(context.Background()))
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func record(hash string, block uint64, value string) domain.Record {
	status := uint64(1)
	return domain.Record{
		BlockNumber:    block,
		BlockHash:      "0xblock",
		BlockTimestamp: 1700000000,
		BlockDatetime:  "2023-11-14 22:13:20",
		TxHash:         hash,
		From:           "0xfrom",
		To:             "0xto",
		Value:          value,
		EtherValue:     "1.0",
		Nonce:          7,
		Status:         &status,
		GasLimit:       "21000",
	}
}

func TestNotConnected(t *testing.T) {
	repo, err := New(filepath.Join(t.TempDir(), "crawler.db"), "transactions")
	require.NoError(t, err)

	_, err = repo.Exists(context.Background(), "0x1")
	assert.ErrorIs(t, err, sqlstore.ErrNotConnected)
	_, err = repo.BulkSave(context.Background(), []domain.Record{record("0x1", 1, "1")})
	assert.ErrorIs(t, err, sqlstore.ErrNotConnected)
}

func TestBulkSaveIgnoresDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	inserted, err := repo.BulkSave(ctx, []domain.Record{
		record("0xa", 100, "1000000000000000000"),
		record("0xb", 101, "2"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	inserted, err = repo.BulkSave(ctx, []domain.Record{
		record("0xa", 100, "999"),
		record("0xc", 102, "3"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	stored, ok, err := repo.Get(ctx, "0xa")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1000000000000000000", stored.Value)
	assert.Equal(t, uint64(1), *stored.Status)
	assert.Empty(t, stored.GasPrice)

	for _, hash := range []string{"0xa", "0xb", "0xc"} {
		exists, err := repo.Exists(ctx, hash)
		require.NoError(t, err)
		assert.True(t, exists, hash)
	}
	exists, err := repo.Exists(ctx, "0xd")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	require.NoError(t, repo.Save(ctx, record("0xa", 100, "1")))
	updated := record("0xa", 100, "5")
	updated.Status = nil
	require.NoError(t, repo.Save(ctx, updated))

	stored, ok, err := repo.Get(ctx, "0xa")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "5", stored.Value)
	assert.Nil(t, stored.Status)
}

func TestCustomTableName(t *testing.T) {
	ctx := context.Background()
	repo, err := New(filepath.Join(t.TempDir(), "crawler.db"), "eth_transfers")
	require.NoError(t, err)
	require.NoError(t, repo.Connect(ctx))
	defer repo.Close()

	_, err = repo.BulkSave(ctx, []domain.Record{record("0xa", 1, "1")})
	require.NoError(t, err)
	_, ok, err := repo.Get(ctx, "0xa")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, repo.Ping(ctx))
}

func TestBulkSaveSplitsAtParameterLimit(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	require.Equal(t, 2340, repo.RowsPerStatement())

	records := make([]domain.Record, 5000)
	for i := range records {
		records[i] = record(fmt.Sprintf("0x%05x", i), uint64(i), "1")
	}
	inserted, err := repo.BulkSave(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 5000, inserted)

	inserted, err = repo.BulkSave(ctx, records[4000:])
	require.NoError(t, err)
	assert.Zero(t, inserted)

	exists, err := repo.Exists(ctx, records[4999].TxHash)
	require.NoError(t, err)
	assert.True(t, exists)
}
