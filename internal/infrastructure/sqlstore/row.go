package sqlstore

import (
	"database/sql"

	"txcrawler/internal/domain"
)

type row struct {
	TxHash         string         `db:"transaction_hash"`
	BlockNumber    int64          `db:"block_number"`
	BlockHash      string         `db:"block_hash"`
	BlockTimestamp int64          `db:"block_timestamp"`
	BlockDatetime  string         `db:"block_datetime"`
	From           string         `db:"from_address"`
	To             sql.NullString `db:"to_address"`
	Value          sql.NullString `db:"value"`
	EtherValue     sql.NullString `db:"ether_value"`
	Nonce          int64          `db:"nonce"`
	Status         sql.NullInt64  `db:"status"`
	GasLimit       sql.NullString `db:"gas_limit"`
	GasPrice       sql.NullString `db:"gas_price"`
	GasUsed        sql.NullString `db:"gas_used"`
}

func newRow(record domain.Record) row {
	r := row{
		TxHash:         record.TxHash,
		BlockNumber:    int64(record.BlockNumber),
		BlockHash:      record.BlockHash,
		BlockTimestamp: int64(record.BlockTimestamp),
		BlockDatetime:  record.BlockDatetime,
		From:           record.From,
		To:             nullString(record.To),
		Value:          nullString(record.Value),
		EtherValue:     nullString(record.EtherValue),
		Nonce:          int64(record.Nonce),
		GasLimit:       nullString(record.GasLimit),
		GasPrice:       nullString(record.GasPrice),
		GasUsed:        nullString(record.GasUsed),
	}
	if record.Status != nil {
		r.Status = sql.NullInt64{Int64: int64(*record.Status), Valid: true}
	}
	return r
}

func (r row) record() domain.Record {
	record := domain.Record{
		TxHash:         r.TxHash,
		BlockNumber:    uint64(r.BlockNumber),
		BlockHash:      r.BlockHash,
		BlockTimestamp: uint64(r.BlockTimestamp),
		BlockDatetime:  r.BlockDatetime,
		From:           r.From,
		To:             r.To.String,
		Value:          r.Value.String,
		EtherValue:     r.EtherValue.String,
		Nonce:          uint64(r.Nonce),
		GasLimit:       r.GasLimit.String,
		GasPrice:       r.GasPrice.String,
		GasUsed:        r.GasUsed.String,
	}
	if r.Status.Valid {
		status := uint64(r.Status.Int64)
		record.Status = &status
	}
	return record
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
