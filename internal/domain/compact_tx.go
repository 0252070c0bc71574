package domain

import (
	"encoding/json"
	"math/big"
	"time"
)

// BlockDatetimeLayout formats the UTC block time stored next to the unix timestamp.
const BlockDatetimeLayout = "2006-01-02 15:04:05"

// CompactTx is the normalized snapshot of a matched transaction.
// It is never mutated after the executor builds it.
type CompactTx struct {
	BlockNumber    uint64
	BlockHash      string
	BlockTimestamp uint64
	TxHash         string
	From           string
	To             string
	Value          *big.Int
	Nonce          uint64
	Status         *uint64
	GasLimit       *big.Int
	GasPrice       *big.Int
	GasUsed        *big.Int
}

// NewCompactTx assembles a compact transaction from a block, one of its
// transactions and the transaction receipt.
func NewCompactTx(block Block, tx Transaction, receipt Receipt) CompactTx {
	blockHash := tx.BlockHash
	if blockHash == "" {
		blockHash = block.Hash
	}
	blockNumber := tx.BlockNumber
	if blockNumber == 0 {
		blockNumber = block.Number
	}
	return CompactTx{
		BlockNumber:    blockNumber,
		BlockHash:      blockHash,
		BlockTimestamp: block.Timestamp,
		TxHash:         tx.Hash,
		From:           tx.From,
		To:             tx.To,
		Value:          tx.Value,
		Nonce:          tx.Nonce,
		Status:         receipt.Status,
		GasLimit:       tx.Gas,
		GasPrice:       tx.GasPrice,
		GasUsed:        receipt.GasUsed,
	}
}

// BlockDatetime renders the block timestamp as a UTC datetime string.
func (t CompactTx) BlockDatetime() string {
	return time.Unix(int64(t.BlockTimestamp), 0).UTC().Format(BlockDatetimeLayout)
}

type compactTxJSON struct {
	BlockNumber    uint64  `json:"blockNumber"`
	BlockHash      string  `json:"blockHash"`
	BlockTimestamp uint64  `json:"blockTimestamp"`
	BlockDatetime  string  `json:"blockDatetime"`
	TxHash         string  `json:"txHash"`
	From           string  `json:"from"`
	To             string  `json:"to"`
	Value          *string `json:"value,omitempty"`
	Nonce          uint64  `json:"nonce"`
	Status         *uint64 `json:"status,omitempty"`
	GasLimit       *string `json:"gasLimit,omitempty"`
	GasPrice       *string `json:"gasPrice,omitempty"`
	GasUsed        *string `json:"gasUsed,omitempty"`
}

// MarshalJSON encodes big integers as decimal strings so consumers never lose
// precision on values beyond 64 bits.
func (t CompactTx) MarshalJSON() ([]byte, error) {
	return json.Marshal(compactTxJSON{
		BlockNumber:    t.BlockNumber,
		BlockHash:      t.BlockHash,
		BlockTimestamp: t.BlockTimestamp,
		BlockDatetime:  t.BlockDatetime(),
		TxHash:         t.TxHash,
		From:           t.From,
		To:             t.To,
		Value:          decimalPtr(t.Value),
		Nonce:          t.Nonce,
		Status:         t.Status,
		GasLimit:       decimalPtr(t.GasLimit),
		GasPrice:       decimalPtr(t.GasPrice),
		GasUsed:        decimalPtr(t.GasUsed),
	})
}

func decimalPtr(value *big.Int) *string {
	if value == nil {
		return nil
	}
	s := value.String()
	return &s
}
