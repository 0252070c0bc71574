package domain

import (
	"math/big"
	"strings"
)

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Record is the persisted projection of a CompactTx, keyed by TxHash.
// Big integers are kept as decimal strings; an empty string means absent.
type Record struct {
	BlockNumber    uint64
	BlockHash      string
	BlockTimestamp uint64
	BlockDatetime  string
	TxHash         string
	From           string
	To             string
	Value          string
	EtherValue     string
	Nonce          uint64
	Status         *uint64
	GasLimit       string
	GasPrice       string
	GasUsed        string
}

// NewRecord projects tx into its storage form.
func NewRecord(tx CompactTx) Record {
	record := Record{
		BlockNumber:    tx.BlockNumber,
		BlockHash:      tx.BlockHash,
		BlockTimestamp: tx.BlockTimestamp,
		BlockDatetime:  tx.BlockDatetime(),
		TxHash:         tx.TxHash,
		From:           tx.From,
		To:             tx.To,
		Nonce:          tx.Nonce,
		Status:         tx.Status,
		GasLimit:       decimal(tx.GasLimit),
		GasPrice:       decimal(tx.GasPrice),
		GasUsed:        decimal(tx.GasUsed),
	}
	if tx.Value != nil {
		record.Value = tx.Value.String()
		record.EtherValue = FormatEther(tx.Value)
	}
	return record
}

// NewRecords projects a batch, preserving order.
func NewRecords(txs []CompactTx) []Record {
	records := make([]Record, 0, len(txs))
	for _, tx := range txs {
		records = append(records, NewRecord(tx))
	}
	return records
}

// FormatEther renders a wei amount in ether units, e.g. 1500000000000000000 -> "1.5".
// Whole amounts keep a single fractional zero ("2.0").
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return ""
	}
	abs := new(big.Int).Abs(wei)
	whole, frac := new(big.Int).QuoRem(abs, weiPerEther, new(big.Int))

	fraction := strings.TrimRight(leftPad(frac.String(), 18), "0")
	if fraction == "" {
		fraction = "0"
	}
	sign := ""
	if wei.Sign() < 0 {
		sign = "-"
	}
	return sign + whole.String() + "." + fraction
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

func decimal(value *big.Int) string {
	if value == nil {
		return ""
	}
	return value.String()
}
