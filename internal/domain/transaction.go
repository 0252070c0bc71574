package domain

import "math/big"

// Transaction represents a chain transaction as returned inside a block.
type Transaction struct {
	Hash        string
	BlockNumber uint64
	BlockHash   string
	TxIndex     uint64
	From        string
	To          string
	Value       *big.Int
	Nonce       uint64
	Gas         *big.Int
	GasPrice    *big.Int
}
