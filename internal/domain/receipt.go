package domain

import "math/big"

// Receipt carries the execution outcome of a transaction.
// Status is nil for pre-byzantium receipts that only expose a state root.
type Receipt struct {
	TxHash  string
	Status  *uint64
	GasUsed *big.Int
}
