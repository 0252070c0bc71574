package domain

// Block is a block fetched together with its full transaction objects.
type Block struct {
	Number       uint64
	Hash         string
	Timestamp    uint64
	Transactions []Transaction
}
