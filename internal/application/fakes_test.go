package application

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"txcrawler/internal/domain"
	"txcrawler/internal/retry"
)

var errRPC = errors.New("rpc unavailable")

// noWait retries immediately.
var noWait = retry.Policy{Attempts: 3}

type fakeChain struct {
	mu       sync.Mutex
	heads    []uint64
	blocks   map[uint64]domain.Block
	failing  map[uint64]bool
	receipts map[string]domain.Receipt
	calls    map[uint64]int
}

func newFakeChain(heads ...uint64) *fakeChain {
	return &fakeChain{
		heads:    heads,
		blocks:   make(map[uint64]domain.Block),
		failing:  make(map[uint64]bool),
		receipts: make(map[string]domain.Receipt),
		calls:    make(map[uint64]int),
	}
}

// BlockNumber returns the configured heads in order and then keeps
// returning the last one.
func (c *fakeChain) BlockNumber(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.heads) == 0 {
		return 0, errRPC
	}
	head := c.heads[0]
	if len(c.heads) > 1 {
		c.heads = c.heads[1:]
	}
	return head, nil
}

func (c *fakeChain) BlockWithTransactions(_ context.Context, number uint64) (domain.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[number]++
	if c.failing[number] {
		return domain.Block{}, errRPC
	}
	if block, ok := c.blocks[number]; ok {
		return block, nil
	}
	return domain.Block{Number: number, Hash: fmt.Sprintf("0xblock%d", number)}, nil
}

func (c *fakeChain) TransactionReceipt(_ context.Context, hash string) (domain.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if receipt, ok := c.receipts[hash]; ok {
		return receipt, nil
	}
	status := uint64(1)
	return domain.Receipt{TxHash: hash, Status: &status, GasUsed: big.NewInt(21000)}, nil
}

// addTx appends a transaction moving value wei to block number.
func (c *fakeChain) addTx(number uint64, hash string, value int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	block, ok := c.blocks[number]
	if !ok {
		block = domain.Block{Number: number, Hash: fmt.Sprintf("0xblock%d", number), Timestamp: 1700000000 + number}
	}
	block.Transactions = append(block.Transactions, domain.Transaction{
		Hash:        hash,
		BlockNumber: number,
		BlockHash:   block.Hash,
		From:        "0x00000000000000000000000000000000000000aa",
		To:          "0x00000000000000000000000000000000000000bb",
		Value:       big.NewInt(value),
		Gas:         big.NewInt(21000),
		GasPrice:    big.NewInt(1_000_000_000),
	})
	c.blocks[number] = block
}

type memoryStore struct {
	mu          sync.Mutex
	rows        map[string]domain.Record
	order       []string
	bulkSizes   []int
	saves       int
	existsCalls int
	failBulkAt  int
	failSave    string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[string]domain.Record)}
}

func (s *memoryStore) Save(_ context.Context, record domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.TxHash == s.failSave {
		return errors.New("save failed")
	}
	s.saves++
	s.put(record)
	return nil
}

func (s *memoryStore) BulkSave(_ context.Context, records []domain.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bulkSizes = append(s.bulkSizes, len(records))
	if s.failBulkAt > 0 && len(s.bulkSizes) == s.failBulkAt {
		return 0, errors.New("bulk insert failed")
	}
	inserted := 0
	for _, record := range records {
		if _, ok := s.rows[record.TxHash]; !ok {
			s.put(record)
			inserted++
		}
	}
	return inserted, nil
}

func (s *memoryStore) Exists(_ context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.existsCalls++
	_, ok := s.rows[hash]
	return ok, nil
}

func (s *memoryStore) put(record domain.Record) {
	if _, ok := s.rows[record.TxHash]; !ok {
		s.order = append(s.order, record.TxHash)
	}
	s.rows[record.TxHash] = record
}

func (s *memoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type recordingObserver struct {
	NopObserver
	mu       sync.Mutex
	finished map[string]error
}

func (o *recordingObserver) OnJobFinished(job domain.Job, _ int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.finished == nil {
		o.finished = make(map[string]error)
	}
	o.finished[job.ID] = err
}

func (o *recordingObserver) results() map[string]error {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]error, len(o.finished))
	for k, v := range o.finished {
		out[k] = v
	}
	return out
}

func compactTxs(n int) []domain.CompactTx {
	txs := make([]domain.CompactTx, n)
	for i := range txs {
		txs[i] = domain.CompactTx{
			BlockNumber: uint64(i / 10),
			TxHash:      fmt.Sprintf("0x%04x", i),
			Value:       big.NewInt(int64(i + 1)),
		}
	}
	return txs
}
