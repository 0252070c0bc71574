package application

import (
	"context"

	"txcrawler/internal/domain"
)

type ChainSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BlockWithTransactions(ctx context.Context, number uint64) (domain.Block, error)
	TransactionReceipt(ctx context.Context, hash string) (domain.Receipt, error)
}

type Store interface {
	Save(ctx context.Context, record domain.Record) error
	BulkSave(ctx context.Context, records []domain.Record) (int, error)
	Exists(ctx context.Context, hash string) (bool, error)
}

type CallbackSender interface {
	Deliver(ctx context.Context, tx domain.CompactTx) (domain.CallbackResponse, error)
}

type StreamWriter interface {
	PublishTransactions(ctx context.Context, txs []domain.CompactTx) error
}

type Observer interface {
	OnChainHead(head uint64)
	OnJobScheduled(job domain.Job)
	OnJobFinished(job domain.Job, matched int, err error)
	OnDumped(saved, skipped int)
	OnDumpFailed(records int)
	OnCallback(delivered bool)
	OnStreamed(count int, err error)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) OnChainHead(uint64) {}
func (NopObserver) OnJobScheduled(domain.Job) {}
func (NopObserver) OnJobFinished(domain.Job, int, error) {}
func (NopObserver) OnDumped(int, int) {}
func (NopObserver) OnDumpFailed(int) {}
func (NopObserver) OnCallback(bool) {}
func (NopObserver) OnStreamed(int, error) {}

func observerOrNop(observer Observer) Observer {
	if observer == nil {
		return NopObserver{}
	}
	return observer
}
