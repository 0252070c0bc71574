package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"txcrawler/internal/config"
	"txcrawler/internal/domain"
	"txcrawler/internal/queue"
	"txcrawler/internal/retry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

type ExecutorConfig struct {
	Concurrency int
	Retry       retry.Policy
}

// Executor runs query jobs on a bounded pool. Every matched transaction is
// pushed to each output queue in block and transaction order.
type Executor struct {
	chain    ChainSource
	outputs  []*queue.Queue[domain.CompactTx]
	observer Observer
	cfg      ExecutorConfig
	logger   *slog.Logger

	jobs    *queue.Queue[domain.Job]
	wake    chan struct{}
	running atomic.Int64
}

func NewExecutor(chain ChainSource, outputs []*queue.Queue[domain.CompactTx], observer Observer, cfg ExecutorConfig) *Executor {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = config.DefaultExecuteJobConcurrency
	}
	return &Executor{
		chain:    chain,
		outputs:  outputs,
		observer: observerOrNop(observer),
		cfg:      cfg,
		logger:   slog.Default().With("component", "executor"),
		jobs:     queue.New[domain.Job](),
		wake:     make(chan struct{}, 1),
	}
}

// Submit enqueues a query job. It never blocks.
func (e *Executor) Submit(job domain.Job) {
	e.jobs.Push(job)
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Pending is the number of jobs waiting for a worker.
func (e *Executor) Pending() int {
	return e.jobs.Len()
}

// Running is the number of jobs currently executing.
func (e *Executor) Running() int {
	return int(e.running.Load())
}

// Run dispatches queued jobs until ctx is done, then waits for in-flight
// jobs to return.
func (e *Executor) Run(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	defer g.Wait()

	for {
		job, ok := e.jobs.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-e.wake:
				continue
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Go blocks while the pool is full.
		g.Go(func() error {
			e.running.Add(1)
			defer e.running.Add(-1)

			matched, err := e.Execute(ctx, job)
			e.observer.OnJobFinished(job, matched, err)
			if err != nil {
				e.logger.Error("job failed", "job", job.ID, "from", job.FromBlock, "to", job.ToBlock, "matched", matched, "err", err)
			}
			return nil
		})
	}
}

// Execute scans every block of job in ascending order and returns the number
// of transactions pushed downstream.
func (e *Executor) Execute(ctx context.Context, job domain.Job) (int, error) {
	ctx, span := otel.Tracer("txcrawler/executor").Start(ctx, "executor.query_tx")
	span.SetAttributes(
		attribute.String("job.id", job.ID),
		attribute.Int64("block.from", int64(job.FromBlock)),
		attribute.Int64("block.to", int64(job.ToBlock)),
	)
	defer span.End()

	e.logger.Debug("exec job", "job", job.ID, "from", job.FromBlock, "to", job.ToBlock, "pending", e.jobs.Len())

	filter := NewFilter(job)
	matched := 0
	for number := job.FromBlock; number <= job.ToBlock; number++ {
		block, err := retry.Value(ctx, e.cfg.Retry, func(ctx context.Context) (domain.Block, error) {
			return e.chain.BlockWithTransactions(ctx, number)
		})
		if err != nil {
			err = fmt.Errorf("block %d: %w", number, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return matched, err
		}

		for _, tx := range block.Transactions {
			if !filter.Match(tx) {
				continue
			}
			receipt, err := retry.Value(ctx, e.cfg.Retry, func(ctx context.Context) (domain.Receipt, error) {
				return e.chain.TransactionReceipt(ctx, tx.Hash)
			})
			if err != nil {
				err = fmt.Errorf("receipt %s: %w", tx.Hash, err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return matched, err
			}

			compact := domain.NewCompactTx(block, tx, receipt)
			for _, out := range e.outputs {
				out.Push(compact)
			}
			matched++
		}

		if number == job.ToBlock {
			// guards uint64 overflow at the top of the range
			break
		}
	}

	span.SetAttributes(attribute.Int("tx.matched", matched))
	e.logger.Debug("job finished", "job", job.ID, "from", job.FromBlock, "to", job.ToBlock, "matched", matched)
	return matched, nil
}
