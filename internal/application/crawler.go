package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"txcrawler/internal/config"
	"txcrawler/internal/domain"
	"txcrawler/internal/queue"
	"txcrawler/internal/retry"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

type CrawlerConfig struct {
	TxTypes               []string
	Address               string
	FromBlock             uint64
	ToBlock               uint64
	MaxBlockRange         uint64
	PushJobInterval       time.Duration
	QueryInterval         time.Duration
	LoopInterval          time.Duration
	ExecuteJobConcurrency int
	KeepRunning           bool
	ForceUpdate           bool
	ChunkSize             int
	Retry                 retry.Policy
}

// CrawlerConfigFrom maps the crawler and retry sections of cfg.
func CrawlerConfigFrom(cfg config.Config) CrawlerConfig {
	c := cfg.Crawler
	return CrawlerConfig{
		TxTypes:               c.TxType,
		Address:               c.Address,
		FromBlock:             c.FromBlock,
		ToBlock:               c.ToBlock,
		MaxBlockRange:         c.MaxBlockRange,
		PushJobInterval:       c.PushJobInterval,
		QueryInterval:         c.QueryInterval,
		LoopInterval:          c.LoopInterval,
		ExecuteJobConcurrency: c.ExecuteJobConcurrency,
		KeepRunning:           c.KeepRunning,
		ForceUpdate:           c.ForceUpdate,
		ChunkSize:             c.ChunkSize,
		Retry: retry.Policy{
			Attempts:    cfg.Retry.Attempts,
			MinInterval: cfg.Retry.MinInterval,
			MaxInterval: cfg.Retry.MaxInterval,
		},
	}
}

type CrawlerDeps struct {
	Chain ChainSource
	Store Store
	// Callback and Stream are optional.
	Callback CallbackSender
	Stream   StreamWriter
	Observer Observer
}

// CrawlerState is the runtime snapshot served on /state.
type CrawlerState struct {
	Cursor          Cursor `json:"cursor"`
	PendingPullJobs int    `json:"pending_pull_jobs"`
	TailingJob      bool   `json:"tailing_job_active"`
	PendingJobs     int    `json:"pending_query_jobs"`
	RunningJobs     int    `json:"running_query_jobs"`
	DumpQueue       int    `json:"dump_queue"`
	CallbackQueue   int    `json:"callback_queue"`
	StreamQueue     int    `json:"stream_queue"`
	CallbackEnabled bool   `json:"callback_enabled"`
	StreamEnabled   bool   `json:"stream_enabled"`
	ForceUpdate     bool   `json:"force_update"`
}

// ErrTailingJobActive is returned by PushJob while a keep-running pull job is
// queued or running; pull jobs run one at a time, so a later job would never start.
var ErrTailingJobActive = errors.New("a keep-running pull job is active")

type pullRequest struct {
	job domain.Job
	// fatal marks the configured startup job; its range errors stop the crawler.
	fatal bool
}

// Crawler owns the queues and wires the scheduler, the executor and the
// downstream drain loops together. Pull jobs run one at a time.
type Crawler struct {
	cfg      CrawlerConfig
	deps     CrawlerDeps
	logger   *slog.Logger
	pulls    *queue.Queue[pullRequest]
	pullWake chan struct{}

	// pushMu serializes the tailing check with enqueueing.
	pushMu  sync.Mutex
	tailing int

	dumpQueue     *queue.Queue[domain.CompactTx]
	callbackQueue *queue.Queue[domain.CompactTx]
	streamQueue   *queue.Queue[domain.CompactTx]

	scheduler *Scheduler
	executor  *Executor
	dumper    *Dumper
	notifier  *Notifier
	streamer  *Streamer
}

func NewCrawler(deps CrawlerDeps, cfg CrawlerConfig) (*Crawler, error) {
	if deps.Chain == nil || deps.Store == nil {
		return nil, errors.New("crawler requires a chain source and a store")
	}
	if cfg.LoopInterval <= 0 {
		cfg.LoopInterval = config.DefaultLoopInterval
	}
	deps.Observer = observerOrNop(deps.Observer)

	c := &Crawler{
		cfg:           cfg,
		deps:          deps,
		logger:        slog.Default().With("component", "crawler"),
		pulls:         queue.New[pullRequest](),
		pullWake:      make(chan struct{}, 1),
		dumpQueue:     queue.New[domain.CompactTx](),
		callbackQueue: queue.New[domain.CompactTx](),
		streamQueue:   queue.New[domain.CompactTx](),
	}

	outputs := []*queue.Queue[domain.CompactTx]{c.dumpQueue}
	if deps.Callback != nil {
		outputs = append(outputs, c.callbackQueue)
	}
	if deps.Stream != nil {
		outputs = append(outputs, c.streamQueue)
	}

	c.executor = NewExecutor(deps.Chain, outputs, deps.Observer, ExecutorConfig{
		Concurrency: cfg.ExecuteJobConcurrency,
		Retry:       cfg.Retry,
	})
	c.scheduler = NewScheduler(deps.Chain, c.executor.Submit, deps.Observer, SchedulerConfig{
		QueryInterval: cfg.QueryInterval,
		Retry:         cfg.Retry,
	})
	c.dumper = NewDumper(deps.Store, deps.Observer, DumpConfig{ChunkSize: cfg.ChunkSize, ForceUpdate: cfg.ForceUpdate})
	c.notifier = NewNotifier(deps.Callback, cfg.Retry, deps.Observer)
	if deps.Stream != nil {
		c.streamer = NewStreamer(deps.Stream, cfg.Retry, deps.Observer)
	}
	return c, nil
}

// DefaultJob is the pull job described by the configuration.
func (c *Crawler) DefaultJob() domain.Job {
	return domain.Job{
		TxTypes:         c.cfg.TxTypes,
		Address:         c.cfg.Address,
		FromBlock:       c.cfg.FromBlock,
		ToBlock:         c.cfg.ToBlock,
		MaxBlockRange:   c.cfg.MaxBlockRange,
		PushJobInterval: c.cfg.PushJobInterval,
		KeepRunning:     c.cfg.KeepRunning,
	}
}

// PushJob validates job, fills unset options from the configuration and
// queues it behind any pull job already waiting. It fails with
// ErrTailingJobActive while a keep-running job holds the pull queue.
func (c *Crawler) PushJob(job domain.Job) (domain.Job, error) {
	job, err := c.prepare(job)
	if err != nil {
		return domain.Job{}, err
	}
	c.pushMu.Lock()
	defer c.pushMu.Unlock()
	if c.tailing > 0 {
		return domain.Job{}, ErrTailingJobActive
	}
	c.enqueueLocked(pullRequest{job: job})
	return job, nil
}

func (c *Crawler) prepare(job domain.Job) (domain.Job, error) {
	if job.ToBlock != 0 && job.ToBlock < job.FromBlock {
		return domain.Job{}, fmt.Errorf("%w: to block %d is below from block %d", ErrInvalidRange, job.ToBlock, job.FromBlock)
	}
	if job.Address != "" && !common.IsHexAddress(job.Address) {
		return domain.Job{}, fmt.Errorf("%w: address %q is not a hex address", config.ErrInvalid, job.Address)
	}
	for _, txType := range job.TxTypes {
		if txType != domain.TxTypeTransfer {
			return domain.Job{}, fmt.Errorf("%w: unsupported tx type %q", config.ErrInvalid, txType)
		}
	}
	if len(job.TxTypes) == 0 {
		job.TxTypes = c.cfg.TxTypes
	}
	if job.MaxBlockRange == 0 {
		job.MaxBlockRange = c.cfg.MaxBlockRange
	}
	if job.PushJobInterval <= 0 {
		job.PushJobInterval = c.cfg.PushJobInterval
	}
	job.Address = strings.ToLower(job.Address)
	if job.ID == "" {
		job.ID = NewJobID()
	}
	return job, nil
}

func (c *Crawler) enqueue(req pullRequest) {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()
	c.enqueueLocked(req)
}

func (c *Crawler) enqueueLocked(req pullRequest) {
	if req.job.KeepRunning {
		c.tailing++
	}
	c.pulls.Push(req)
	select {
	case c.pullWake <- struct{}{}:
	default:
	}
}

// Run queues the configured job and drives every stage until ctx is done or
// the configured job turns out to be invalid.
func (c *Crawler) Run(ctx context.Context) error {
	job, err := c.prepare(c.DefaultJob())
	if err != nil {
		return err
	}
	c.enqueue(pullRequest{job: job, fatal: true})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.executor.Run(ctx) })
	g.Go(func() error { return c.pullLoop(ctx) })
	g.Go(func() error {
		return NewDrainLoop("dump", c.dumpQueue, c.cfg.LoopInterval, c.dumper.Handle).Run(ctx)
	})
	if c.notifier.Enabled() {
		g.Go(func() error {
			return NewDrainLoop("callback", c.callbackQueue, c.cfg.LoopInterval, c.notifier.Handle).Run(ctx)
		})
	}
	if c.streamer != nil {
		g.Go(func() error {
			return NewDrainLoop("stream", c.streamQueue, c.cfg.LoopInterval, c.streamer.Handle).Run(ctx)
		})
	}

	c.logger.Info("crawler is running",
		"from", job.FromBlock,
		"to", job.ToBlock,
		"concurrency", c.executor.cfg.Concurrency,
		"callback", c.notifier.Enabled(),
		"stream", c.streamer != nil,
		"force_update", c.cfg.ForceUpdate,
	)
	return g.Wait()
}

func (c *Crawler) pullLoop(ctx context.Context) error {
	for {
		req, ok := c.pulls.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.pullWake:
				continue
			}
		}

		err := c.scheduler.PullBlocks(ctx, req.job)
		if req.job.KeepRunning {
			c.pushMu.Lock()
			c.tailing--
			c.pushMu.Unlock()
		}
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case req.fatal && errors.Is(err, config.ErrInvalid):
			c.logger.Error("invalid crawler range", "job", req.job.ID, "err", err)
			return err
		default:
			c.logger.Error("pull job failed", "job", req.job.ID, "from", req.job.FromBlock, "to", req.job.ToBlock, "err", err)
		}
	}
}

func (c *Crawler) State() CrawlerState {
	return CrawlerState{
		Cursor:          c.scheduler.Cursor(),
		PendingPullJobs: c.pulls.Len(),
		TailingJob:      c.tailingActive(),
		PendingJobs:     c.executor.Pending(),
		RunningJobs:     c.executor.Running(),
		DumpQueue:       c.dumpQueue.Len(),
		CallbackQueue:   c.callbackQueue.Len(),
		StreamQueue:     c.streamQueue.Len(),
		CallbackEnabled: c.notifier.Enabled(),
		StreamEnabled:   c.streamer != nil,
		ForceUpdate:     c.cfg.ForceUpdate,
	}
}

func (c *Crawler) tailingActive() bool {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()
	return c.tailing > 0
}
