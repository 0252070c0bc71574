package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"txcrawler/internal/config"
	"txcrawler/internal/domain"
	"txcrawler/internal/retry"

	"github.com/google/uuid"
)

var ErrInvalidRange = fmt.Errorf("%w: invalid block range", config.ErrInvalid)

type SchedulerConfig struct {
	// QueryInterval is how long a tailing scheduler waits before asking the
	// chain for a new head.
	QueryInterval time.Duration
	Retry         retry.Policy
}

// Cursor is a snapshot of the scan position of the running pull job.
type Cursor struct {
	JobID     string `json:"job_id,omitempty"`
	FromBlock uint64 `json:"from_block"`
	NextFrom  uint64 `json:"next_from"`
	Head      uint64 `json:"head"`
	Tailing   bool   `json:"tailing"`
	Running   bool   `json:"running"`
	Emitted   uint64 `json:"emitted_jobs"`
}

// Scheduler turns a pull job into consecutive query jobs of at most
// MaxBlockRange+1 blocks each.
type Scheduler struct {
	chain    ChainSource
	emit     func(domain.Job)
	observer Observer
	cfg      SchedulerConfig
	logger   *slog.Logger

	mu     sync.RWMutex
	cursor Cursor
}

func NewScheduler(chain ChainSource, emit func(domain.Job), observer Observer, cfg SchedulerConfig) *Scheduler {
	if cfg.QueryInterval <= 0 {
		cfg.QueryInterval = config.DefaultQueryInterval
	}
	return &Scheduler{
		chain:    chain,
		emit:     emit,
		observer: observerOrNop(observer),
		cfg:      cfg,
		logger:   slog.Default().With("component", "scheduler"),
	}
}

func (s *Scheduler) Cursor() Cursor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

// PullBlocks emits query jobs covering [job.FromBlock, head]. head is
// job.ToBlock when set, otherwise the chain head. It returns once every
// block up to head has been emitted, unless job.KeepRunning is set, in
// which case it keeps following the chain until ctx is done.
func (s *Scheduler) PullBlocks(ctx context.Context, job domain.Job) error {
	if job.ToBlock != 0 && job.ToBlock < job.FromBlock {
		return fmt.Errorf("%w: to block %d is below from block %d", ErrInvalidRange, job.ToBlock, job.FromBlock)
	}
	maxRange := job.MaxBlockRange
	if maxRange == 0 {
		maxRange = config.DefaultMaxBlockRange
	}

	head := job.ToBlock
	if head == 0 {
		latest, err := s.chainHead(ctx)
		if err != nil {
			return err
		}
		head = latest
		if head < job.FromBlock && !job.KeepRunning {
			return fmt.Errorf("%w: chain head %d is below from block %d", ErrInvalidRange, head, job.FromBlock)
		}
	}

	s.setCursor(Cursor{
		JobID:     job.ID,
		FromBlock: job.FromBlock,
		NextFrom:  job.FromBlock,
		Head:      head,
		Tailing:   job.KeepRunning,
		Running:   true,
	})
	defer s.update(func(c *Cursor) { c.Running = false })

	s.logger.Info("pull job started", "job", job.ID, "from", job.FromBlock, "to", head, "max_range", maxRange, "keep_running", job.KeepRunning)

	nextFrom := job.FromBlock
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if nextFrom > head {
			if !job.KeepRunning {
				s.logger.Info("pull job finished", "job", job.ID, "from", job.FromBlock, "to", head)
				return nil
			}
			if err := sleep(ctx, s.cfg.QueryInterval); err != nil {
				return err
			}
			latest, err := s.chainHead(ctx)
			if err != nil {
				s.logger.Warn("refresh chain head failed", "job", job.ID, "err", err)
				continue
			}
			if latest > head {
				head = latest
				s.update(func(c *Cursor) { c.Head = head })
			}
			continue
		}

		blockRange := min(head-nextFrom, maxRange)
		nextTo := nextFrom + blockRange
		if blockRange <= 1 {
			s.logger.Debug("caught up", "job", job.ID, "head", head)
		}

		sub := domain.Job{
			ID:        NewJobID(),
			TxTypes:   job.TxTypes,
			Address:   job.Address,
			FromBlock: nextFrom,
			ToBlock:   nextTo,
		}
		s.emit(sub)
		s.observer.OnJobScheduled(sub)
		s.logger.Debug("push job",
			"job", sub.ID,
			"from", sub.FromBlock,
			"to", sub.ToBlock,
			"range", blockRange,
			"progress", fmt.Sprintf("%.2f%%", progress(job.FromBlock, nextTo, head)),
		)

		nextFrom = nextTo + 1
		s.update(func(c *Cursor) {
			c.NextFrom = nextFrom
			c.Emitted++
		})

		if err := sleep(ctx, job.PushJobInterval); err != nil {
			return err
		}
	}
}

func (s *Scheduler) chainHead(ctx context.Context) (uint64, error) {
	head, err := retry.Value(ctx, s.cfg.Retry, s.chain.BlockNumber)
	if err != nil {
		return 0, fmt.Errorf("get chain head: %w", err)
	}
	s.observer.OnChainHead(head)
	return head, nil
}

func (s *Scheduler) setCursor(cursor Cursor) {
	s.mu.Lock()
	s.cursor = cursor
	s.mu.Unlock()
}

func (s *Scheduler) update(fn func(*Cursor)) {
	s.mu.Lock()
	fn(&s.cursor)
	s.mu.Unlock()
}

// NewJobID returns a short random identifier used to correlate log lines.
func NewJobID() string {
	return uuid.NewString()[:8]
}

func progress(from, done, head uint64) float64 {
	if head < from {
		return 0
	}
	return float64(done-from+1) / float64(head-from+1) * 100
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
