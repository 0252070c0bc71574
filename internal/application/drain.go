package application

import (
	"context"
	"log/slog"
	"time"

	"txcrawler/internal/queue"
)

// DrainLoop wakes every interval, detaches everything queued so far and hands
// it to handle. Batches are handled one at a time on the loop goroutine, so
// they never overlap and keep submission order; ticks that fire while a batch
// is being handled are dropped.
type DrainLoop[T any] struct {
	name     string
	queue    *queue.Queue[T]
	interval time.Duration
	handle   func(ctx context.Context, batch []T)
	logger   *slog.Logger
}

func NewDrainLoop[T any](name string, q *queue.Queue[T], interval time.Duration, handle func(ctx context.Context, batch []T)) *DrainLoop[T] {
	if interval <= 0 {
		interval = time.Second
	}
	return &DrainLoop[T]{
		name:     name,
		queue:    q,
		interval: interval,
		handle:   handle,
		logger:   slog.Default().With("component", name),
	}
}

func (l *DrainLoop[T]) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	busy := false
	for {
		select {
		case <-ctx.Done():
			if pending := l.queue.Len(); pending > 0 {
				l.logger.Warn("stopped with pending items", "pending", pending)
			}
			return ctx.Err()
		case <-ticker.C:
		}

		if !l.Tick(ctx) {
			if busy {
				l.logger.Info("all items handled, queue is empty")
			}
			busy = false
			continue
		}
		busy = true
	}
}

// Tick handles one batch and reports whether there was anything to handle.
func (l *DrainLoop[T]) Tick(ctx context.Context) bool {
	batch := l.queue.DrainAll()
	if len(batch) == 0 {
		return false
	}
	l.handle(ctx, batch)
	return true
}
