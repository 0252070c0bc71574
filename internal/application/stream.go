package application

import (
	"context"
	"log/slog"

	"txcrawler/internal/domain"
	"txcrawler/internal/retry"
)

// Streamer publishes drained batches to the message stream.
type Streamer struct {
	writer   StreamWriter
	policy   retry.Policy
	observer Observer
	logger   *slog.Logger
}

func NewStreamer(writer StreamWriter, policy retry.Policy, observer Observer) *Streamer {
	return &Streamer{
		writer:   writer,
		policy:   policy,
		observer: observerOrNop(observer),
		logger:   slog.Default().With("component", "stream"),
	}
}

func (s *Streamer) Handle(ctx context.Context, batch []domain.CompactTx) {
	err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		return s.writer.PublishTransactions(ctx, batch)
	})
	s.observer.OnStreamed(len(batch), err)
	if err != nil {
		s.logger.Error("publish batch dropped", "count", len(batch), "first_block", batch[0].BlockNumber, "err", err)
		return
	}
	s.logger.Debug("published batch", "count", len(batch), "last_block", batch[len(batch)-1].BlockNumber)
}
