package application

import (
	"context"
	"fmt"
	"log/slog"

	"txcrawler/internal/config"
	"txcrawler/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type DumpConfig struct {
	ChunkSize int
	// ForceUpdate switches from duplicate-ignoring bulk inserts to a per
	// record existence check followed by a single save.
	ForceUpdate bool
}

// Dumper persists drained batches chunk by chunk.
type Dumper struct {
	store    Store
	observer Observer
	cfg      DumpConfig
	logger   *slog.Logger
}

func NewDumper(store Store, observer Observer, cfg DumpConfig) *Dumper {
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = config.DefaultChunkSize
	}
	return &Dumper{
		store:    store,
		observer: observerOrNop(observer),
		cfg:      cfg,
		logger:   slog.Default().With("component", "dump"),
	}
}

// Handle is the drain loop callback; failures are logged and the batch dropped.
func (d *Dumper) Handle(ctx context.Context, batch []domain.CompactTx) {
	_ = d.Dump(ctx, batch)
}

// Dump writes batch in chunks of ChunkSize, in order. The first failing chunk
// aborts the rest of the batch.
func (d *Dumper) Dump(ctx context.Context, batch []domain.CompactTx) error {
	total := len(batch)
	if total == 0 {
		return nil
	}
	ctx, span := otel.Tracer("txcrawler/dump").Start(ctx, "dump.batch")
	span.SetAttributes(attribute.Int("tx.count", total), attribute.Bool("force_update", d.cfg.ForceUpdate))
	defer span.End()

	processed := 0
	for start := 0; start < total; start += d.cfg.ChunkSize {
		end := min(start+d.cfg.ChunkSize, total)
		chunk := domain.NewRecords(batch[start:end])

		saved, skipped, err := d.writeChunk(ctx, chunk)
		d.observer.OnDumped(saved, skipped)
		if err != nil {
			d.observer.OnDumpFailed(total - processed - saved - skipped)
			d.logger.Error("dump chunk failed",
				"processed", fmt.Sprintf("%d/%d", processed+saved+skipped, total),
				"chunk_first_block", chunk[0].BlockNumber,
				"err", err,
			)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("dump chunk [%d,%d) of %d: %w", start, end, total, err)
		}
		processed = end

		d.logger.Info("dumped chunk",
			"progress", fmt.Sprintf("%.1f%%", float64(processed)/float64(total)*100),
			"processed", fmt.Sprintf("%d/%d", processed, total),
			"saved", saved,
			"skipped", skipped,
			"last_block_in_chunk", chunk[len(chunk)-1].BlockNumber,
		)
	}
	return nil
}

func (d *Dumper) writeChunk(ctx context.Context, chunk []domain.Record) (saved, skipped int, err error) {
	if !d.cfg.ForceUpdate {
		inserted, err := d.store.BulkSave(ctx, chunk)
		if err != nil {
			return 0, 0, err
		}
		return inserted, len(chunk) - inserted, nil
	}

	for _, record := range chunk {
		exists, err := d.store.Exists(ctx, record.TxHash)
		if err != nil {
			return saved, skipped, fmt.Errorf("check %s: %w", record.TxHash, err)
		}
		if exists {
			d.logger.Debug("tx already stored, skipped", "tx", record.TxHash, "block", record.BlockNumber)
			skipped++
			continue
		}
		if err := d.store.Save(ctx, record); err != nil {
			return saved, skipped, fmt.Errorf("save %s: %w", record.TxHash, err)
		}
		saved++
	}
	return saved, skipped, nil
}
