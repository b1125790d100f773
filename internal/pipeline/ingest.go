package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
	"github.com/Arham-Git047/Project-Sentinel/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Acceptor buffers one raw event or rejects it.
type Acceptor interface {
	Accept(ctx context.Context, raw domain.RawEvent) error
}

// Ingester moves readings from the source into the engine's buffer.
type Ingester struct {
	extractor BatchExtractor
	acceptor  Acceptor
	logger    *slog.Logger
	metrics   *observability.Metrics
	batchSize int
}

// NewIngester creates an Ingester with the given source and sink.
func NewIngester(e BatchExtractor, a Acceptor, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Ingester {
	return &Ingester{
		extractor: e,
		acceptor:  a,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// Run executes the ingest loop until the context is cancelled.
func (in *Ingester) Run(ctx context.Context) error {
	in.logger.Info("ingester started", "batch_size", in.batchSize)

	for {
		select {
		case <-ctx.Done():
			in.logger.Info("ingester stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !in.processBatch(ctx) {
			return nil
		}
	}
}

// extractBackOff doubles from 200ms up to 5s and never gives up on its own;
// only context cancellation ends the retries.
func extractBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0
	return backoff.WithContext(b, ctx)
}

// processBatch fetches and buffers one batch, retrying extract failures.
// Returns false if ingestion should stop.
func (in *Ingester) processBatch(ctx context.Context) bool {
	extract := func() ([]domain.RawEvent, error) {
		return in.extractor.ExtractBatch(ctx, in.batchSize)
	}
	notify := func(err error, wait time.Duration) {
		in.logger.Error("extract batch failed", "error", err, "retry_in", wait)
	}
	batch, err := backoff.RetryNotifyWithData(extract, extractBackOff(ctx), notify)
	if err != nil {
		return ctx.Err() == nil
	}

	if len(batch) == 0 {
		return ctx.Err() == nil
	}

	in.metrics.ReadingsConsumed.Add(float64(len(batch)))
	in.metrics.BatchSize.Observe(float64(len(batch)))

	for _, raw := range batch {
		if err := in.acceptor.Accept(ctx, raw); err != nil {
			in.logger.Warn("reading rejected, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
		}
		// Rejected messages are committed too so a poison message never blocks the partition.
		in.commitOffset(ctx, raw)
	}
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (in *Ingester) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		in.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}
