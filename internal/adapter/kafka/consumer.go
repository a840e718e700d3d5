package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/user/threat-ingestor/internal/adapter/metrics"
	"github.com/user/threat-ingestor/internal/domain"
	"github.com/user/threat-ingestor/internal/usecase"
)

// BatchProcessor is the pipeline boundary the transport hands batches to.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, events []domain.RawEvent) usecase.BatchStats
}

// Config holds the consumer-side transport settings.
type Config struct {
	Brokers []string
	GroupID string
	// BatchSize caps how many messages form one batch window.
	BatchSize int
	// BatchWait bounds how long a partial window waits before flushing.
	BatchWait time.Duration
	// CommitCheckpoints controls whether offsets are marked after a batch
	// completes. Disabling it redelivers all history on restart; the
	// store's idempotency makes that safe but expensive.
	CommitCheckpoints bool
}

// Consumer drives the pipeline from a Kafka consumer group. Each claimed
// partition runs its own sequential batch loop, so the number of concurrent
// outbound inference calls is bounded by the partition count.
type Consumer struct {
	group     sarama.ConsumerGroup
	processor BatchProcessor
	metrics   *metrics.PipelineMetrics
	logger    *slog.Logger
	cfg       Config
}

// NewConsumer creates a consumer group member. metrics may be nil.
func NewConsumer(cfg Config, processor BatchProcessor, m *metrics.PipelineMetrics, logger *slog.Logger) (*Consumer, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_1_0_0
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		group:     group,
		processor: processor,
		metrics:   m,
		logger:    logger.With("component", "kafka_consumer"),
		cfg:       cfg,
	}, nil
}

// Start consumes the topic until ctx is cancelled. Transport-level errors
// are surfaced through the group's error channel and logged; they never
// abort the loop.
func (c *Consumer) Start(ctx context.Context, topic string) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("transport error", "error", err)
		}
	}()

	topics := []string{topic}
	for {
		if err := c.group.Consume(ctx, topics, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.logger.Error("consume session failed, retrying", "error", err)
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Rebalance: loop into a new session.
	}
}

// Close shuts down the consumer group.
func (c *Consumer) Close() error {
	return c.group.Close()
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *Consumer) Setup(_ sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *Consumer) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim assembles batch windows from one partition and runs them
// through the pipeline strictly one at a time. Offsets are marked only after
// the window has been processed, and only up to the first record that could
// not be durably handled, preserving the at-least-once contract the
// deduplicator depends on.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	logger := c.logger.With("partition", claim.Partition())

	batch := make([]*sarama.ConsumerMessage, 0, c.cfg.BatchSize)
	timer := time.NewTimer(c.cfg.BatchWait)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			logger.Debug("no events received in batch window")
			return
		}
		events := make([]domain.RawEvent, len(batch))
		for i, msg := range batch {
			events[i] = domain.RawEvent{
				Payload:   msg.Value,
				Partition: msg.Partition,
				Offset:    msg.Offset,
			}
		}

		stats := c.processor.ProcessBatch(session.Context(), events)
		if c.metrics != nil {
			c.metrics.ObserveBatch(
				stats.Received, stats.Persisted, stats.Malformed, stats.Duplicates,
				stats.Degraded, stats.Alerted, stats.AlertsFailed, stats.Failed,
			)
		}

		if c.cfg.CommitCheckpoints {
			n := markablePrefix(stats.Outcomes)
			if n < len(batch) {
				logger.Warn("holding checkpoint before unconfirmed record",
					"markable", n,
					"window", len(batch),
					"offset", batch[n].Offset,
				)
			}
			for _, msg := range batch[:n] {
				session.MarkMessage(msg, "")
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				flush()
				return nil
			}
			batch = append(batch, msg)
			if len(batch) >= c.cfg.BatchSize {
				flush()
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(c.cfg.BatchWait)
			}
		case <-timer.C:
			flush()
			timer.Reset(c.cfg.BatchWait)
		case <-session.Context().Done():
			// Stop at the batch boundary; unmarked messages are
			// redelivered and collapse against the store.
			logger.Debug("session closing, leaving partial window for redelivery")
			return nil
		}
	}
}

// markablePrefix reports how many leading messages of a window may have
// their offsets marked. A record counts once it was persisted or explicitly
// skipped; the first failed or unprocessed record holds back its own offset
// and, because marking is cumulative per partition, every offset behind it.
func markablePrefix(outcomes []domain.Outcome) int {
	for i, out := range outcomes {
		if out.Kind == domain.OutcomeFailed {
			return i
		}
	}
	return len(outcomes)
}
