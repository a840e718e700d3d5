package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/user/threat-ingestor/internal/domain"
)

// BatchStats summarizes one processed batch window. Outcomes holds the
// per-record results in delivery order; it is shorter than Received when a
// cancellation stopped the batch early, and transports use it to decide how
// far checkpoints may advance.
type BatchStats struct {
	Received     int
	Persisted    int
	Malformed    int
	Duplicates   int
	Degraded     int
	Alerted      int
	AlertsFailed int
	Failed       int
	Outcomes     []domain.Outcome
}

// ProcessBatchUseCase drives the ingestion pipeline for one batch of raw
// events: normalize, deduplicate, enrich, classify, persist, alert. Records
// are processed strictly in order; any per-record failure is absorbed here
// and never aborts the batch.
type ProcessBatchUseCase struct {
	normalizer *Normalizer
	classifier *Classifier
	store      domain.RecordRepository
	enricher   domain.Enricher
	cache      domain.DedupCache // optional latency optimization
	notifier   domain.Notifier   // optional; nil disables alert dispatch
	logger     *slog.Logger
}

// NewProcessBatchUseCase creates the batch coordinator. cache and notifier
// may be nil.
func NewProcessBatchUseCase(
	store domain.RecordRepository,
	enricher domain.Enricher,
	classifier *Classifier,
	cache domain.DedupCache,
	notifier domain.Notifier,
	logger *slog.Logger,
) *ProcessBatchUseCase {
	return &ProcessBatchUseCase{
		normalizer: NewNormalizer(),
		classifier: classifier,
		store:      store,
		enricher:   enricher,
		cache:      cache,
		notifier:   notifier,
		logger:     logger,
	}
}

// ProcessBatch runs the batch through the pipeline in delivery order and
// returns per-outcome counts. An empty batch is a logged no-op. When ctx is
// cancelled mid-batch the remaining events are left unprocessed; their
// offsets stay unmarked and they come back on redelivery.
func (uc *ProcessBatchUseCase) ProcessBatch(ctx context.Context, events []domain.RawEvent) BatchStats {
	stats := BatchStats{Received: len(events)}

	if len(events) == 0 {
		uc.logger.Debug("no events in batch window, waiting for next poll")
		return stats
	}

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			uc.logger.Info("cancellation requested, leaving remaining records for redelivery",
				"processed", len(stats.Outcomes),
				"received", stats.Received,
			)
			break
		}
		// A record that has started is carried to completion even if
		// shutdown fires while it is in flight; cancellation is honored
		// only between records.
		out := uc.processRecord(context.WithoutCancel(ctx), ev)
		stats.Outcomes = append(stats.Outcomes, out)
		switch out.Kind {
		case domain.OutcomePersisted:
			stats.Persisted++
		case domain.OutcomeSkippedMalformed:
			stats.Malformed++
		case domain.OutcomeSkippedDuplicate:
			stats.Duplicates++
		case domain.OutcomeFailed:
			stats.Failed++
		}
		if out.Degraded {
			stats.Degraded++
		}
		if out.Alerted {
			stats.Alerted++
		}
		if out.AlertFailed {
			stats.AlertsFailed++
		}
	}

	uc.logger.Info("batch processed",
		"received", stats.Received,
		"persisted", stats.Persisted,
		"malformed", stats.Malformed,
		"duplicates", stats.Duplicates,
		"degraded", stats.Degraded,
		"alerted", stats.Alerted,
		"failed", stats.Failed,
	)
	return stats
}

func (uc *ProcessBatchUseCase) processRecord(ctx context.Context, ev domain.RawEvent) domain.Outcome {
	rec, err := uc.normalizer.Normalize(ev.Payload)
	if err != nil {
		uc.logger.Warn("skipping malformed record",
			"error", err,
			"partition", ev.Partition,
			"offset", ev.Offset,
			"payload", string(ev.Payload),
		)
		return domain.Outcome{Kind: domain.OutcomeSkippedMalformed, Err: err}
	}

	if dup := uc.alreadySeen(ctx, rec.LogID); dup {
		uc.logger.Debug("skipping duplicate record", "log_id", rec.LogID)
		return domain.Outcome{Kind: domain.OutcomeSkippedDuplicate, LogID: rec.LogID}
	}

	pred, err := uc.enricher.Predict(ctx, rec)
	degraded := err != nil
	if degraded {
		if !errors.Is(err, domain.ErrEnrichmentUnavailable) {
			uc.logger.Warn("enricher returned unexpected error class, using fallback", "error", err, "log_id", rec.LogID)
		} else {
			uc.logger.Warn("enrichment unavailable, proceeding with fallback prediction", "error", err, "log_id", rec.LogID)
		}
		pred = domain.FallbackPrediction()
	}

	persisted := domain.PersistedRecord{
		LogRecord:  rec,
		Prediction: pred,
		Risk:       uc.classifier.Classify(pred),
	}

	if err := uc.store.Insert(ctx, persisted); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			// The insert constraint is the authoritative duplicate signal;
			// losing the pre-check race lands here.
			uc.logger.Debug("duplicate detected at insert", "log_id", rec.LogID)
			uc.markSeen(ctx, rec.LogID)
			return domain.Outcome{Kind: domain.OutcomeSkippedDuplicate, LogID: rec.LogID, Degraded: degraded}
		}
		uc.logger.Error("failed to persist record", "error", err, "log_id", rec.LogID)
		return domain.Outcome{Kind: domain.OutcomeFailed, LogID: rec.LogID, Err: err, Degraded: degraded}
	}

	uc.markSeen(ctx, rec.LogID)

	out := domain.Outcome{Kind: domain.OutcomePersisted, LogID: rec.LogID, Degraded: degraded}

	if persisted.Risk.Alertable() && uc.notifier != nil {
		if err := uc.notifier.Notify(ctx, persisted); err != nil {
			// Best effort only: log and swallow, never retry.
			uc.logger.Warn("alert delivery failed", "error", err, "log_id", rec.LogID, "risk", persisted.Risk)
			out.AlertFailed = true
		} else {
			out.Alerted = true
		}
	}

	return out
}

// alreadySeen runs the dedup pre-checks. Both checks are read-only
// optimizations: a failure in either simply defers to the store's
// uniqueness constraint.
func (uc *ProcessBatchUseCase) alreadySeen(ctx context.Context, logID string) bool {
	if uc.cache != nil {
		seen, err := uc.cache.Check(ctx, logID)
		if err != nil {
			uc.logger.Warn("dedup cache unavailable, falling back to store", "error", err)
		} else if seen {
			return true
		}
	}

	exists, err := uc.store.Exists(ctx, logID)
	if err != nil {
		uc.logger.Warn("dedup pre-check failed, relying on insert constraint", "error", err, "log_id", logID)
		return false
	}
	return exists
}

// markSeen records a log ID in the cache once the store has confirmed it,
// either by writing the row or by reporting the key as a duplicate. Marking
// any earlier would let a transiently failed insert suppress its own
// redelivery. Cache write failures are logged and ignored.
func (uc *ProcessBatchUseCase) markSeen(ctx context.Context, logID string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Mark(ctx, logID); err != nil {
		uc.logger.Warn("failed to mark log id in dedup cache", "error", err, "log_id", logID)
	}
}
