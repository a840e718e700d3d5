package domain

import "context"

// RecordRepository is the durable store for enriched records. It is the
// single source of truth for whether a logical event has been processed.
type RecordRepository interface {
	// Exists reports whether a record with the given log ID is already
	// persisted. This is a dedup optimization only; the uniqueness
	// constraint enforced by Insert is the correctness guarantee.
	Exists(ctx context.Context, logID string) (bool, error)

	// Insert atomically writes the record, returning ErrDuplicateKey if a
	// record with the same log ID is already present. It never updates or
	// overwrites an existing row.
	Insert(ctx context.Context, rec PersistedRecord) error
}

// DedupCache short-circuits lookups for recently seen log IDs. A cache miss
// or a cache failure means nothing: the store stays authoritative. A log ID
// is marked only after the store has confirmed it (written or conflicting),
// so a transient write failure can never hide a record from redelivery.
type DedupCache interface {
	// Check reports whether logID was recently confirmed persisted.
	Check(ctx context.Context, logID string) (bool, error)

	// Mark records logID as confirmed persisted.
	Mark(ctx context.Context, logID string) error
}

// Enricher obtains a prediction for a record from the inference service.
type Enricher interface {
	// Predict issues one bounded call per record. On any failure it returns
	// FallbackPrediction values together with an error wrapping
	// ErrEnrichmentUnavailable, so the caller can observe the degradation
	// while still processing the record.
	Predict(ctx context.Context, rec LogRecord) (Prediction, error)
}

// Notifier delivers best-effort alerts for high-severity records.
type Notifier interface {
	Notify(ctx context.Context, rec PersistedRecord) error
}
