package domain

import "errors"

var (
	// ErrMalformedInput marks a payload that could not be parsed into a
	// LogRecord even after sanitization. The record is skipped, never fatal.
	ErrMalformedInput = errors.New("malformed input")

	// ErrDuplicateKey marks an insert that conflicted with an already
	// persisted log_id. This is an expected outcome, not a failure.
	ErrDuplicateKey = errors.New("duplicate log id")

	// ErrEnrichmentUnavailable marks an inference call that failed or timed
	// out. The record still proceeds with FallbackPrediction values.
	ErrEnrichmentUnavailable = errors.New("enrichment unavailable")
)
