package domain

// OutcomeKind classifies what happened to one record in a batch. Skips and
// failures are ordinary values, not control flow: the coordinator switches
// on the kind and always continues with the next record.
type OutcomeKind int

const (
	// OutcomePersisted means the record was enriched and durably written.
	OutcomePersisted OutcomeKind = iota
	// OutcomeSkippedMalformed means the payload could not be parsed.
	OutcomeSkippedMalformed
	// OutcomeSkippedDuplicate means the log ID was already persisted.
	OutcomeSkippedDuplicate
	// OutcomeFailed means the store write failed for a non-duplicate reason.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePersisted:
		return "persisted"
	case OutcomeSkippedMalformed:
		return "malformed"
	case OutcomeSkippedDuplicate:
		return "duplicate"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of processing a single record.
type Outcome struct {
	Kind  OutcomeKind
	LogID string
	Err   error

	// Degraded is set when the record was persisted with fallback
	// prediction values because enrichment was unavailable.
	Degraded bool
	// Alerted is set when an alert dispatch was attempted and accepted.
	Alerted bool
	// AlertFailed is set when an alert dispatch was attempted and rejected.
	AlertFailed bool
}
