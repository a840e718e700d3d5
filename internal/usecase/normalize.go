package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/user/threat-ingestor/internal/domain"
)

// nonFiniteTokens are the textual NaN encodings seen in upstream payloads.
// They are replaced before JSON decoding because a strict parser rejects
// bare nan tokens in numeric positions.
var nonFiniteTokens = [][]byte{
	[]byte("NaN"),
	[]byte("NAN"),
	[]byte("nan"),
}

var zeroToken = []byte("0.0")

// Normalizer parses raw transport payloads into structured log records.
// It is a pure transformation with no side effects.
type Normalizer struct{}

// NewNormalizer creates a new Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize sanitizes and decodes a raw payload. Unparsable payloads yield
// an error wrapping domain.ErrMalformedInput; the caller owns diagnostic
// logging of the original bytes.
func (n *Normalizer) Normalize(payload []byte) (domain.LogRecord, error) {
	sanitized := sanitizeNonFinite(payload)

	var rec domain.LogRecord
	if err := json.Unmarshal(sanitized, &rec); err != nil {
		return domain.LogRecord{}, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
	}

	clampNonFinite(&rec)
	rec.LogID = domain.DeriveLogID(rec)
	return rec, nil
}

// sanitizeNonFinite substitutes textual NaN variants with 0.0 ahead of
// structural parsing, mirroring the upstream producer's encoding quirk.
func sanitizeNonFinite(payload []byte) []byte {
	out := payload
	for _, tok := range nonFiniteTokens {
		out = bytes.ReplaceAll(out, tok, zeroToken)
	}
	return out
}

// clampNonFinite enforces the invariant that every numeric field is a finite
// real number.
func clampNonFinite(rec *domain.LogRecord) {
	for _, f := range []*float64{
		&rec.PacketLength,
		&rec.PacketCount,
		&rec.FlowDuration,
		&rec.PayloadEntropy,
		&rec.PCAAnomalyScore,
	} {
		if math.IsNaN(*f) || math.IsInf(*f, 0) {
			*f = 0
		}
	}
}
