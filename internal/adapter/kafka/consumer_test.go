package kafka

import (
	"testing"

	"github.com/user/threat-ingestor/internal/domain"
)

func TestMarkablePrefix(t *testing.T) {
	persisted := domain.Outcome{Kind: domain.OutcomePersisted}
	malformed := domain.Outcome{Kind: domain.OutcomeSkippedMalformed}
	duplicate := domain.Outcome{Kind: domain.OutcomeSkippedDuplicate}
	failed := domain.Outcome{Kind: domain.OutcomeFailed}

	cases := []struct {
		name     string
		outcomes []domain.Outcome
		want     int
	}{
		{"Empty Window", nil, 0},
		{"All Persisted", []domain.Outcome{persisted, persisted}, 2},
		{"Explicit Skips Advance", []domain.Outcome{persisted, malformed, duplicate}, 3},
		{"Failure Holds Its Own Offset", []domain.Outcome{persisted, failed, persisted}, 1},
		{"Leading Failure Holds Everything", []domain.Outcome{failed, persisted}, 0},
		{"Cancelled Tail Stays Unmarked", []domain.Outcome{persisted}, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := markablePrefix(tc.outcomes); got != tc.want {
				t.Errorf("markablePrefix() = %d, want %d", got, tc.want)
			}
		})
	}
}
