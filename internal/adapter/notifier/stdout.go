package notifier

import (
	"context"
	"fmt"

	"github.com/user/threat-ingestor/internal/domain"
)

// StdoutNotifier is an implementation of domain.Notifier that prints to
// standard output. Used when no webhook is configured.
type StdoutNotifier struct{}

// NewStdoutNotifier creates a new StdoutNotifier.
func NewStdoutNotifier() *StdoutNotifier {
	return &StdoutNotifier{}
}

// Notify prints the alert block to stdout.
func (n *StdoutNotifier) Notify(ctx context.Context, rec domain.PersistedRecord) error {
	fmt.Printf("--- ALERT ---\n%s\n-------------\n", FormatAlert(rec))
	return nil
}
