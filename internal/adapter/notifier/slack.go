package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/user/threat-ingestor/internal/domain"
)

// SlackNotifier implements domain.Notifier against a Slack incoming webhook.
// Delivery is fire-and-forget: the caller logs and swallows any error.
type SlackNotifier struct {
	webhookURL string
	logger     *slog.Logger
}

// NewSlackNotifier creates a new SlackNotifier.
func NewSlackNotifier(webhookURL string, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		logger:     logger.With("component", "slack_notifier"),
	}
}

// Notify posts one message per record. No acknowledgment is awaited beyond
// the immediate call result.
func (n *SlackNotifier) Notify(ctx context.Context, rec domain.PersistedRecord) error {
	msg := &slack.WebhookMessage{Text: FormatAlert(rec)}
	if err := slack.PostWebhookContext(ctx, n.webhookURL, msg); err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	n.logger.Debug("alert dispatched", "log_id", rec.LogID, "risk", rec.Risk)
	return nil
}
