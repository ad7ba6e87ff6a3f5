// Package notify pushes terminal task states to a configured webhook URL so
// operators get a push signal in addition to polling the task endpoint.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/lukas/fieldinsights/internal/domain"
	"github.com/lukas/fieldinsights/internal/logger"
)

// WebhookConfig holds webhook notifier configuration.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

// WebhookNotifier POSTs task snapshots as JSON to one URL. Delivery is
// best-effort: a failed POST is logged and dropped, never retried, and never
// affects the task itself.
type WebhookNotifier struct {
	client *resty.Client
	url    string
	logger *logger.Logger
}

// NewWebhookNotifier creates a new webhook notifier.
// Parameters:
//   - cfg: webhook URL and request timeout.
//   - log: logger instance.
// Returns:
//   - *WebhookNotifier: initialized notifier.
func NewWebhookNotifier(cfg *WebhookConfig, log *logger.Logger) *WebhookNotifier {
	if log == nil {
		log = logger.GetDefault()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "fieldinsights-webhook")

	return &WebhookNotifier{
		client: client,
		url:    cfg.URL,
		logger: log,
	}
}

// TaskCompleted delivers the terminal snapshot of a task.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - view: terminal task snapshot.
// Returns:
//   - error: non-nil if the POST fails or returns a non-2xx status.
func (n *WebhookNotifier) TaskCompleted(ctx context.Context, view domain.TaskView) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(view).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("failed to deliver webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook endpoint returned %s", resp.Status())
	}

	n.logger.WithFields(logger.Fields{
		logger.FieldTaskID: view.ID,
		"status":           string(view.Status),
	}).Debug("Webhook delivered")

	return nil
}
