package progress

import (
	"context"
	"time"

	"igrepost/pkg/logger"
)

// Reporter is how the bot publishes status changes
type Reporter interface {
	Report(ctx context.Context, u Update)
}

// WebhookReporter posts updates to the dashboard. Delivery failures are
// logged at debug and otherwise ignored so the bot never stalls on them.
type WebhookReporter struct {
	client  *Client
	timeout time.Duration
	log     logger.Logger
}

// NewWebhookReporter returns a reporter for webhookURL. An empty URL yields
// a reporter that only logs.
func NewWebhookReporter(webhookURL string, timeout time.Duration, log logger.Logger) *WebhookReporter {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	r := &WebhookReporter{timeout: timeout, log: log}
	if webhookURL != "" {
		r.client = NewClient(webhookURL, timeout)
	}
	return r
}

// Enabled reports whether updates leave the process
func (r *WebhookReporter) Enabled() bool {
	return r.client != nil
}

func (r *WebhookReporter) Report(ctx context.Context, u Update) {
	fields := map[string]interface{}{
		"status":  string(u.Status),
		"message": u.Message,
	}
	if u.ReelID != nil {
		fields["reel_id"] = *u.ReelID
	}
	r.log.DebugWithFields("Status update", fields)

	if r.client == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.client.Post(ctx, u); err != nil {
		r.log.WithError(err).Debug("Webhook delivery failed")
	}
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(ctx context.Context, u Update)

func (f ReporterFunc) Report(ctx context.Context, u Update) { f(ctx, u) }
