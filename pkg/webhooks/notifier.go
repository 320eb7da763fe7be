// Package webhooks posts benchmark-completion and warning payloads to
// the callback URIs a client was created with. Deliveries run on
// detached goroutines with a bounded timeout and never block the
// benchmark or request path.
package webhooks

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/icvsb/icvsb/pkg/httpclient"
	"github.com/icvsb/icvsb/pkg/metrics"
)

// DefaultTimeout bounds one webhook delivery.
const DefaultTimeout = 10 * time.Second

const (
	KindBenchmarkCompleted = "benchmark_completed"
	KindWarning            = "warning"
)

// Notifier delivers webhook payloads.
type Notifier struct {
	http    *httpclient.Client
	logger  ectologger.Logger
	timeout time.Duration
}

func NewNotifier(client *httpclient.Client, logger ectologger.Logger, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Notifier{http: client, logger: logger, timeout: timeout}
}

// Notify posts payload to uri on a detached goroutine. Failures are
// logged and counted, never surfaced to the caller.
func (n *Notifier) Notify(kind, uri string, payload any) {
	if uri == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		resp, err := n.http.PostJSON(ctx, uri, nil, payload)
		if err != nil {
			metrics.RecordWebhook(kind, false)
			n.logger.WithError(err).WithFields(map[string]any{
				"kind": kind,
				"uri":  uri,
			}).Warn("webhook delivery failed")
			return
		}
		if !resp.IsSuccess() {
			metrics.RecordWebhook(kind, false)
			n.logger.WithFields(map[string]any{
				"kind":   kind,
				"uri":    uri,
				"status": resp.StatusCode,
			}).Warn("webhook delivery rejected")
			return
		}

		metrics.RecordWebhook(kind, true)
		n.logger.WithFields(map[string]any{
			"kind": kind,
			"uri":  uri,
		}).Debug("webhook delivered")
	}()
}
