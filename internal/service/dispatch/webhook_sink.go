package dispatch

import (
	"context"
	"fmt"
	"time"

	"SpikeWatch/internal/domain/models"
	"SpikeWatch/internal/service/ratelimit"
	xhttp "SpikeWatch/pkg/http"
)

// WebhookSink POSTs alert events to an external endpoint. Deliveries are rate
// limited and retried a bounded number of times; a webhook that stays down
// costs alerts, never detection throughput.
type WebhookSink struct {
	client    *xhttp.Client
	limiter   *ratelimit.Limiter
	url       string
	maxPerSec float64
	attempts  int
}

// NewWebhookSink creates a webhook sink.
func NewWebhookSink(client *xhttp.Client, url string, maxPerSec float64, attempts int) *WebhookSink {
	if maxPerSec <= 0 {
		maxPerSec = 5
	}
	if attempts <= 0 {
		attempts = 3
	}
	return &WebhookSink{
		client:    client,
		limiter:   ratelimit.New(),
		url:       url,
		maxPerSec: maxPerSec,
		attempts:  attempts,
	}
}

func (s *WebhookSink) Name() string {
	return "webhook"
}

func (s *WebhookSink) Deliver(ctx context.Context, ev *models.AlertEvent) error {
	if !s.limiter.Allow("webhook", s.maxPerSec, s.maxPerSec) {
		return fmt.Errorf("webhook rate limit exceeded")
	}

	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}
		lastErr = s.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodPost,
			URL:    s.url,
			Body:   ev,
		}, nil)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("webhook delivery after %d attempts: %w", s.attempts, lastErr)
}

func (s *WebhookSink) Close() error {
	return nil
}
