package anticheat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tjfontaine/interview-gateway/internal/domain"
	"github.com/tjfontaine/interview-gateway/internal/pkg/safehttp"
)

// DefaultWebhookTimeout bounds a single delivery attempt.
const DefaultWebhookTimeout = 5 * time.Second

// WebhookConfig configures a WebhookSink.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
	Retries int
	Headers map[string]string
	// BlockPrivate refuses to deliver to private or loopback addresses.
	BlockPrivate bool
	// Client overrides the HTTP client. Timeout and BlockPrivate are ignored when set.
	Client *http.Client
}

// WebhookSink POSTs each event as JSON to an external endpoint, such as a
// proctoring service.
type WebhookSink struct {
	url     string
	retries int
	headers map[string]string
	client  *http.Client
}

// NewWebhookSink creates a WebhookSink. URL is required.
func NewWebhookSink(cfg WebhookConfig) (*WebhookSink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("webhook retries must not be negative")
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultWebhookTimeout
		}
		client = &http.Client{Timeout: timeout}
		if cfg.BlockPrivate {
			client.Transport = safehttp.NewTransport(0)
		}
	}

	return &WebhookSink{
		url:     cfg.URL,
		retries: cfg.Retries,
		headers: cfg.Headers,
		client:  client,
	}, nil
}

// Record delivers ev, retrying failed attempts up to the configured count.
func (s *WebhookSink) Record(ctx context.Context, ev domain.AnticheatEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		lastErr = s.deliver(ctx, body)
		if lastErr == nil {
			return nil
		}
		// Don't retry on context cancellation
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("webhook delivery failed after %d attempt(s): %w", s.retries+1, lastErr)
}

func (s *WebhookSink) deliver(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
