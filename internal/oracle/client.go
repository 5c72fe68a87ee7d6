// Package oracle provides the HTTP client for the remote chat model that
// analyses candidate code.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultPath    = "/api/chat"
	defaultModel   = "qwen2-32b-awq"
	defaultTimeout = 60 * time.Second
)

var tracer = otel.Tracer("github.com/tjfontaine/interview-gateway/internal/oracle")

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithPath sets the chat endpoint path.
func WithPath(path string) ClientOption {
	return func(c *Client) {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		c.path = path
	}
}

// WithModel sets the model name sent with every request.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithAPIKey sends the key as a bearer token.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithTimeout bounds each request. It is ignored when WithHTTPClient is used.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client sends analysis prompts to a chat endpoint. It makes exactly one
// attempt per call: no retry, no backoff.
type Client struct {
	baseURL    string
	path       string
	model      string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a new oracle client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		path:    defaultPath,
		model:   defaultModel,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout:   c.timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Analyze sends prompt as a single user message and returns the assistant's
// reply. Every failure is returned as *Error.
func (c *Client) Analyze(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "oracle.analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("oracle.model", c.model),
		attribute.Int("oracle.prompt_bytes", len(prompt)),
	)

	content, err := c.chat(ctx, prompt)
	if err != nil {
		var oe *Error
		if errors.As(err, &oe) {
			span.SetAttributes(attribute.String("oracle.error_kind", string(oe.Kind)))
		}
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return content, nil
}

func (c *Client) chat(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(&ChatRequest{
		Model:    c.model,
		Stream:   false,
		Messages: []ChatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", &Error{Kind: ErrorKindConnection, Detail: "failed to marshal request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: ErrorKindConnection, Detail: err.Error(), Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &Error{Kind: ErrorKindConnection, Detail: connectionDetail(err), Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: ErrorKindConnection, Detail: connectionDetail(err), Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &Error{
			Kind:       ErrorKindStatus,
			StatusCode: resp.StatusCode,
			Detail:     fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(respBody), 256)),
		}
	}

	var result ChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &Error{Kind: ErrorKindMalformedResponse, Detail: err.Error(), Cause: err}
	}
	if result.Message == nil {
		return "", &Error{Kind: ErrorKindMalformedResponse, Detail: "response has no message"}
	}
	if result.Message.Content == nil {
		return "", &Error{Kind: ErrorKindMalformedResponse, Detail: "response message has no content"}
	}

	return *result.Message.Content, nil
}

func connectionDetail(err error) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return "Connection timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "Canceled"
	}
	return err.Error()
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
