// Package httpapi calls a running comparison endpoint over HTTP.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sevigo/ragbench/compare"
	"github.com/sevigo/ragbench/internal/textutil"
	"github.com/sevigo/ragbench/retry"
	"github.com/sevigo/ragbench/telemetry"
)

const (
	DefaultURL     = "http://localhost:3000/api/getProductQueryTest"
	DefaultTimeout = 60 * time.Second

	maxErrorBody = 512
)

var ErrInvalidURL = errors.New("httpapi: invalid endpoint URL")

// StatusError is returned for a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpapi: unexpected status %d: %s", e.StatusCode, e.Body)
}

type request struct {
	Query     string `json:"query"`
	ProductID string `json:"productId"`
}

// Client posts queries to the comparison endpoint. Transport failures and
// 5xx responses are retried; 4xx responses and undecodable bodies are not.
type Client struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	headers    map[string]string
	cookies    map[string]string
	policy     retry.Policy
	logger     *slog.Logger
	metrics    *telemetry.Metrics
}

var _ compare.Comparer = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithHeaders adds request headers. Content-Type is always JSON.
func WithHeaders(h map[string]string) Option {
	return func(cl *Client) {
		for k, v := range h {
			cl.headers[k] = v
		}
	}
}

// WithCookies adds session cookies sent with every request.
func WithCookies(c map[string]string) Option {
	return func(cl *Client) {
		for k, v := range c {
			cl.cookies[k] = v
		}
	}
}

// WithTimeout bounds each request. An injected client is copied, not changed.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

func WithPolicy(p retry.Policy) Option {
	return func(cl *Client) {
		cl.policy = p
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

// New returns a client for endpoint. An empty endpoint uses DefaultURL.
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, endpoint)
	}

	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		headers:    make(map[string]string),
		cookies:    make(map[string]string),
		policy:     retry.Exponential(3, time.Second, 10*time.Second),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	c.logger = c.logger.With("component", "compare_http", "endpoint", endpoint)
	return c, nil
}

func (c *Client) Compare(ctx context.Context, q compare.Query) (*compare.Comparison, error) {
	body, err := json.Marshal(request{Query: q.Question, ProductID: q.ProductID})
	if err != nil {
		return nil, fmt.Errorf("httpapi: encode request: %w", err)
	}

	policy := c.policy.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		c.metrics.IncRetry("compare")
		c.logger.WarnContext(ctx, "Comparison request failed, retrying",
			"product_id", q.ProductID, "attempt", attempt, "delay", delay, "error", err)
	})
	result, attempts, err := retry.Do(ctx, policy, func(ctx context.Context, _ int) (*compare.Comparison, error) {
		start := time.Now()
		res, err := c.post(ctx, body)
		c.metrics.ObserveCall("compare", err, time.Since(start).Seconds())
		return res, err
	})
	if err != nil {
		return nil, fmt.Errorf("compare %s: %w", q.ProductID, err)
	}
	c.logger.DebugContext(ctx, "Comparison received", "product_id", q.ProductID, "attempts", attempts)
	return result, nil
}

func (c *Client) post(ctx context.Context, body []byte) (*compare.Comparison, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("httpapi: build request: %w", err))
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	for name, value := range c.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpapi: post: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpapi: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(data)}
		if resp.StatusCode >= 500 {
			return nil, serr
		}
		return nil, retry.Permanent(serr)
	}

	result, err := compare.Decode(data)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	return result, nil
}

func truncate(b []byte) string {
	return textutil.Truncate(string(b), maxErrorBody)
}
