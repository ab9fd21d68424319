package powerbi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/transitlab/transit-sweep/internal/metrics"
)

// Config controls client behavior.
type Config struct {
	Endpoint          string
	ResourceKey       string
	Origin            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client posts querydata requests to the PowerBI public reports API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Response carries the raw portal reply. The body is preserved verbatim even
// for non-2xx statuses so the export mirrors exactly what the portal sent.
type Response struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// OK reports whether the portal answered with a 2xx status.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// NewClient builds a Client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	metrics.Init()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}, nil
}

// QueryData sends one request body and returns the raw reply.
// Requests are paced by the client's token bucket.
func (c *Client) QueryData(ctx context.Context, body []byte) (Response, error) {
	waitStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(waitStart); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(waited)
	}

	endpoint, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return Response{}, fmt.Errorf("parse endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("synchronous", "true")
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	if c.cfg.ResourceKey != "" {
		req.Header.Set("X-PowerBI-ResourceKey", c.cfg.ResourceKey)
	}
	if c.cfg.Origin != "" {
		req.Header.Set("Origin", c.cfg.Origin)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("post querydata: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("Failed to close response body", zap.Error(cerr))
		}
	}()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read querydata response: %w", err)
	}

	return Response{
		StatusCode: resp.StatusCode,
		Body:       payload,
		Duration:   time.Since(start),
	}, nil
}
