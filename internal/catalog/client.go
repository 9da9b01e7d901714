package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/rkm/stac-area-search/internal/metrics"
	"github.com/rkm/stac-area-search/internal/search"
)

// Client executes search requests against a STAC search endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	maxAttempts     uint
	initialInterval time.Duration
	maxInterval     time.Duration

	cache   *responseCache
	metrics *metrics.Provider
}

// NewClient creates a catalog client for the given base URL. The timeout
// bounds each individual attempt; a timeout surfaces as
// ErrCatalogUnavailable like any other transport failure.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger:          slog.Default(),
		maxAttempts:     1,
		initialInterval: 500 * time.Millisecond,
		maxInterval:     5 * time.Second,
	}
}

// WithLogger sets a custom logger for the client.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// WithRetry enables bounded exponential-backoff retries for transient
// failures. maxAttempts counts the first try; 1 disables retries.
func (c *Client) WithRetry(maxAttempts uint, initialInterval, maxInterval time.Duration) *Client {
	if maxAttempts >= 1 {
		c.maxAttempts = maxAttempts
	}
	if initialInterval > 0 {
		c.initialInterval = initialInterval
	}
	if maxInterval > 0 {
		c.maxInterval = maxInterval
	}
	return c
}

// WithCache enables the in-process response cache with the given size.
// A size of zero or less leaves caching disabled.
func (c *Client) WithCache(size int) *Client {
	if size <= 0 {
		return c
	}
	c.cache = newResponseCache(size)
	return c
}

// WithMetrics sets the metrics provider.
func (c *Client) WithMetrics(m *metrics.Provider) *Client {
	c.metrics = m
	return c
}

// Search POSTs the request to the catalog's /search endpoint and returns
// the normalized result set. Transient failures (transport errors, 5xx)
// are retried with exponential backoff up to the configured attempt
// budget; 4xx responses and malformed payloads are not retried.
func (c *Client) Search(ctx context.Context, req *search.Request) (*ResultSet, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	var key uint64
	if c.cache != nil {
		key = requestKey(body)
		if rs, ok := c.cache.get(key); ok {
			if c.metrics != nil {
				c.metrics.CacheHits.Inc()
			}
			c.logger.DebugContext(ctx, "search served from cache",
				slog.Int("items", len(rs.Items)),
			)
			return rs, nil
		}
		if c.metrics != nil {
			c.metrics.CacheMisses.Inc()
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval
	bo.MaxInterval = c.maxInterval

	rs, err := backoff.Retry(ctx, func() (*ResultSet, error) {
		return c.doSearch(ctx, body)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(c.maxAttempts),
	)
	if err != nil {
		return nil, err
	}

	if c.metrics != nil && rs.Dropped > 0 {
		c.metrics.DroppedFeatures.Add(float64(rs.Dropped))
	}

	if c.cache != nil {
		c.cache.add(key, rs)
	}

	return rs, nil
}

// doSearch performs a single POST attempt. Non-retryable failures are
// wrapped with backoff.Permanent so the retry loop stops immediately.
func (c *Client) doSearch(ctx context.Context, body []byte) (*ResultSet, error) {
	url := c.baseURL + "/search"

	c.logger.DebugContext(ctx, "executing catalog search",
		slog.String("url", url),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/geo+json,application/json")
	req.Header.Set("User-Agent", "stac-area-search/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "catalog request failed",
			slog.String("error", err.Error()),
			slog.String("url", url),
		)
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.ErrorContext(ctx, "catalog returned non-2xx status",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(respBody)),
		)

		failure := fmt.Errorf("%w: status %d: %s", ErrCatalogUnavailable, resp.StatusCode, string(respBody))
		if resp.StatusCode >= 500 {
			// Server errors are worth another attempt.
			return nil, failure
		}
		return nil, backoff.Permanent(failure)
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		c.logger.ErrorContext(ctx, "failed to decode catalog response",
			slog.String("error", err.Error()),
		)
		return nil, backoff.Permanent(fmt.Errorf("%w: %w", ErrMalformedResponse, err))
	}

	rs, err := normalizeFeatureCollection(&fc, c.logger)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	c.logger.DebugContext(ctx, "catalog search completed",
		slog.Int("items", len(rs.Items)),
		slog.Int("dropped", rs.Dropped),
		slog.Int("matched", rs.Matched),
	)

	return rs, nil
}
