// Package client provides the remote lookup client: one GET per identifier
// against a fixed endpoint template, with optional response caching.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/spycheck/pkg/cache"
	"github.com/Sternrassler/spycheck/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// factory registers on the shared spycheck registry.
var factory = promauto.With(metrics.Registry)

// Prometheus metrics for lookup operations.
var (
	lookupRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "spycheck_lookup_requests_total",
		Help: "Total lookup requests by status",
	}, []string{"status"})

	lookupRequestDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "spycheck_lookup_duration_seconds",
		Help:    "Lookup request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	lookupErrorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "spycheck_lookup_errors_total",
		Help: "Total lookup errors by class",
	}, []string{"class"})
)

const (
	// DefaultEndpoint is the lookup URL template. {id} is replaced by the
	// path-escaped identifier.
	DefaultEndpoint = "https://api.spy.pet/servers/{id}"

	// IDPlaceholder marks where the identifier goes in an endpoint template.
	IDPlaceholder = "{id}"

	// DefaultUserAgent is sent when the caller does not set one.
	DefaultUserAgent = "spycheck/0.1.0"
)

// ErrorClass represents a classification of lookup failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Config holds the client configuration.
type Config struct {
	// Endpoint is the URL template containing {id}
	Endpoint string

	// UserAgent header
	UserAgent string

	// Timeout per request; 0 disables the timeout
	Timeout time.Duration

	// Cache is optional; nil disables response caching
	Cache *cache.Manager

	// CacheTTL applies when a response has no usable Expires header
	CacheTTL time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig(userAgent string) Config {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return Config{
		Endpoint:  DefaultEndpoint,
		UserAgent: userAgent,
		Timeout:   0,
		CacheTTL:  cache.DefaultTTL,
	}
}

// Response is the raw result of one lookup. The body has been fully read.
type Response struct {
	StatusCode int
	Status     string
	Body       []byte
	FromCache  bool
}

// Success reports whether the status code is 2xx.
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client performs lookups against the remote service.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// New creates a new lookup client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if !strings.Contains(cfg.Endpoint, IDPlaceholder) {
		return nil, fmt.Errorf("endpoint %q must contain %s", cfg.Endpoint, IDPlaceholder)
	}

	u, err := url.Parse(strings.ReplaceAll(cfg.Endpoint, IDPlaceholder, "0"))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("endpoint scheme must be http or https (got %q)", u.Scheme)
	}

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:  cfg.Cache,
		config: cfg,
		logger: log.With().Str("component", "lookup-client").Logger(),
	}, nil
}

// URL returns the lookup URL for id.
func (c *Client) URL(id string) string {
	return strings.ReplaceAll(c.config.Endpoint, IDPlaceholder, url.PathEscape(id))
}

// Lookup performs exactly one request for id. Non-2xx statuses are returned
// as a Response, not an error; errors are reserved for transport failures
// and are always a *LookupError.
func (c *Client) Lookup(ctx context.Context, id string) (*Response, error) {
	key := cache.Key{Endpoint: c.config.Endpoint, ID: id}

	if c.cache != nil {
		entry, err := c.cache.Get(ctx, key)
		switch {
		case err == nil:
			c.logger.Debug().Str("id", id).Msg("Cache hit")
			lookupRequestsTotal.WithLabelValues("cache").Inc()
			return &Response{
				StatusCode: entry.StatusCode,
				Status:     strconv.Itoa(entry.StatusCode) + " " + http.StatusText(entry.StatusCode),
				Body:       entry.Data,
				FromCache:  true,
			}, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("id", id).Msg("Cache get error")
		}
	}

	startTime := time.Now()
	defer func() {
		lookupRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(id), nil)
	if err != nil {
		return nil, &LookupError{ID: id, ErrorClass: ErrorClassNetwork, Message: "create request", Err: err}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		lookupErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		lookupRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, &LookupError{ID: id, ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		lookupErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		lookupRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, &LookupError{
			ID:         id,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read body",
			Err:        err,
		}
	}

	lookupRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	result := &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
	}

	if errClass := classifyStatus(resp.StatusCode); errClass != "" {
		lookupErrorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Debug().
			Str("id", id).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Lookup returned error status")
		return result, nil
	}

	if c.cache != nil && result.Success() {
		entry := cache.NewEntry(resp.StatusCode, resp.Header, body, c.config.CacheTTL)
		if err := c.cache.Set(ctx, key, entry); err != nil {
			c.logger.Warn().Err(err).Str("id", id).Msg("Failed to cache response")
		}
	}

	return result, nil
}

// classifyStatus maps an HTTP status to an error class, or "" for non-errors.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
