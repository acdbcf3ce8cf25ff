package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultTimeout is the default request timeout
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum response body size (32MB). Forecast
	// answers whole collections in one response.
	MaxResponseSize = 32 * 1024 * 1024
)

// Limiter blocks until the next request may be sent.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Client wraps the HTTP client with logging, size limits, metrics and an
// optional request throttle
type Client struct {
	client  *http.Client
	logger  ectologger.Logger
	source  string
	limiter Limiter
}

// Config holds HTTP client configuration
type Config struct {
	// Source labels logs, spans and metrics ("harvest", "forecast")
	Source             string
	Timeout            time.Duration
	MaxIdleConns       int
	IdleConnTimeout    time.Duration
	DisableCompression bool
	DisableKeepAlives  bool
}

// DefaultConfig returns default HTTP client configuration
func DefaultConfig(source string) Config {
	return Config{
		Source:          source,
		Timeout:         DefaultTimeout,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}
}

type Option func(*Client)

// WithLimiter throttles every request through limiter.
func WithLimiter(limiter Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// NewClient creates a new HTTP client
func NewClient(cfg Config, logger ectologger.Logger, opts ...Option) *Client {
	transport := &http.Transport{
		Proxy:              http.ProxyFromEnvironment,
		MaxIdleConns:       cfg.MaxIdleConns,
		IdleConnTimeout:    cfg.IdleConnTimeout,
		DisableCompression: cfg.DisableCompression,
		DisableKeepAlives:  cfg.DisableKeepAlives,
	}

	c := &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		logger: logger,
		source: cfg.Source,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response represents an HTTP response
type Response struct {
	StatusCode    int
	Headers       http.Header
	Body          []byte
	ContentType   string
	ContentLength int64
	Duration      time.Duration
}

// Do executes an HTTP request and returns the response. Transport failures
// come back as 502 errors; the caller decides what a non-2xx status means.
func (c *Client) Do(ctx context.Context, req *http.Request) (*Response, error) {
	ctx, span := tracing.StartSpan(ctx, "httpclient.Client.Do",
		attribute.String("http.source", c.source),
		attribute.String("http.method", req.Method),
		attribute.String("http.path", req.URL.Path),
	)
	defer span.End()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			tracing.RecordError(span, err)
			return nil, err
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		tracing.RecordError(span, err)
		metrics.RecordHTTPRequest(c.source, "error", time.Since(start).Seconds())
		c.logger.WithContext(ctx).WithError(err).Errorf("HTTP request failed: %s %s", req.Method, req.URL.Redacted())
		return nil, httperror.NewHTTPErrorf(http.StatusBadGateway, "%s request failed: %s", c.source, err.Error())
	}
	defer resp.Body.Close()

	if resp.ContentLength > MaxResponseSize {
		return nil, httperror.NewHTTPErrorf(http.StatusBadGateway, "%s response too large: %d bytes (max %d)", c.source, resp.ContentLength, MaxResponseSize)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		tracing.RecordError(span, err)
		return nil, httperror.NewHTTPErrorf(http.StatusBadGateway, "failed to read %s response body: %s", c.source, err.Error())
	}
	if len(body) > MaxResponseSize {
		return nil, httperror.NewHTTPErrorf(http.StatusBadGateway, "%s response body too large: %d bytes (max %d)", c.source, len(body), MaxResponseSize)
	}

	duration := time.Since(start)
	metrics.RecordHTTPRequest(c.source, strconv.Itoa(resp.StatusCode), duration.Seconds())
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	c.logger.WithContext(ctx).Debugf("HTTP %s %s -> %d (%s)",
		req.Method, req.URL.Redacted(), resp.StatusCode, duration)

	return &Response{
		StatusCode:    resp.StatusCode,
		Headers:       resp.Header,
		Body:          body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: int64(len(body)),
		Duration:      duration,
	}, nil
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := resp.Check(c.source); err != nil {
		c.logger.WithContext(ctx).WithError(err).Errorf("HTTP GET %s returned %d", req.URL.Redacted(), resp.StatusCode)
		return nil, err
	}
	return resp, nil
}
