package forecast

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/expressions"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/source"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultBaseURL  = "https://api.forecastapp.com/"
	DefaultLookback = 30 * 24 * time.Hour
)

type Config struct {
	BaseURL   string
	Auth      string
	AccountID string
	UserAgent string
	// Lookback sets the assignment window: assignments are requested from the
	// first day of the month containing now - Lookback.
	Lookback time.Duration
}

// APIClient reads Forecast collections. Each collection is one response.
type APIClient struct {
	http      *httpclient.Client
	evaluator *expressions.Evaluator
	cfg       Config
	logger    ectologger.Logger
	now       func() time.Time
}

func NewClient(cfg Config, http *httpclient.Client, logger ectologger.Logger) *APIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	return &APIClient{
		http:      http,
		evaluator: expressions.NewEvaluator(),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (c *APIClient) People(ctx context.Context) (source.Batch[Person], error) {
	return fetch[Person](ctx, c, "people", nil)
}

func (c *APIClient) Clients(ctx context.Context) (source.Batch[Client], error) {
	return fetch[Client](ctx, c, "clients", nil)
}

func (c *APIClient) Projects(ctx context.Context) (source.Batch[Project], error) {
	return fetch[Project](ctx, c, "projects", nil)
}

// Assignments returns assignments from WindowStart onward.
func (c *APIClient) Assignments(ctx context.Context) (source.Batch[Assignment], error) {
	query := url.Values{"start_date": []string{c.WindowStart().Format(models.DateLayout)}}
	return fetch[Assignment](ctx, c, "assignments", query)
}

// WindowStart is the first day of the month containing now - Lookback.
func (c *APIClient) WindowStart() time.Time {
	back := c.now().UTC().Add(-c.cfg.Lookback)
	return time.Date(back.Year(), back.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func (c *APIClient) headers() map[string]string {
	return map[string]string{
		"Authorization":       c.cfg.Auth,
		"Forecast-Account-ID": c.cfg.AccountID,
		"User-Agent":          c.cfg.UserAgent,
		"Accept":              "application/json",
	}
}

func fetch[T any](ctx context.Context, c *APIClient, resource string, query url.Values) (source.Batch[T], error) {
	ctx, span := tracing.StartSpan(ctx, "forecast.APIClient.fetch", attribute.String("resource", resource))
	defer span.End()

	endpoint, err := httpclient.BuildURL(c.cfg.BaseURL, resource, query)
	if err != nil {
		return source.Batch[T]{}, httperror.NewHTTPErrorf(http.StatusBadGateway, "failed to build forecast URL: %s", err.Error())
	}

	resp, err := c.http.Get(ctx, endpoint, c.headers())
	if err != nil {
		tracing.RecordError(span, err)
		return source.Batch[T]{}, err
	}

	doc, err := resp.Document()
	if err != nil {
		tracing.RecordError(span, err)
		return source.Batch[T]{}, err
	}

	records, err := c.evaluator.EvaluateRecords(resource, doc)
	if err != nil {
		return source.Batch[T]{}, httperror.NewHTTPErrorf(http.StatusBadGateway, "unexpected forecast %s response: %s", resource, err.Error())
	}

	batch := source.Decode[T](records)
	span.SetAttributes(attribute.Int("records", len(batch.Records)), attribute.Int("rejections", len(batch.Rejections)))
	c.logger.WithContext(ctx).WithField("resource", resource).
		Infof("Fetched %d forecast %s (%d rejected)", len(batch.Records), resource, len(batch.Rejections))
	return batch, nil
}
