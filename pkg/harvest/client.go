package harvest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/expressions"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/source"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultBaseURL = "https://api.harvestapp.com/v2/"
	DefaultPerPage = 100

	nextPageExpression = "next_page"
)

type Config struct {
	BaseURL   string
	Auth      string
	AccountID string
	UserAgent string
	PerPage   int
}

// APIClient reads Harvest v2 collections page by page.
type APIClient struct {
	http      *httpclient.Client
	evaluator *expressions.Evaluator
	cfg       Config
	logger    ectologger.Logger
}

func NewClient(cfg Config, http *httpclient.Client, logger ectologger.Logger) *APIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = DefaultPerPage
	}
	return &APIClient{
		http:      http,
		evaluator: expressions.NewEvaluator(),
		cfg:       cfg,
		logger:    logger,
	}
}

// Users returns users updated at or after since. A zero since returns all.
func (c *APIClient) Users(ctx context.Context, since time.Time) (source.Batch[User], error) {
	return fetchAll[User](ctx, c, "users", since, nil)
}

func (c *APIClient) Clients(ctx context.Context, since time.Time) (source.Batch[Client], error) {
	return fetchAll[Client](ctx, c, "clients", since, nil)
}

func (c *APIClient) Projects(ctx context.Context, since time.Time) (source.Batch[Project], error) {
	return fetchAll[Project](ctx, c, "projects", since, nil)
}

func (c *APIClient) Tasks(ctx context.Context, since time.Time) (source.Batch[Task], error) {
	return fetchAll[Task](ctx, c, "tasks", since, nil)
}

// TimeEntries skips running timers; their hours are not final.
func (c *APIClient) TimeEntries(ctx context.Context, since time.Time) (source.Batch[TimeEntry], error) {
	return fetchAll[TimeEntry](ctx, c, "time_entries", since, url.Values{"is_running": []string{"false"}})
}

func (c *APIClient) headers() map[string]string {
	return map[string]string{
		"Authorization":      c.cfg.Auth,
		"Harvest-Account-ID": c.cfg.AccountID,
		"User-Agent":         c.cfg.UserAgent,
		"Accept":             "application/json",
	}
}

func fetchAll[T any](ctx context.Context, c *APIClient, resource string, since time.Time, extra url.Values) (source.Batch[T], error) {
	ctx, span := tracing.StartSpan(ctx, "harvest.APIClient.fetchAll", attribute.String("resource", resource))
	defer span.End()

	log := c.logger.WithContext(ctx).WithField("resource", resource)

	var batch source.Batch[T]
	page := int64(1)
	for {
		query := url.Values{}
		for key, values := range extra {
			query[key] = values
		}
		query.Set("per_page", strconv.Itoa(c.cfg.PerPage))
		query.Set("page", strconv.FormatInt(page, 10))
		if !since.IsZero() {
			query.Set("updated_since", since.UTC().Format(time.RFC3339))
		}

		endpoint, err := httpclient.BuildURL(c.cfg.BaseURL, resource, query)
		if err != nil {
			return batch, httperror.NewHTTPErrorf(http.StatusBadGateway, "failed to build harvest URL: %s", err.Error())
		}

		resp, err := c.http.Get(ctx, endpoint, c.headers())
		if err != nil {
			tracing.RecordError(span, err)
			return batch, err
		}

		doc, err := resp.Document()
		if err != nil {
			tracing.RecordError(span, err)
			return batch, err
		}

		records, err := c.evaluator.EvaluateRecords(resource, doc)
		if err != nil {
			return batch, httperror.NewHTTPErrorf(http.StatusBadGateway, "unexpected harvest %s page %d: %s", resource, page, err.Error())
		}
		batch.Append(source.Decode[T](records))

		next, ok, err := c.evaluator.EvaluateOptionalInt(nextPageExpression, doc)
		if err != nil {
			return batch, httperror.NewHTTPErrorf(http.StatusBadGateway, "unexpected harvest %s pagination: %s", resource, err.Error())
		}
		log.Debugf("Fetched harvest %s page %d (%d records)", resource, page, len(records))
		if !ok {
			break
		}
		if next <= page {
			return batch, httperror.NewHTTPErrorf(http.StatusBadGateway, "harvest %s pagination did not advance past page %d", resource, page)
		}
		page = next
	}

	span.SetAttributes(attribute.Int("records", len(batch.Records)), attribute.Int("rejections", len(batch.Rejections)))
	log.Infof("Fetched %d harvest %s (%d rejected)", len(batch.Records), resource, len(batch.Rejections))
	return batch, nil
}
