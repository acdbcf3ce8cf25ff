// Package pipeline runs one synchronization of the warehouse: every selected
// kind is fetched, reconciled and persisted in stage order, then deletions are
// propagated.
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/deletion"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/memo"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/reconcile"
	"github.com/Ramsey-B/fern/pkg/result"
	"github.com/Ramsey-B/fern/pkg/source"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/transform"
	"github.com/Ramsey-B/fern/pkg/watermark"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	fernctx "github.com/Ramsey-B/fern/pkg/context"
)

type Config struct {
	Roles                 transform.Roles
	FallbackClient        reconcile.ClientRef
	Watermarks            watermark.Config
	TimeEntryDeleteWindow time.Duration
	LegacyEntriesEnabled  bool
}

// Options select what a run does. No kinds means every kind.
type Options struct {
	Kinds       []models.EntityKind
	FullLoad    bool
	SkipDeletes bool
}

func (o Options) selected() []models.EntityKind {
	if len(o.Kinds) == 0 {
		return models.AllKinds
	}
	kinds := make([]models.EntityKind, 0, len(o.Kinds))
	for _, kind := range models.AllKinds {
		if slices.Contains(o.Kinds, kind) {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

type Pipeline struct {
	harvest    HarvestSource
	forecast   ForecastSource
	stores     Stores
	publisher  events.Publisher
	watermarks *watermark.Resolver
	deleter    *deletion.Engine
	cfg        Config
	logger     ectologger.Logger
	now        func() time.Time
}

type Option func(*Pipeline)

// WithPublisher enables warehouse change events.
func WithPublisher(publisher events.Publisher) Option {
	return func(p *Pipeline) {
		p.publisher = publisher
	}
}

func New(harvest HarvestSource, forecast ForecastSource, stores Stores, cfg Config, logger ectologger.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		harvest:    harvest,
		forecast:   forecast,
		stores:     stores,
		watermarks: watermark.NewResolver(stores.Watermarks, cfg.Watermarks, logger),
		deleter:    deletion.NewEngine(logger),
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run is the state of a single Run call.
type run struct {
	id        string
	opts      Options
	report    *result.Report
	cache     *memo.Cache
	emitter   *events.Emitter
	feeds     map[models.EntityKind][]int64 // complete Forecast id sets seen by the stages
	startedAt time.Time
}

// Run executes one synchronization. Per-record failures are counted in the
// report; the returned error is the fatal error that stopped the run, if any.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*result.Report, error) {
	started := p.now()
	r := &run{
		id:        uuid.New().String(),
		opts:      opts,
		feeds:     make(map[models.EntityKind][]int64),
		startedAt: started,
	}
	kinds := opts.selected()
	r.report = result.NewReport(r.id, kinds, opts.FullLoad, started)

	ctx = fernctx.SetRunID(ctx, r.id)
	ctx = fernctx.SetFullLoad(ctx, opts.FullLoad)
	ctx, span := tracing.StartSpan(ctx, "pipeline.Pipeline.Run",
		attribute.String("run_id", r.id),
		attribute.Bool("full_load", opts.FullLoad),
	)
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(fernctx.Fields(ctx))
	log.WithField("kinds", kinds).Infof("Starting run (full load: %t)", opts.FullLoad)

	if p.publisher != nil {
		r.emitter = events.NewEmitter(p.publisher, r.id, p.logger)
	}
	r.cache = memo.New(p.stores.Memo, p.logger)

	err := p.execute(ctx, r, kinds)
	if err != nil {
		tracing.RecordError(span, err)
		log.WithError(err).Error("Run aborted")
	}

	r.report.FinishedAt = p.now()
	r.report.Err = err
	p.complete(ctx, r)

	status := "success"
	if err != nil {
		status = "failed"
	}
	metrics.RecordRun(status, r.report.FinishedAt.Sub(started).Seconds())
	log.WithFields(map[string]any{
		"failures": r.report.Failures(),
		"duration": r.report.FinishedAt.Sub(started).String(),
	}).Infof("Run finished: %s", status)

	return r.report, err
}

func (p *Pipeline) execute(ctx context.Context, r *run, kinds []models.EntityKind) error {
	if err := r.cache.Refresh(ctx, models.KindPeople, models.KindClients, models.KindProjects, models.KindTasks); err != nil {
		return fmt.Errorf("memo cache: %w", err)
	}

	for _, kind := range kinds {
		if err := p.stage(ctx, r, kind); err != nil {
			return fmt.Errorf("%s stage: %w", kind, err)
		}
	}

	if r.opts.SkipDeletes {
		return nil
	}
	// Facts go before the dimensions they reference.
	for _, kind := range slices.Backward(kinds) {
		if err := p.syncDeletions(ctx, r, kind); err != nil {
			return fmt.Errorf("%s deletion sync: %w", kind, err)
		}
	}
	return nil
}

func (p *Pipeline) stage(ctx context.Context, r *run, kind models.EntityKind) error {
	ctx = fernctx.SetEntityKind(ctx, string(kind))
	ctx, span := tracing.StartSpan(ctx, "pipeline.Pipeline.stage", attribute.String("kind", string(kind)))
	defer span.End()

	started := time.Now()
	defer func() {
		metrics.RecordStage(string(kind), time.Since(started).Seconds())
	}()

	since, err := p.watermarks.Since(ctx, kind, r.opts.FullLoad)
	if err != nil {
		return fmt.Errorf("watermark: %w", err)
	}
	p.logger.WithContext(ctx).WithFields(fernctx.Fields(ctx)).Infof("Syncing %s updated since %s", kind, since.Format(time.RFC3339))

	switch kind {
	case models.KindPeople:
		err = p.syncPeople(ctx, r, since)
	case models.KindClients:
		err = p.syncClients(ctx, r, since)
	case models.KindTasks:
		err = p.syncTasks(ctx, r, since)
	case models.KindProjects:
		err = p.syncProjects(ctx, r, since)
	case models.KindTimeEntries:
		err = p.syncTimeEntries(ctx, r, since)
	case models.KindAssignments:
		err = p.syncAssignments(ctx, r, since)
	}
	r.emitter.Flush(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}

	tally := r.report.Tally(kind)
	span.SetAttributes(attribute.Int("records", tally.Total()), attribute.Int("failed", tally.Count(result.StatusFailed)))
	return nil
}

// record adds a successful outcome to the report and queues its event.
func (p *Pipeline) record(r *run, outcome result.Outcome, warehouseID int64, row any) {
	r.report.Add(outcome)
	metrics.RecordOutcome(string(outcome.Kind), string(outcome.Status))
	r.emitter.Record(outcome, warehouseID, row)
}

// fail counts a per-record failure, logs it with its natural identity and
// writes it to the run log.
func (p *Pipeline) fail(ctx context.Context, r *run, outcome result.Outcome) {
	r.report.Add(outcome)
	metrics.RecordOutcome(string(outcome.Kind), string(outcome.Status))

	p.logger.WithContext(ctx).WithFields(fernctx.Fields(ctx)).WithFields(map[string]any{
		"kind":   outcome.Kind,
		"source": outcome.Source,
		"key":    outcome.Key,
	}).WithError(outcome.Err).Warn(outcome.Description())

	entry := models.RunLog{
		Description: outcome.Description(),
		Datetime:    p.now().UTC(),
		Success:     false,
		Documents: database.NewJSONB(map[string]any{
			"run_id": r.id,
			"kind":   string(outcome.Kind),
			"source": string(outcome.Source),
			"key":    outcome.Key,
			"error":  errorText(outcome.Err),
		}),
	}
	if err := p.stores.RunLog.Write(ctx, entry); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to write run log entry")
	}
}

// persisted routes the result of a write: fatal errors stop the stage,
// anything else is a per-record failure.
func (p *Pipeline) persisted(ctx context.Context, r *run, kind models.EntityKind, src result.Source, key int64, status result.Status, warehouseID int64, row any, err error) error {
	if err != nil {
		if result.IsFatal(err) {
			return err
		}
		p.fail(ctx, r, result.FailedID(kind, src, key, err))
		return nil
	}
	p.record(r, result.Ok(kind, src, key, status), warehouseID, row)
	return nil
}

func (p *Pipeline) rejections(ctx context.Context, r *run, kind models.EntityKind, src result.Source, rejections []source.Rejection) {
	for _, rejection := range rejections {
		p.fail(ctx, r, result.Failed(kind, src, rejection.Key, rejection.Err))
	}
}

func (p *Pipeline) complete(ctx context.Context, r *run) {
	// The completion row is written even when the run was cancelled.
	ctx = context.WithoutCancel(ctx)

	documents := r.report.Documents()
	if traceID := tracing.GetTraceID(ctx); traceID != "" {
		documents["trace_id"] = traceID
	}
	entry := models.RunLog{
		Description: models.LoadCompletedDescription,
		Datetime:    r.report.FinishedAt.UTC(),
		Success:     r.report.Success(),
		Documents:   database.NewJSONB(documents),
	}
	if err := p.stores.RunLog.Write(ctx, entry); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to write load completed entry")
	}
	r.emitter.RunCompleted(ctx, r.report)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
