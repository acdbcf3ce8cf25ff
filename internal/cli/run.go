package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/repositories"
	"github.com/Ramsey-B/fern/pkg/forecast"
	"github.com/Ramsey-B/fern/pkg/harvest"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/pipeline"
	"github.com/Ramsey-B/fern/pkg/ratelimit"
	"github.com/Ramsey-B/fern/pkg/reconcile"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/result"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
	"github.com/Ramsey-B/fern/pkg/transform"
	"github.com/Ramsey-B/fern/pkg/watermark"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// environment is the loaded config plus the logger built from it.
type environment struct {
	cfg    *config.Config
	logger ectologger.Logger
	sync   func()
}

func loadEnvironment(opts *RootOptions) (*environment, error) {
	cfg, err := config.Load(opts.EnvFiles...)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, sync, err := logging.New(level, cfg.PrettyLogs)
	if err != nil {
		return nil, err
	}

	return &environment{cfg: cfg, logger: logger, sync: sync}, nil
}

func runSync(cmd *cobra.Command, opts *RootOptions, selection pipeline.Options) error {
	env, err := loadEnvironment(opts)
	if err != nil {
		return err
	}
	defer env.sync()
	cfg, logger := env.cfg, env.logger

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	shutdownTracing, err := setupTracing(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer done()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Failed to flush traces")
		}
	}()

	warehouse := &warehouseDependency{cfg: cfg, logger: logger}
	redisDep := &redisDependency{cfg: cfg, logger: logger}
	kafkaDep := &kafkaDependency{cfg: cfg, logger: logger}

	app := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	app.AddDependency(warehouse)
	if cfg.RedisEnabled {
		app.AddDependency(redisDep)
	}
	if cfg.KafkaEnabled {
		app.AddDependency(kafkaDep)
	}

	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := app.Stop(context.WithoutCancel(ctx)); err != nil {
			logger.WithError(err).Warn("Failed to stop dependencies")
		}
	}()

	p := newPipeline(cfg, logger, repositories.New(warehouse.db, logger), redisDep.client, kafkaDep.producer)

	var report *result.Report
	run := func(ctx context.Context) error {
		var runErr error
		report, runErr = p.Run(ctx, selection)
		return runErr
	}

	if redisDep.client != nil {
		err = redis.NewLocker(redisDep.client, "").WithLock(ctx, cfg.RunLockKey, cfg.RunLockTTL, run)
		if errors.Is(err, redis.ErrLockNotAcquired) {
			err = fmt.Errorf("another run holds %s: %w", cfg.RunLockKey, err)
		}
	} else {
		err = run(ctx)
	}

	if report != nil {
		if renderErr := report.Render(cmd.OutOrStdout()); renderErr != nil {
			logger.WithError(renderErr).Warn("Failed to print run summary")
		}
	}

	pushCtx, done := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer done()
	if pushErr := metrics.Push(pushCtx, cfg.MetricsPushURL, cfg.MetricsJobName, map[string]string{"instance": cfg.AppName}); pushErr != nil {
		logger.WithError(pushErr).Warn("Failed to push metrics")
	}

	return err
}

func newPipeline(cfg *config.Config, logger ectologger.Logger, repos *repositories.Repositories, redisClient *redis.Client, producer *kafka.Producer) *pipeline.Pipeline {
	harvestHTTP := httpclient.DefaultConfig("harvest")
	harvestHTTP.Timeout = cfg.HTTPTimeout
	var harvestOpts []httpclient.Option
	if redisClient != nil {
		harvestOpts = append(harvestOpts, httpclient.WithLimiter(ratelimit.NewThrottle(redisClient, ratelimit.ThrottleConfig{
			Name:    "harvest",
			Limit:   cfg.HarvestRateLimit,
			Window:  cfg.HarvestRateWindow,
			MaxWait: cfg.HarvestThrottleWait,
		}, logger)))
	}

	forecastHTTP := httpclient.DefaultConfig("forecast")
	forecastHTTP.Timeout = cfg.HTTPTimeout

	harvestClient := harvest.NewClient(harvest.Config{
		BaseURL:   cfg.HarvestBaseURL,
		Auth:      cfg.HarvestAuth,
		AccountID: cfg.HarvestAccountID,
		UserAgent: cfg.UserAgent,
		PerPage:   cfg.HarvestPerPage,
	}, httpclient.NewClient(harvestHTTP, logger, harvestOpts...), logger)

	// Forecast accepts the Harvest personal access token.
	forecastClient := forecast.NewClient(forecast.Config{
		BaseURL:   cfg.ForecastBaseURL,
		Auth:      cfg.HarvestAuth,
		AccountID: cfg.ForecastAccountID,
		UserAgent: cfg.UserAgent,
		Lookback:  cfg.AssignmentLookback,
	}, httpclient.NewClient(forecastHTTP, logger), logger)

	var opts []pipeline.Option
	if producer != nil {
		opts = append(opts, pipeline.WithPublisher(producer))
	}

	return pipeline.New(harvestClient, forecastClient, repos.Stores(), pipeline.Config{
		Roles: transform.Roles{
			Priority:    cfg.PrimaryRoles,
			Departments: cfg.DepartmentRoles,
		},
		FallbackClient: reconcile.ClientRef{ID: cfg.FallbackClientID, Name: cfg.FallbackClientName},
		Watermarks: watermark.Config{
			FullLoadEpoch: cfg.FullLoadEpoch,
			FromDate:      cfg.FromDate,
		},
		TimeEntryDeleteWindow: cfg.TimeEntryDeleteWindow,
		LegacyEntriesEnabled:  cfg.LegacyEntriesEnabled,
	}, logger, opts...)
}

// setupTracing exports spans over OTLP when an endpoint is configured, or to
// the debug log at debug level. The returned func flushes the provider.
func setupTracing(ctx context.Context, cfg *config.Config, logger ectologger.Logger) (func(context.Context) error, error) {
	if cfg.OTLPEndpoint == "" {
		if cfg.LogLevel != "debug" {
			return func(context.Context) error { return nil }, nil
		}
		return tracing.Setup(cfg.AppName, &exporters.ConsoleExporter{Logger: logger}), nil
	}

	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.OTLPEndpoint,
		Protocol: cfg.OTLPProtocol,
		Insecure: cfg.OTLPInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	logger.Infof("Exporting traces to %s over %s", cfg.OTLPEndpoint, cfg.OTLPProtocol)
	return tracing.Setup(cfg.AppName, exporter), nil
}

// signalContext cancels on SIGINT or SIGTERM. A cancelled run still writes
// its completion row.
func signalContext(parent context.Context, logger ectologger.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Warnf("Received %s, cancelling run", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
