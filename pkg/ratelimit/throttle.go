package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Throttle holds outbound requests to a source under a shared request budget
// (Harvest allows 100 requests per 15 seconds).
type Throttle struct {
	limiter *redis.RateLimiter
	logger  ectologger.Logger
	name    string
	limit   int64
	window  time.Duration
	maxWait time.Duration
}

type ThrottleConfig struct {
	Name    string
	Limit   int
	Window  time.Duration
	MaxWait time.Duration
}

func NewThrottle(client *redis.Client, cfg ThrottleConfig, logger ectologger.Logger) *Throttle {
	return &Throttle{
		limiter: redis.NewRateLimiter(client, "fern:ratelimit:"),
		logger:  logger,
		name:    cfg.Name,
		limit:   int64(cfg.Limit),
		window:  cfg.Window,
		maxWait: cfg.MaxWait,
	}
}

// Wait blocks until the budget has room. Redis failures fail open.
func (t *Throttle) Wait(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "ratelimit.Throttle.Wait")
	defer span.End()

	start := time.Now()
	deadline := start.Add(t.maxWait)

	for {
		result, err := t.limiter.Allow(ctx, t.name, t.limit, t.window)
		if err != nil {
			t.logger.WithContext(ctx).WithError(err).Errorf("Rate limit check failed for %s", t.name)
			return nil
		}

		if result.Allowed {
			if waited := time.Since(start); waited > 0 {
				metrics.RecordRateLimitWait(t.name, waited.Seconds())
			}
			return nil
		}

		retryIn := result.RetryIn
		if retryIn <= 0 {
			retryIn = 100 * time.Millisecond
		}
		if t.maxWait > 0 && time.Now().Add(retryIn).After(deadline) {
			err := fmt.Errorf("rate limit %s would exceed max wait time of %v", t.name, t.maxWait)
			tracing.RecordError(span, err)
			return err
		}

		t.logger.WithContext(ctx).Infof("Rate limited by %s, waiting %v", t.name, retryIn)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryIn):
		}
	}
}

// Backoff blocks the budget for d, typically from a Retry-After header.
func (t *Throttle) Backoff(ctx context.Context, d time.Duration) error {
	return t.limiter.BlockFor(ctx, t.name, d)
}
