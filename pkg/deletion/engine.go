// Package deletion propagates source-side deletions into the warehouse.
package deletion

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Summary counts one purge. Failed ids are kept for the run log.
type Summary struct {
	Kind       models.EntityKind
	Candidates int
	Purged     int
	Detached   int
	Failed     int
	Failures   map[int64]error
}

func (s *Summary) fail(id int64, err error) {
	s.Failed++
	if s.Failures == nil {
		s.Failures = make(map[int64]error)
	}
	s.Failures[id] = err
}

// Engine executes deletion plans one row at a time. A failing row is logged
// and counted; it never stops the batch.
type Engine struct {
	logger ectologger.Logger
}

func NewEngine(logger ectologger.Logger) *Engine {
	return &Engine{logger: logger}
}

// Purge physically deletes each candidate with deleteFn.
func (e *Engine) Purge(ctx context.Context, kind models.EntityKind, ids []int64, deleteFn func(ctx context.Context, id int64) error) Summary {
	ctx, span := tracing.StartSpan(ctx, "deletion.Engine.Purge", attribute.String("kind", string(kind)))
	defer span.End()

	summary := Summary{Kind: kind, Candidates: len(ids)}
	log := e.logger.WithContext(ctx).WithField("kind", kind)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			summary.fail(id, err)
			continue
		}
		if err := deleteFn(ctx, id); err != nil {
			log.WithError(err).WithField("id", id).Warn("Failed to delete stale row")
			summary.fail(id, err)
			continue
		}
		summary.Purged++
	}

	span.SetAttributes(attribute.Int("purged", summary.Purged), attribute.Int("failed", summary.Failed))
	metrics.RecordDeletion(string(kind), "deleted", summary.Purged)
	metrics.RecordDeletion(string(kind), "failed", summary.Failed)
	if summary.Candidates > 0 {
		log.Infof("Purged %d of %d stale %s (%d failed)", summary.Purged, summary.Candidates, kind, summary.Failed)
	}
	return summary
}

// Apply runs a dual-identity plan: detaches first, then deletes.
func (e *Engine) Apply(ctx context.Context, kind models.EntityKind, plan Plan, detachFn func(ctx context.Context, d Detach) error, deleteFn func(ctx context.Context, id int64) error) Summary {
	ctx, span := tracing.StartSpan(ctx, "deletion.Engine.Apply", attribute.String("kind", string(kind)))
	defer span.End()

	log := e.logger.WithContext(ctx).WithField("kind", kind)

	detached := 0
	var detachFailures []Detach
	var detachErrs []error
	for _, d := range plan.Detaches {
		if err := detachFn(ctx, d); err != nil {
			log.WithError(err).WithFields(map[string]any{"id": d.ID, "side": d.Side}).Warn("Failed to detach source id")
			detachFailures = append(detachFailures, d)
			detachErrs = append(detachErrs, err)
			continue
		}
		detached++
	}
	metrics.RecordDeletion(string(kind), "detached", detached)

	summary := e.Purge(ctx, kind, plan.Deletes, deleteFn)
	summary.Candidates += len(plan.Detaches)
	summary.Detached = detached
	for i, d := range detachFailures {
		summary.fail(d.ID, detachErrs[i])
	}
	return summary
}
