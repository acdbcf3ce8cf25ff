package pipeline

import (
	"context"
	"time"

	"github.com/Ramsey-B/fern/pkg/deletion"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/result"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"

	fernctx "github.com/Ramsey-B/fern/pkg/context"
)

// syncDeletions removes warehouse rows whose source records are gone. Source
// id sets always include rejected records.
func (p *Pipeline) syncDeletions(ctx context.Context, r *run, kind models.EntityKind) error {
	ctx = fernctx.SetEntityKind(ctx, string(kind))
	ctx, span := tracing.StartSpan(ctx, "pipeline.Pipeline.syncDeletions", attribute.String("kind", string(kind)))
	defer span.End()

	var err error
	switch kind {
	case models.KindPeople:
		err = p.deleteDimension(ctx, r, kind, p.stores.People, func(ctx context.Context) ([]int64, error) {
			batch, err := p.harvest.Users(ctx, time.Time{})
			return sourceIDs(batch), err
		})
	case models.KindClients:
		err = p.deleteDimension(ctx, r, kind, p.stores.Clients, func(ctx context.Context) ([]int64, error) {
			batch, err := p.harvest.Clients(ctx, time.Time{})
			return sourceIDs(batch), err
		})
	case models.KindProjects:
		err = p.deleteDimension(ctx, r, kind, p.stores.Projects, func(ctx context.Context) ([]int64, error) {
			batch, err := p.harvest.Projects(ctx, time.Time{})
			return sourceIDs(batch), err
		})
	case models.KindTasks:
		err = p.deleteTasks(ctx, r)
	case models.KindTimeEntries:
		err = p.deleteTimeEntries(ctx, r)
	case models.KindAssignments:
		err = p.deleteAssignments(ctx, r)
	}
	r.emitter.Flush(ctx)
	if err != nil {
		tracing.RecordError(span, err)
	}
	return err
}

type identityStore interface {
	Identities(ctx context.Context) ([]deletion.Identity, error)
	Detach(ctx context.Context, d deletion.Detach) error
	Delete(ctx context.Context, id int64) error
}

func (p *Pipeline) deleteDimension(ctx context.Context, r *run, kind models.EntityKind, store identityStore, fetchHarvest func(ctx context.Context) ([]int64, error)) error {
	harvestSet, err := fetchHarvest(ctx)
	if err != nil {
		return err
	}
	forecastSet, ok := r.feeds[kind]
	if !ok {
		return nil
	}

	identities, err := store.Identities(ctx)
	if err != nil {
		return err
	}
	plan := deletion.StaleIdentities(identities, harvestSet, forecastSet)
	if plan.Empty() {
		return nil
	}

	summary := p.deleter.Apply(ctx, kind, plan, store.Detach, store.Delete)
	var fatal error
	for _, d := range plan.Detaches {
		if err, failed := summary.Failures[d.ID]; failed {
			if result.IsFatal(err) && fatal == nil {
				fatal = err
			}
			p.fail(ctx, r, result.FailedID(kind, result.SourceWarehouse, d.ID, err))
			continue
		}
		p.record(r, result.Ok(kind, result.SourceWarehouse, d.ID, result.StatusDetached), d.ID, d)
	}
	if err := p.deleted(ctx, r, kind, plan.Deletes, summary); err != nil {
		return err
	}
	if fatal != nil {
		return fatal
	}
	return r.cache.Refresh(ctx, kind)
}

func (p *Pipeline) deleteTasks(ctx context.Context, r *run) error {
	batch, err := p.harvest.Tasks(ctx, time.Time{})
	if err != nil {
		return err
	}
	warehouse, err := p.stores.Tasks.IDs(ctx)
	if err != nil {
		return err
	}
	stale := deletion.StaleIDs(warehouse, sourceIDs(batch))
	return p.deleted(ctx, r, models.KindTasks, stale, p.deleter.Purge(ctx, models.KindTasks, stale, p.stores.Tasks.Delete))
}

// deleteTimeEntries only considers entries updated inside the delete window;
// Harvest is asked for the same window.
func (p *Pipeline) deleteTimeEntries(ctx context.Context, r *run) error {
	cutoff := p.now().Add(-p.cfg.TimeEntryDeleteWindow)

	batch, err := p.harvest.TimeEntries(ctx, cutoff)
	if err != nil {
		return err
	}
	warehouse, err := p.stores.TimeEntries.IDsUpdatedSince(ctx, cutoff)
	if err != nil {
		return err
	}
	stale := deletion.StaleIDs(warehouse, sourceIDs(batch))
	summary := p.deleter.Purge(ctx, models.KindTimeEntries, stale, p.stores.TimeEntries.Delete)
	if err := p.deleted(ctx, r, models.KindTimeEntries, stale, summary); err != nil {
		return err
	}
	if summary.Purged > 0 && p.cfg.LegacyEntriesEnabled {
		if _, err := p.stores.TimeEntries.RebuildLegacy(ctx); err != nil {
			return err
		}
	}
	return nil
}

// deleteAssignments removes parents inside the Forecast window that are no
// longer in the feed.
func (p *Pipeline) deleteAssignments(ctx context.Context, r *run) error {
	feed, ok := r.feeds[models.KindAssignments]
	if !ok {
		return nil
	}
	parents, err := p.stores.Assignments.ParentsSince(ctx, p.forecast.WindowStart())
	if err != nil {
		return err
	}
	stale := deletion.StaleIDs(parents, feed)
	return p.deleted(ctx, r, models.KindAssignments, stale, p.deleter.Purge(ctx, models.KindAssignments, stale, p.stores.Assignments.DeleteParent))
}

// deleted turns a purge summary into outcomes. A fatal failure stops the run
// once the batch is done.
func (p *Pipeline) deleted(ctx context.Context, r *run, kind models.EntityKind, ids []int64, summary deletion.Summary) error {
	var fatal error
	for _, id := range ids {
		err, failed := summary.Failures[id]
		if !failed {
			p.record(r, result.Ok(kind, result.SourceWarehouse, id, result.StatusDeleted), id, nil)
			continue
		}
		if result.IsFatal(err) && fatal == nil {
			fatal = err
		}
		p.fail(ctx, r, result.FailedID(kind, result.SourceWarehouse, id, err))
	}
	return fatal
}
