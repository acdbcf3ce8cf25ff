package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Ramsey-B/fern/pkg/expand"
	"github.com/Ramsey-B/fern/pkg/forecast"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/result"
	"github.com/Ramsey-B/fern/pkg/source"
	"github.com/Ramsey-B/fern/pkg/transform"
)

func (p *Pipeline) syncTasks(ctx context.Context, r *run, since time.Time) error {
	batch, err := p.harvest.Tasks(ctx, since)
	if err != nil {
		return err
	}
	p.rejections(ctx, r, models.KindTasks, result.SourceHarvest, batch.Rejections)

	for _, task := range batch.Records {
		row := transform.Task(task)
		status, err := p.stores.Tasks.Upsert(ctx, row)
		if err := p.persisted(ctx, r, models.KindTasks, result.SourceHarvest, task.ID, status, row.ID, row, err); err != nil {
			return err
		}
	}
	return r.cache.Refresh(ctx, models.KindTasks)
}

func (p *Pipeline) syncTimeEntries(ctx context.Context, r *run, since time.Time) error {
	batch, err := p.harvest.TimeEntries(ctx, since)
	if err != nil {
		return err
	}
	p.rejections(ctx, r, models.KindTimeEntries, result.SourceHarvest, batch.Rejections)

	for _, entry := range batch.Records {
		row, err := transform.TimeEntry(entry, r.cache)
		if err != nil {
			p.fail(ctx, r, result.FailedID(models.KindTimeEntries, result.SourceHarvest, entry.ID, err))
			continue
		}
		status, err := p.stores.TimeEntries.Upsert(ctx, row)
		if err := p.persisted(ctx, r, models.KindTimeEntries, result.SourceHarvest, entry.ID, status, row.ID, row, err); err != nil {
			return err
		}
	}

	if !p.cfg.LegacyEntriesEnabled {
		return nil
	}
	rows, err := p.stores.TimeEntries.RebuildLegacy(ctx)
	if err != nil {
		return fmt.Errorf("rebuild harvest_entries: %w", err)
	}
	p.logger.WithContext(ctx).WithField("rows", rows).Info("Rebuilt harvest_entries")
	return nil
}

// syncAssignments re-expands every Forecast assignment updated since the
// watermark and replaces all of its per-day rows.
func (p *Pipeline) syncAssignments(ctx context.Context, r *run, since time.Time) error {
	batch, err := p.forecast.Assignments(ctx)
	if err != nil {
		return err
	}
	r.feeds[models.KindAssignments] = sourceIDs(batch)
	p.rejections(ctx, r, models.KindAssignments, result.SourceForecast, batch.Rejections)

	for _, assignment := range source.UpdatedSince(batch.Records, since, forecast.Assignment.Updated) {
		rows, err := p.expandAssignment(r, assignment)
		if err != nil {
			p.fail(ctx, r, result.FailedID(models.KindAssignments, result.SourceForecast, assignment.ID, err))
			continue
		}

		status := result.StatusUpdated
		if len(rows) == 0 {
			status = result.StatusSkipped
		}
		err = p.stores.Assignments.Replace(ctx, assignment.ID, rows)
		if err := p.persisted(ctx, r, models.KindAssignments, result.SourceForecast, assignment.ID, status, assignment.ID, rows, err); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) expandAssignment(r *run, a forecast.Assignment) ([]models.Assignment, error) {
	project, ok := r.cache.ProjectByForecastID(a.ProjectID)
	if !ok {
		return nil, fmt.Errorf("%w: forecast project %d", transform.ErrReferenceUnresolved, a.ProjectID)
	}

	var personID *int64
	if a.PersonID != nil {
		person, ok := r.cache.PersonByForecastID(*a.PersonID)
		if !ok {
			return nil, fmt.Errorf("%w: forecast person %d", transform.ErrReferenceUnresolved, *a.PersonID)
		}
		personID = &person.ID
	}

	return expand.Expand(expand.Input{
		ParentID:   a.ID,
		PersonID:   personID,
		ProjectID:  project.ID,
		Start:      a.StartDate.Time,
		End:        a.EndDate.Time,
		Allocation: a.Allocation,
		UpdatedAt:  a.UpdatedAt,
	})
}
