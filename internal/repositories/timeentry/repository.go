package timeentry

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/result"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

const (
	Table       = "time_entries"
	LegacyTable = "harvest_entries"
)

var dataColumns = []string{
	"spent_date", "hours", "billable", "billable_rate", "entry_amount",
	"person_id", "person_name", "project_id", "project_name", "project_code",
	"client_id", "client_name", "task_id", "task_name",
}

// rebuildLegacy maps warehouse ids back to Harvest ids for harvest_entries.
const rebuildLegacy = `INSERT INTO harvest_entries (
    entry_id, hours, spent_date, billable, billable_rate, entry_amount,
    user_id, user_name, harvest_project_id, harvest_project_name, harvest_project_code,
    client_id, client_name, task_id, task_name, created_at, updated_at
)
SELECT te.id, te.hours, te.spent_date, te.billable, te.billable_rate, te.entry_amount,
    p.harvest_id, te.person_name, pr.harvest_id, te.project_name, te.project_code,
    c.harvest_id, te.client_name, te.task_id, te.task_name, te.created_at, te.updated_at
FROM time_entries te
LEFT JOIN people p ON p.id = te.person_id
LEFT JOIN projects pr ON pr.id = te.project_id
LEFT JOIN clients c ON c.id = te.client_id`

type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) Upsert(ctx context.Context, entry models.TimeEntry) (result.Status, error) {
	ctx, span := tracing.StartSpan(ctx, "timeentry.Repository.Upsert", attribute.Int64("id", entry.ID))
	defer span.End()

	sb := database.NewInsertBuilder()
	sb.InsertInto(Table)
	sb.Cols(append(append([]string{"id"}, dataColumns...), "created_at", "updated_at")...)
	sb.Values(
		entry.ID, entry.SpentDate, entry.Hours, entry.Billable, entry.BillableRate, entry.EntryAmount,
		entry.PersonID, entry.PersonName, entry.ProjectID, entry.ProjectName, entry.ProjectCode,
		entry.ClientID, entry.ClientName, entry.TaskID, entry.TaskName, entry.CreatedAt, entry.UpdatedAt,
	)

	query, args := sb.Build()
	query += database.Conflict{
		Table:   Table,
		Columns: []string{"id"},
		Set: append(database.Overwrite(dataColumns...),
			database.Set("created_at", database.Preserve(Table, "created_at")),
			database.Set("updated_at", database.Greatest(Table, "updated_at")),
		),
		Where: database.NotOlder(Table, "updated_at"),
	}.Clause()
	query += " RETURNING (xmax = 0) AS inserted"

	var inserted bool
	if err := r.db.GetContext(ctx, &inserted, query, args...); err != nil {
		if database.IsNoRows(err) {
			return result.StatusUnchanged, nil
		}
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).WithField("time_entry_id", entry.ID).Error("Failed to upsert time entry")
		return result.StatusFailed, database.HTTPError(err, "failed to upsert time entry")
	}
	if inserted {
		return result.StatusInserted, nil
	}
	return result.StatusUpdated, nil
}

// IDsUpdatedSince lists entries updated at or after since, the deletion
// candidates of a run.
func (r *Repository) IDsUpdatedSince(ctx context.Context, since time.Time) ([]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "timeentry.Repository.IDsUpdatedSince")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id").From(Table).Where(sb.GreaterEqualThan("updated_at", since)).OrderBy("id")
	query, args := sb.Build()

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, database.HTTPError(err, "failed to list time entry ids")
	}
	return ids, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := tracing.StartSpan(ctx, "timeentry.Repository.Delete")
	defer span.End()

	sb := database.NewDeleteBuilder()
	sb.DeleteFrom(Table).Where(sb.Equal("id", id))
	query, args := sb.Build()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return database.HTTPError(err, "failed to delete time entry")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "time entry %d not found", id)
	}
	return nil
}

// RebuildLegacy replaces the contents of harvest_entries with the current
// time entries in one transaction.
func (r *Repository) RebuildLegacy(ctx context.Context) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "timeentry.Repository.RebuildLegacy")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return 0, database.HTTPError(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.ExecContext(ctx, "TRUNCATE "+LegacyTable); err != nil {
		return 0, database.HTTPError(err, "failed to truncate "+LegacyTable)
	}
	res, err := tx.ExecContext(ctx, rebuildLegacy)
	if err != nil {
		tracing.RecordError(span, err)
		r.logger.WithContext(ctx).WithError(err).Error("Failed to rebuild legacy entries")
		return 0, database.HTTPError(err, "failed to rebuild "+LegacyTable)
	}
	rows, _ := res.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return 0, database.HTTPError(err, "failed to commit "+LegacyTable+" rebuild")
	}
	return rows, nil
}

// Legacy reads harvest_entries back, ordered by entry id.
func (r *Repository) Legacy(ctx context.Context) ([]models.LegacyEntry, error) {
	sb := database.NewSelectBuilder()
	sb.Select("*").From(LegacyTable).OrderBy("entry_id")
	query, args := sb.Build()

	var entries []models.LegacyEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, database.HTTPError(err, "failed to read "+LegacyTable)
	}
	return entries, nil
}
