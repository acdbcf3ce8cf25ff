package assignment

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

const Table = "time_assignments"

// Repository persists the per-day rows of Forecast assignments, grouped by
// parent_id.
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

// Replace deletes every row of the parent and inserts rows in one
// transaction. On failure the previous rows are kept.
func (r *Repository) Replace(ctx context.Context, parentID int64, rows []models.Assignment) error {
	ctx, span := tracing.StartSpan(ctx, "assignment.Repository.Replace",
		attribute.Int64("parent_id", parentID),
		attribute.Int("rows", len(rows)),
	)
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return database.HTTPError(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	db := database.NewDeleteBuilder()
	db.DeleteFrom(Table).Where(db.Equal("parent_id", parentID))
	query, args := db.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		tracing.RecordError(span, err)
		return database.HTTPError(err, "failed to clear assignment rows")
	}

	if len(rows) > 0 {
		ib := database.NewInsertBuilder()
		ib.InsertInto(Table)
		ib.Cols("parent_id", "person_id", "project_id", "assign_date", "allocation", "updated_at")
		for _, row := range rows {
			ib.Values(parentID, row.PersonID, row.ProjectID, row.AssignDate, row.Allocation, row.UpdatedAt)
		}
		query, args = ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			tracing.RecordError(span, err)
			r.logger.WithContext(ctx).WithError(err).WithField("parent_id", parentID).Error("Failed to insert assignment rows")
			return database.HTTPError(err, "failed to insert assignment rows")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return database.HTTPError(err, "failed to commit assignment replace")
	}
	return nil
}

// ParentsSince lists parents whose latest assign_date is on or after since.
func (r *Repository) ParentsSince(ctx context.Context, since time.Time) ([]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "assignment.Repository.ParentsSince")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("parent_id").From(Table).GroupBy("parent_id").
		Having(sb.GreaterEqualThan("MAX(assign_date)", since)).
		OrderBy("parent_id")
	query, args := sb.Build()

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, database.HTTPError(err, "failed to list assignment parents")
	}
	return ids, nil
}

func (r *Repository) ByParent(ctx context.Context, parentID int64) ([]models.Assignment, error) {
	sb := database.NewSelectBuilder()
	sb.Select("id", "parent_id", "person_id", "project_id", "assign_date", "allocation", "updated_at").
		From(Table).Where(sb.Equal("parent_id", parentID)).OrderBy("assign_date")
	query, args := sb.Build()

	var rows []models.Assignment
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, database.HTTPError(err, "failed to read assignment rows")
	}
	return rows, nil
}

func (r *Repository) DeleteParent(ctx context.Context, parentID int64) error {
	ctx, span := tracing.StartSpan(ctx, "assignment.Repository.DeleteParent", attribute.Int64("parent_id", parentID))
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(Table).Where(db.Equal("parent_id", parentID))
	query, args := db.Build()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return database.HTTPError(err, "failed to delete assignment")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "assignment %d not found", parentID)
	}
	return nil
}
