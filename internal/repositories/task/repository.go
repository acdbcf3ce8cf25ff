package task

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/result"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const Table = "tasks"

// Repository persists tasks. Tasks keep their Harvest id as warehouse id.
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

func (r *Repository) Upsert(ctx context.Context, task models.Task) (result.Status, error) {
	ctx, span := tracing.StartSpan(ctx, "task.Repository.Upsert")
	defer span.End()

	sb := database.NewInsertBuilder()
	sb.InsertInto(Table)
	sb.Cols("id", "name", "is_active", "created_at", "updated_at")
	sb.Values(task.ID, task.Name, task.IsActive, task.CreatedAt, task.UpdatedAt)

	query, args := sb.Build()
	query += database.Conflict{
		Table:   Table,
		Columns: []string{"id"},
		Set: append(database.Overwrite("name", "is_active"),
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
		r.logger.WithContext(ctx).WithError(err).WithField("task_id", task.ID).Error("Failed to upsert task")
		return result.StatusFailed, database.HTTPError(err, "failed to upsert task")
	}
	if inserted {
		return result.StatusInserted, nil
	}
	return result.StatusUpdated, nil
}

func (r *Repository) IDs(ctx context.Context) ([]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "task.Repository.IDs")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id").From(Table).OrderBy("id")
	query, args := sb.Build()

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, database.HTTPError(err, "failed to list task ids")
	}
	return ids, nil
}

func (r *Repository) AllTasks(ctx context.Context) ([]models.Task, error) {
	ctx, span := tracing.StartSpan(ctx, "task.Repository.AllTasks")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "name", "is_active", "created_at", "updated_at").From(Table).OrderBy("id")
	query, args := sb.Build()

	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load tasks")
		return nil, database.HTTPError(err, "failed to load tasks")
	}
	return tasks, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := tracing.StartSpan(ctx, "task.Repository.Delete")
	defer span.End()

	sb := database.NewDeleteBuilder()
	sb.DeleteFrom(Table).Where(sb.Equal("id", id))
	query, args := sb.Build()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return database.HTTPError(err, "failed to delete task")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "task %d not found", id)
	}
	return nil
}
