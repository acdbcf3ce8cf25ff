package runlog

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const Table = "run_log"

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

func (r *Repository) Write(ctx context.Context, entry models.RunLog) error {
	ctx, span := tracing.StartSpan(ctx, "runlog.Repository.Write")
	defer span.End()

	sb := database.NewInsertBuilder()
	sb.InsertInto(Table)
	sb.Cols("event_description", "event_datetime", "event_success", "event_documents")
	sb.Values(entry.Description, entry.Datetime, entry.Success, entry.Documents)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("description", entry.Description).Error("Failed to write run log")
		return database.HTTPError(err, "failed to write run log")
	}
	return nil
}

// Recent returns the newest entries first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]models.RunLog, error) {
	ctx, span := tracing.StartSpan(ctx, "runlog.Repository.Recent")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "event_description", "event_datetime", "event_success", "event_documents").
		From(Table).OrderBy("id").Desc().Limit(limit)
	query, args := sb.Build()

	var entries []models.RunLog
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, database.HTTPError(err, "failed to read run log")
	}
	return entries, nil
}
