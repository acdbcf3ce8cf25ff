package watermark

import (
	"context"
	"database/sql"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Repository reads differential watermarks from the warehouse tables.
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

func (r *Repository) MaxUpdatedAt(ctx context.Context, kind models.EntityKind) (time.Time, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "watermark.Repository.MaxUpdatedAt", attribute.String("kind", string(kind)))
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("MAX(updated_at)").From(kind.Table())
	query, args := sb.Build()

	var latest sql.NullTime
	if err := r.db.GetContext(ctx, &latest, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("kind", kind).Error("Failed to read watermark")
		return time.Time{}, false, database.HTTPError(err, "failed to read "+string(kind)+" watermark")
	}
	return latest.Time, latest.Valid, nil
}
