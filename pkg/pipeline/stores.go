package pipeline

import (
	"context"
	"time"

	"github.com/Ramsey-B/fern/pkg/deletion"
	"github.com/Ramsey-B/fern/pkg/forecast"
	"github.com/Ramsey-B/fern/pkg/harvest"
	"github.com/Ramsey-B/fern/pkg/memo"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/result"
	"github.com/Ramsey-B/fern/pkg/source"
	"github.com/Ramsey-B/fern/pkg/watermark"
)

type HarvestSource interface {
	Users(ctx context.Context, since time.Time) (source.Batch[harvest.User], error)
	Clients(ctx context.Context, since time.Time) (source.Batch[harvest.Client], error)
	Projects(ctx context.Context, since time.Time) (source.Batch[harvest.Project], error)
	Tasks(ctx context.Context, since time.Time) (source.Batch[harvest.Task], error)
	TimeEntries(ctx context.Context, since time.Time) (source.Batch[harvest.TimeEntry], error)
}

type ForecastSource interface {
	People(ctx context.Context) (source.Batch[forecast.Person], error)
	Clients(ctx context.Context) (source.Batch[forecast.Client], error)
	Projects(ctx context.Context) (source.Batch[forecast.Project], error)
	Assignments(ctx context.Context) (source.Batch[forecast.Assignment], error)
	WindowStart() time.Time
}

// DimensionStore persists a dual-identity kind. Upserts return the warehouse
// id of the row written.
type DimensionStore[T any] interface {
	// UpsertHarvest writes a row keyed by harvest_id, adopting or merging a
	// Forecast-only row that holds the same forecast_id.
	UpsertHarvest(ctx context.Context, row T) (int64, result.Status, error)
	// UpsertForecast writes a Forecast-only row keyed by forecast_id.
	UpsertForecast(ctx context.Context, row T) (int64, result.Status, error)
	// Link sets forecast_id on an existing row.
	Link(ctx context.Context, warehouseID, forecastID int64) (result.Status, error)
	Identities(ctx context.Context) ([]deletion.Identity, error)
	Detach(ctx context.Context, d deletion.Detach) error
	Delete(ctx context.Context, id int64) error
}

type TaskStore interface {
	Upsert(ctx context.Context, task models.Task) (result.Status, error)
	IDs(ctx context.Context) ([]int64, error)
	Delete(ctx context.Context, id int64) error
}

type TimeEntryStore interface {
	Upsert(ctx context.Context, entry models.TimeEntry) (result.Status, error)
	IDsUpdatedSince(ctx context.Context, since time.Time) ([]int64, error)
	Delete(ctx context.Context, id int64) error
	RebuildLegacy(ctx context.Context) (int64, error)
}

type AssignmentStore interface {
	// Replace swaps every row of the parent for rows in one transaction.
	Replace(ctx context.Context, parentID int64, rows []models.Assignment) error
	// ParentsSince lists parents whose latest assign_date is on or after since.
	ParentsSince(ctx context.Context, since time.Time) ([]int64, error)
	DeleteParent(ctx context.Context, parentID int64) error
}

type RunLogStore interface {
	Write(ctx context.Context, entry models.RunLog) error
}

// Stores bundles the warehouse side of a run.
type Stores struct {
	People      DimensionStore[models.Person]
	Clients     DimensionStore[models.Client]
	Projects    DimensionStore[models.Project]
	Tasks       TaskStore
	TimeEntries TimeEntryStore
	Assignments AssignmentStore
	RunLog      RunLogStore
	Memo        memo.Loader
	Watermarks  watermark.Store
}
