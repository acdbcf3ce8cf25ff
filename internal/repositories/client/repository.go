package client

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/repositories/dimension"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/result"
)

const Table = "clients"

var columns = []string{"name", "is_active", "created_at", "updated_at"}

type Repository struct {
	*dimension.Table
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		Table: dimension.NewTable(db, logger, Table,
			dimension.Reference{Table: "projects", Column: "client_id"},
			dimension.Reference{Table: "time_entries", Column: "client_id"},
		),
	}
}

func row(c models.Client) dimension.Row {
	return dimension.Row{
		HarvestID:  c.HarvestID,
		ForecastID: c.ForecastID,
		Columns:    columns,
		Values:     []any{c.Name, c.IsActive, c.CreatedAt, c.UpdatedAt},
	}
}

func (r *Repository) UpsertHarvest(ctx context.Context, c models.Client) (int64, result.Status, error) {
	return r.Table.UpsertHarvest(ctx, row(c))
}

func (r *Repository) UpsertForecast(ctx context.Context, c models.Client) (int64, result.Status, error) {
	return r.Table.UpsertForecast(ctx, row(c))
}

func (r *Repository) AllClients(ctx context.Context) ([]models.Client, error) {
	var clients []models.Client
	if err := r.All(ctx, &clients); err != nil {
		return nil, err
	}
	return clients, nil
}
