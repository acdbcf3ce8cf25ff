package project

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/repositories/dimension"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/result"
)

const Table = "projects"

var columns = []string{
	"client_id", "client_name", "name", "code", "is_active", "is_billable", "budget",
	"budget_is_monthly", "starts_on", "ends_on", "created_at", "updated_at",
}

type Repository struct {
	*dimension.Table
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		Table: dimension.NewTable(db, logger, Table,
			dimension.Reference{Table: "time_entries", Column: "project_id"},
			dimension.Reference{Table: "time_assignments", Column: "project_id"},
		),
	}
}

func row(p models.Project) dimension.Row {
	return dimension.Row{
		HarvestID:  p.HarvestID,
		ForecastID: p.ForecastID,
		Columns:    columns,
		Values: []any{
			p.ClientID, p.ClientName, p.Name, p.Code, p.IsActive, p.IsBillable, p.Budget,
			p.BudgetIsMonthly, p.StartsOn, p.EndsOn, p.CreatedAt, p.UpdatedAt,
		},
	}
}

func (r *Repository) UpsertHarvest(ctx context.Context, p models.Project) (int64, result.Status, error) {
	return r.Table.UpsertHarvest(ctx, row(p))
}

func (r *Repository) UpsertForecast(ctx context.Context, p models.Project) (int64, result.Status, error) {
	return r.Table.UpsertForecast(ctx, row(p))
}

func (r *Repository) AllProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := r.All(ctx, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}
