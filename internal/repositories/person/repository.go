package person

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/repositories/dimension"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/result"
)

const Table = "people"

var columns = []string{
	"first_name", "last_name", "full_name", "email", "timezone", "weekly_capacity",
	"is_contractor", "is_active", "roles", "primary_role", "avatar_url", "created_at", "updated_at",
}

// Repository persists people. Identity handling lives in the embedded table.
type Repository struct {
	*dimension.Table
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		Table: dimension.NewTable(db, logger, Table,
			dimension.Reference{Table: "time_entries", Column: "person_id"},
			dimension.Reference{Table: "time_assignments", Column: "person_id"},
		),
	}
}

func row(p models.Person) dimension.Row {
	return dimension.Row{
		HarvestID:  p.HarvestID,
		ForecastID: p.ForecastID,
		Columns:    columns,
		Values: []any{
			p.FirstName, p.LastName, p.FullName, p.Email, p.Timezone, p.WeeklyCapacity,
			p.IsContractor, p.IsActive, p.Roles, p.PrimaryRole, p.AvatarURL, p.CreatedAt, p.UpdatedAt,
		},
	}
}

func (r *Repository) UpsertHarvest(ctx context.Context, p models.Person) (int64, result.Status, error) {
	return r.Table.UpsertHarvest(ctx, row(p))
}

func (r *Repository) UpsertForecast(ctx context.Context, p models.Person) (int64, result.Status, error) {
	return r.Table.UpsertForecast(ctx, row(p))
}

func (r *Repository) AllPeople(ctx context.Context) ([]models.Person, error) {
	var people []models.Person
	if err := r.All(ctx, &people); err != nil {
		return nil, err
	}
	return people, nil
}
