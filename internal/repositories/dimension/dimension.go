// Package dimension holds the identity handling shared by the dual-identity
// warehouse tables: a row may carry a harvest_id, a forecast_id or both, and
// exactly one row exists per real-world entity.
package dimension

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/deletion"
	"github.com/Ramsey-B/fern/pkg/result"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Reference is a fact or dimension column holding ids of the table.
type Reference struct {
	Table  string
	Column string
}

// Row is one upsert: the data columns and their values, without id.
type Row struct {
	HarvestID  *int64
	ForecastID *int64
	Columns    []string
	Values     []any
}

type Table struct {
	name       string
	references []Reference
	db         database.DB
	logger     ectologger.Logger
}

func NewTable(db database.DB, logger ectologger.Logger, name string, references ...Reference) *Table {
	return &Table{
		name:       name,
		references: references,
		db:         db,
		logger:     logger,
	}
}

func (t *Table) Name() string {
	return t.name
}

type holder struct {
	ID        int64  `db:"id"`
	HarvestID *int64 `db:"harvest_id"`
}

type upserted struct {
	ID       int64 `db:"id"`
	Inserted bool  `db:"inserted"`
}

// UpsertHarvest writes a row keyed by harvest_id. A Forecast-only row holding
// the same forecast_id is adopted when no Harvest row exists yet, and merged
// into the Harvest row when one does.
func (t *Table) UpsertHarvest(ctx context.Context, row Row) (int64, result.Status, error) {
	ctx, span := tracing.StartSpan(ctx, "dimension.Table.UpsertHarvest", attribute.String("table", t.name))
	defer span.End()

	if row.HarvestID == nil {
		return 0, result.StatusFailed, httperror.NewHTTPErrorf(http.StatusBadRequest, "%s row has no harvest id", t.name)
	}

	ctx, tx, err := t.db.GetTx(ctx, nil)
	if err != nil {
		return 0, result.StatusFailed, database.HTTPError(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	status := result.StatusUnchanged
	if row.ForecastID != nil {
		status, err = t.claimForecastID(ctx, tx, *row.HarvestID, *row.ForecastID)
		if err != nil {
			tracing.RecordError(span, err)
			return 0, result.StatusFailed, err
		}
	}

	set := []database.Assignment{database.Set("forecast_id", database.Preserve(t.name, "forecast_id"))}
	for _, column := range row.Columns {
		switch column {
		case "created_at":
			set = append(set, database.Set(column, database.Preserve(t.name, column)))
		case "updated_at":
			set = append(set, database.Set(column, database.Greatest(t.name, column)))
		default:
			set = append(set, database.Set(column, database.Excluded(column)))
		}
	}

	id, upsertStatus, err := t.upsert(ctx, tx, row, "harvest_id", *row.HarvestID, database.Conflict{
		Table:   t.name,
		Columns: []string{"harvest_id"},
		Set:     set,
		Where:   database.NotOlder(t.name, "updated_at"),
	})
	if err != nil {
		tracing.RecordError(span, err)
		return 0, result.StatusFailed, err
	}

	// An older proposal keeps the stored columns but still carries the link.
	if upsertStatus == result.StatusUnchanged && row.ForecastID != nil {
		if err := t.setForecastID(ctx, tx, id, row.ForecastID); err != nil {
			tracing.RecordError(span, err)
			return 0, result.StatusFailed, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, result.StatusFailed, database.HTTPError(err, "failed to commit "+t.name+" upsert")
	}

	if status == result.StatusUnchanged {
		status = upsertStatus
	}
	return id, status, nil
}

// claimForecastID makes forecastID free for the Harvest row harvestID is about
// to write.
func (t *Table) claimForecastID(ctx context.Context, tx database.Tx, harvestID, forecastID int64) (result.Status, error) {
	current, found, err := t.holderOf(ctx, tx, forecastID)
	if err != nil || !found {
		return result.StatusUnchanged, err
	}
	if current.HarvestID != nil && *current.HarvestID == harvestID {
		return result.StatusUnchanged, nil
	}

	if current.HarvestID != nil {
		// another Harvest row held the Forecast id; the newer link wins
		if err := t.setForecastID(ctx, tx, current.ID, nil); err != nil {
			return result.StatusFailed, err
		}
		return result.StatusUnchanged, nil
	}

	target, found, err := t.idByHarvestID(ctx, tx, harvestID)
	if err != nil {
		return result.StatusFailed, err
	}
	if !found {
		if err := t.adopt(ctx, tx, current.ID, harvestID); err != nil {
			return result.StatusFailed, err
		}
		return result.StatusLinked, nil
	}
	if err := t.merge(ctx, tx, current.ID, target); err != nil {
		return result.StatusFailed, err
	}
	return result.StatusMerged, nil
}

// UpsertForecast writes a Forecast-only row keyed by forecast_id. A row that
// has since gained a harvest_id is owned by the Harvest side and is left
// alone.
func (t *Table) UpsertForecast(ctx context.Context, row Row) (int64, result.Status, error) {
	ctx, span := tracing.StartSpan(ctx, "dimension.Table.UpsertForecast", attribute.String("table", t.name))
	defer span.End()

	if row.ForecastID == nil {
		return 0, result.StatusFailed, httperror.NewHTTPErrorf(http.StatusBadRequest, "%s row has no forecast id", t.name)
	}

	set := make([]database.Assignment, 0, len(row.Columns))
	for _, column := range row.Columns {
		if column == "updated_at" {
			set = append(set, database.Set(column, database.Greatest(t.name, column)))
			continue
		}
		set = append(set, database.Set(column, database.Excluded(column)))
	}

	id, status, err := t.upsert(ctx, t.db, row, "forecast_id", *row.ForecastID, database.Conflict{
		Table:   t.name,
		Columns: []string{"forecast_id"},
		Set:     set,
		Where:   fmt.Sprintf("%s.harvest_id IS NULL AND %s", t.name, database.NotOlder(t.name, "updated_at")),
	})
	if err != nil {
		tracing.RecordError(span, err)
		return 0, result.StatusFailed, err
	}
	return id, status, nil
}

func (t *Table) upsert(ctx context.Context, q database.Querier, row Row, keyColumn string, key int64, conflict database.Conflict) (int64, result.Status, error) {
	columns := append([]string{"harvest_id", "forecast_id"}, row.Columns...)
	values := append([]any{row.HarvestID, row.ForecastID}, row.Values...)

	sb := database.NewInsertBuilder()
	sb.InsertInto(t.name)
	sb.Cols(columns...)
	sb.Values(values...)

	query, args := sb.Build()
	query += conflict.Clause() + " RETURNING id, (xmax = 0) AS inserted"

	var out upserted
	err := q.GetContext(ctx, &out, query, args...)
	if err == nil {
		if out.Inserted {
			return out.ID, result.StatusInserted, nil
		}
		return out.ID, result.StatusUpdated, nil
	}
	if !database.IsNoRows(err) {
		t.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"table": t.name, keyColumn: key}).Error("Failed to upsert dimension row")
		return 0, result.StatusFailed, database.HTTPError(err, "failed to upsert "+t.name)
	}

	// the guard rejected an older proposal
	sel := database.NewSelectBuilder()
	sel.Select("id").From(t.name).Where(sel.Equal(keyColumn, key))
	query, args = sel.Build()

	var id int64
	if err := q.GetContext(ctx, &id, query, args...); err != nil {
		return 0, result.StatusFailed, database.HTTPError(err, "failed to read "+t.name)
	}
	return id, result.StatusUnchanged, nil
}

// Link attaches forecastID to the row warehouseID. A Forecast-only row that
// already holds the id is merged into warehouseID; a Harvest row holding it
// loses it.
func (t *Table) Link(ctx context.Context, warehouseID, forecastID int64) (result.Status, error) {
	ctx, span := tracing.StartSpan(ctx, "dimension.Table.Link",
		attribute.String("table", t.name),
		attribute.Int64("id", warehouseID),
		attribute.Int64("forecast_id", forecastID),
	)
	defer span.End()

	ctx, tx, err := t.db.GetTx(ctx, nil)
	if err != nil {
		return result.StatusFailed, database.HTTPError(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	status := result.StatusLinked
	current, found, err := t.holderOf(ctx, tx, forecastID)
	if err != nil {
		return result.StatusFailed, err
	}
	switch {
	case found && current.ID == warehouseID:
		return result.StatusUnchanged, nil
	case found && current.HarvestID == nil:
		if err := t.merge(ctx, tx, current.ID, warehouseID); err != nil {
			return result.StatusFailed, err
		}
		status = result.StatusMerged
	case found:
		if err := t.setForecastID(ctx, tx, current.ID, nil); err != nil {
			return result.StatusFailed, err
		}
	}

	if err := t.setForecastID(ctx, tx, warehouseID, &forecastID); err != nil {
		tracing.RecordError(span, err)
		return result.StatusFailed, err
	}

	if err := tx.Commit(ctx); err != nil {
		return result.StatusFailed, database.HTTPError(err, "failed to commit "+t.name+" link")
	}

	t.logger.WithContext(ctx).WithFields(map[string]any{
		"table":       t.name,
		"id":          warehouseID,
		"forecast_id": forecastID,
		"status":      status,
	}).Debug("Linked forecast record")
	return status, nil
}

func (t *Table) holderOf(ctx context.Context, q database.Querier, forecastID int64) (holder, bool, error) {
	sb := database.NewSelectBuilder()
	sb.Select("id", "harvest_id").From(t.name).Where(sb.Equal("forecast_id", forecastID))
	sb.ForUpdate()
	query, args := sb.Build()

	var h holder
	if err := q.GetContext(ctx, &h, query, args...); err != nil {
		if database.IsNoRows(err) {
			return holder{}, false, nil
		}
		return holder{}, false, database.HTTPError(err, "failed to find "+t.name+" by forecast id")
	}
	return h, true, nil
}

func (t *Table) idByHarvestID(ctx context.Context, q database.Querier, harvestID int64) (int64, bool, error) {
	sb := database.NewSelectBuilder()
	sb.Select("id").From(t.name).Where(sb.Equal("harvest_id", harvestID))
	query, args := sb.Build()

	var id int64
	if err := q.GetContext(ctx, &id, query, args...); err != nil {
		if database.IsNoRows(err) {
			return 0, false, nil
		}
		return 0, false, database.HTTPError(err, "failed to find "+t.name+" by harvest id")
	}
	return id, true, nil
}

func (t *Table) adopt(ctx context.Context, q database.Querier, id, harvestID int64) error {
	sb := database.NewUpdateBuilder()
	sb.Update(t.name).Set(sb.Assign("harvest_id", harvestID)).Where(sb.Equal("id", id))
	query, args := sb.Build()

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return database.HTTPError(err, "failed to adopt "+t.name+" row")
	}
	t.logger.WithContext(ctx).WithFields(map[string]any{"table": t.name, "id": id, "harvest_id": harvestID}).Info("Adopted forecast-only row")
	return nil
}

// merge re-points every reference from the orphan to target, then deletes
// the orphan.
func (t *Table) merge(ctx context.Context, q database.Querier, orphan, target int64) error {
	for _, ref := range t.references {
		sb := database.NewUpdateBuilder()
		sb.Update(ref.Table).Set(sb.Assign(ref.Column, target)).Where(sb.Equal(ref.Column, orphan))
		query, args := sb.Build()
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return database.HTTPError(err, fmt.Sprintf("failed to re-point %s.%s", ref.Table, ref.Column))
		}
	}

	db := database.NewDeleteBuilder()
	db.DeleteFrom(t.name).Where(db.Equal("id", orphan))
	query, args := db.Build()
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return database.HTTPError(err, "failed to delete merged "+t.name+" row")
	}

	t.logger.WithContext(ctx).WithFields(map[string]any{"table": t.name, "orphan": orphan, "target": target}).Info("Merged forecast-only row")
	return nil
}

func (t *Table) setForecastID(ctx context.Context, q database.Querier, id int64, forecastID *int64) error {
	sb := database.NewUpdateBuilder()
	sb.Update(t.name).Set(sb.Assign("forecast_id", forecastID)).Where(sb.Equal("id", id))
	query, args := sb.Build()

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return database.HTTPError(err, "failed to set "+t.name+" forecast id")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "%s %d not found", t.name, id)
	}
	return nil
}

func (t *Table) Identities(ctx context.Context) ([]deletion.Identity, error) {
	ctx, span := tracing.StartSpan(ctx, "dimension.Table.Identities", attribute.String("table", t.name))
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "harvest_id", "forecast_id").From(t.name).OrderBy("id")
	query, args := sb.Build()

	var identities []deletion.Identity
	if err := t.db.SelectContext(ctx, &identities, query, args...); err != nil {
		t.logger.WithContext(ctx).WithError(err).WithField("table", t.name).Error("Failed to list identities")
		return nil, database.HTTPError(err, "failed to list "+t.name+" identities")
	}
	return identities, nil
}

// Detach clears one source id of a row that keeps the other.
func (t *Table) Detach(ctx context.Context, d deletion.Detach) error {
	ctx, span := tracing.StartSpan(ctx, "dimension.Table.Detach", attribute.String("table", t.name), attribute.Int64("id", d.ID))
	defer span.End()

	column := "forecast_id"
	if d.Side == deletion.SideHarvest {
		column = "harvest_id"
	}

	sb := database.NewUpdateBuilder()
	sb.Update(t.name).Set(sb.Assign(column, nil)).Where(sb.Equal("id", d.ID))
	query, args := sb.Build()

	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return database.HTTPError(err, "failed to detach "+t.name+" "+column)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "%s %d not found", t.name, d.ID)
	}
	return nil
}

func (t *Table) Delete(ctx context.Context, id int64) error {
	ctx, span := tracing.StartSpan(ctx, "dimension.Table.Delete", attribute.String("table", t.name), attribute.Int64("id", id))
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(t.name).Where(db.Equal("id", id))
	query, args := db.Build()

	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return database.HTTPError(err, "failed to delete "+t.name)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "%s %d not found", t.name, id)
	}
	return nil
}

// All loads the whole table into dest, a pointer to a slice.
func (t *Table) All(ctx context.Context, dest any) error {
	ctx, span := tracing.StartSpan(ctx, "dimension.Table.All", attribute.String("table", t.name))
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("*").From(t.name).OrderBy("id")
	query, args := sb.Build()

	if err := t.db.SelectContext(ctx, dest, query, args...); err != nil {
		t.logger.WithContext(ctx).WithError(err).WithField("table", t.name).Error("Failed to load table")
		return database.HTTPError(err, "failed to load "+t.name)
	}
	return nil
}
