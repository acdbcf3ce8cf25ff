package pipeline

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Ramsey-B/fern/pkg/forecast"
	"github.com/Ramsey-B/fern/pkg/harvest"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/reconcile"
	"github.com/Ramsey-B/fern/pkg/result"
	"github.com/Ramsey-B/fern/pkg/source"
	"github.com/Ramsey-B/fern/pkg/watermark"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestPipeline(h *fakeHarvest, f *fakeForecast, w *warehouse) *Pipeline {
	p := New(h, f, w.stores(), Config{
		FallbackClient:        reconcile.ClientRef{ID: 164, Name: "RevUnit"},
		Watermarks:            watermark.Config{FullLoadEpoch: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)},
		TimeEntryDeleteWindow: 21 * 24 * time.Hour,
		LegacyEntriesEnabled:  true,
	}, logging.NewNop())
	p.now = func() time.Time { return testNow }
	return p
}

func id(v int64) *int64 { return &v }

func lastEntry(t *testing.T, w *warehouse) models.RunLog {
	t.Helper()
	require.NotEmpty(t, w.runLog.entries)
	return w.runLog.entries[len(w.runLog.entries)-1]
}

func TestRun_ForecastRecordLinksToHarvestRow(t *testing.T) {
	created := testNow.Add(-48 * time.Hour)
	h := &fakeHarvest{users: []harvest.User{{ID: 10, FirstName: "Ada", LastName: "Lovelace", IsActive: true, UpdatedAt: created}}}
	f := &fakeForecast{}
	w := newWarehouse()
	opts := Options{Kinds: []models.EntityKind{models.KindPeople}}

	report, err := newTestPipeline(h, f, w).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Tally(models.KindPeople).Count(result.StatusInserted))
	require.Len(t, w.people.rows, 1)
	rowID := w.people.rows[0].ID

	// Nothing changed in Harvest since; Forecast now knows the person.
	w.watermarks[models.KindPeople] = created.Add(time.Second)
	f.people = []forecast.Person{{ID: 500, HarvestUserID: id(10), UpdatedAt: testNow.Add(-time.Hour)}}

	report, err = newTestPipeline(h, f, w).Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Tally(models.KindPeople).Count(result.StatusLinked))

	require.Len(t, w.people.rows, 1)
	person := w.people.rows[0]
	assert.Equal(t, rowID, person.ID)
	require.NotNil(t, person.HarvestID)
	require.NotNil(t, person.ForecastID)
	assert.Equal(t, int64(10), *person.HarvestID)
	assert.Equal(t, int64(500), *person.ForecastID)

	entry := lastEntry(t, w)
	assert.Equal(t, models.LoadCompletedDescription, entry.Description)
	assert.True(t, entry.Success)
}

func TestRun_MatchedRecordsShareOneRow(t *testing.T) {
	updated := testNow.Add(-time.Hour)
	h := &fakeHarvest{users: []harvest.User{{ID: 10, FirstName: "Ada", LastName: "Lovelace", UpdatedAt: updated}}}
	f := &fakeForecast{people: []forecast.Person{
		{ID: 500, HarvestUserID: id(10), UpdatedAt: updated.Add(-time.Minute)},
		{ID: 501, HarvestUserID: id(10), UpdatedAt: updated},
		{ID: 600, FirstName: "Grace", LastName: "Hopper", UpdatedAt: updated},
	}}
	w := newWarehouse()

	report, err := newTestPipeline(h, f, w).Run(context.Background(), Options{Kinds: []models.EntityKind{models.KindPeople}, FullLoad: true})
	require.NoError(t, err)

	tally := report.Tally(models.KindPeople)
	assert.Equal(t, 2, tally.Count(result.StatusInserted))
	assert.Equal(t, 1, tally.Count(result.StatusFailed))

	require.Len(t, w.people.rows, 2)
	ada, grace := w.people.rows[0], w.people.rows[1]
	assert.Equal(t, int64(501), *ada.ForecastID)
	assert.Nil(t, grace.HarvestID)
	assert.Equal(t, int64(600), *grace.ForecastID)
	assert.Equal(t, "Grace Hopper", grace.FullName)

	assert.Contains(t, w.runLog.descriptions(), "Forecast Person Entry Error - id: 500")
}

func TestRun_DeletesTimeEntriesMissingFromHarvest(t *testing.T) {
	w := newWarehouse()
	w.people.insert(models.Person{HarvestID: id(10), UpdatedAt: testNow})
	w.clients.insert(models.Client{HarvestID: id(20), UpdatedAt: testNow})
	w.projects.insert(models.Project{HarvestID: id(30), UpdatedAt: testNow})
	w.tasks.rows[40] = models.Task{ID: 40, UpdatedAt: testNow}
	for _, entryID := range []int64{1, 2, 3} {
		w.entries.rows[entryID] = models.TimeEntry{ID: entryID, UpdatedAt: testNow.Add(-24 * time.Hour)}
	}

	entry := func(entryID int64) harvest.TimeEntry {
		return harvest.TimeEntry{
			ID:        entryID,
			SpentDate: models.NewDate(2024, 3, 14),
			Hours:     decimal.NewFromInt(2),
			User:      harvest.Ref{ID: 10},
			Client:    harvest.Ref{ID: 20},
			Project:   harvest.Ref{ID: 30},
			Task:      harvest.Ref{ID: 40},
			UpdatedAt: testNow.Add(-time.Hour),
		}
	}
	h := &fakeHarvest{entries: []harvest.TimeEntry{entry(1), entry(3)}}

	report, err := newTestPipeline(h, &fakeForecast{}, w).Run(context.Background(), Options{Kinds: []models.EntityKind{models.KindTimeEntries}})
	require.NoError(t, err)

	tally := report.Tally(models.KindTimeEntries)
	assert.Equal(t, 2, tally.Count(result.StatusUpdated))
	assert.Equal(t, 1, tally.Count(result.StatusDeleted))
	assert.Len(t, w.entries.rows, 2)
	assert.Contains(t, w.entries.rows, int64(1))
	assert.Contains(t, w.entries.rows, int64(3))
	assert.NotContains(t, w.entries.rows, int64(2))
	assert.Equal(t, 2, w.entries.rebuilds)

	stored := w.entries.rows[1]
	require.NotNil(t, stored.ProjectID)
	assert.Equal(t, int64(1), *stored.ProjectID)
}

func TestRun_ExpandsAndReplacesAssignments(t *testing.T) {
	w := newWarehouse()
	personID := w.people.insert(models.Person{ForecastID: id(500), UpdatedAt: testNow})
	projectID := w.projects.insert(models.Project{ForecastID: id(900), UpdatedAt: testNow})
	w.assignments.parents[7] = []models.Assignment{{ParentID: 7, AssignDate: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)}}
	w.assignments.parents[8] = []models.Assignment{{ParentID: 8, AssignDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}}
	w.assignments.parents[9] = []models.Assignment{{ParentID: 9, AssignDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)}}

	f := &fakeForecast{
		windowStart: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		assignments: []forecast.Assignment{
			{
				ID:         7,
				StartDate:  models.NewDate(2024, 3, 4),
				EndDate:    models.NewDate(2024, 3, 10),
				Allocation: id(14400),
				PersonID:   id(500),
				ProjectID:  900,
				UpdatedAt:  testNow.Add(-time.Hour),
			},
			{
				ID:            9,
				StartDate:     models.NewDate(2024, 3, 4),
				EndDate:       models.NewDate(2024, 3, 8),
				Allocation:    id(3600),
				PlaceholderID: id(3),
				ProjectID:     900,
				UpdatedAt:     testNow.Add(-time.Hour),
			},
		},
	}

	report, err := newTestPipeline(&fakeHarvest{}, f, w).Run(context.Background(), Options{Kinds: []models.EntityKind{models.KindAssignments}})
	require.NoError(t, err)

	rows := w.assignments.parents[7]
	require.Len(t, rows, 5)
	for i, row := range rows {
		assert.Equal(t, time.Date(2024, 3, 4+i, 0, 0, 0, 0, time.UTC), row.AssignDate)
		assert.True(t, decimal.NewFromInt(4).Equal(row.Allocation))
		assert.Equal(t, personID, row.PersonID)
		assert.Equal(t, projectID, row.ProjectID)
	}

	assert.Empty(t, w.assignments.parents[9])
	assert.NotContains(t, w.assignments.parents, int64(8))

	tally := report.Tally(models.KindAssignments)
	assert.Equal(t, 1, tally.Count(result.StatusUpdated))
	assert.Equal(t, 1, tally.Count(result.StatusSkipped))
	assert.Equal(t, 1, tally.Count(result.StatusDeleted))
}

func TestRun_ProjectsResolveClientsWrittenInSameRun(t *testing.T) {
	updated := testNow.Add(-time.Hour)
	h := &fakeHarvest{
		clients:  []harvest.Client{{ID: 20, Name: "Acme", IsActive: true, UpdatedAt: updated}},
		projects: []harvest.Project{{ID: 30, Name: "Website", Client: &harvest.Ref{ID: 20}, UpdatedAt: updated}},
	}
	f := &fakeForecast{
		clients:  []forecast.Client{{ID: 700, Name: "Globex", UpdatedAt: updated}},
		projects: []forecast.Project{{ID: 901, Name: "Retainer", ClientID: id(700), UpdatedAt: updated}},
	}
	w := newWarehouse()

	report, err := newTestPipeline(h, f, w).Run(context.Background(), Options{
		Kinds:       []models.EntityKind{models.KindProjects, models.KindClients},
		SkipDeletes: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Tally(models.KindClients).Count(result.StatusInserted))
	assert.Equal(t, 2, report.Tally(models.KindProjects).Count(result.StatusInserted))

	require.Len(t, w.clients.rows, 2)
	acme, globex := w.clients.rows[0], w.clients.rows[1]

	require.Len(t, w.projects.rows, 2)
	website, retainer := w.projects.rows[0], w.projects.rows[1]
	require.NotNil(t, website.ClientID)
	assert.Equal(t, acme.ID, *website.ClientID)
	assert.Equal(t, "Acme", website.ClientName)
	require.NotNil(t, retainer.ClientID)
	assert.Equal(t, globex.ID, *retainer.ClientID)
	assert.Equal(t, "Globex", retainer.ClientName)
}

func TestRun_AssignmentsResolvePeopleWrittenInSameRun(t *testing.T) {
	w := newWarehouse()
	projectID := w.projects.insert(models.Project{ForecastID: id(900), UpdatedAt: testNow})

	updated := testNow.Add(-time.Hour)
	f := &fakeForecast{
		people: []forecast.Person{{ID: 500, FirstName: "Grace", LastName: "Hopper", UpdatedAt: updated}},
		assignments: []forecast.Assignment{{
			ID:         7,
			StartDate:  models.NewDate(2024, 3, 4),
			EndDate:    models.NewDate(2024, 3, 5),
			Allocation: id(28800),
			PersonID:   id(500),
			ProjectID:  900,
			UpdatedAt:  updated,
		}},
	}

	report, err := newTestPipeline(&fakeHarvest{}, f, w).Run(context.Background(), Options{
		Kinds:       []models.EntityKind{models.KindAssignments, models.KindPeople},
		SkipDeletes: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Tally(models.KindPeople).Count(result.StatusInserted))
	assert.Equal(t, 1, report.Tally(models.KindAssignments).Count(result.StatusUpdated))

	require.Len(t, w.people.rows, 1)
	grace := w.people.rows[0]

	rows := w.assignments.parents[7]
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, grace.ID, row.PersonID)
		assert.Equal(t, projectID, row.ProjectID)
		assert.True(t, decimal.NewFromInt(8).Equal(row.Allocation))
	}
}

func TestRun_CompletionCarriesTraceID(t *testing.T) {
	traceID := trace.TraceID{0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18, 0x19}
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		TraceFlags: trace.FlagsSampled,
	}))
	w := newWarehouse()

	_, err := newTestPipeline(&fakeHarvest{}, &fakeForecast{}, w).Run(ctx, Options{Kinds: []models.EntityKind{models.KindTasks}})
	require.NoError(t, err)

	entry := lastEntry(t, w)
	assert.Equal(t, models.LoadCompletedDescription, entry.Description)
	assert.Equal(t, traceID.String(), entry.Documents.GetValue()["trace_id"])
}

func TestRun_FatalFetchWritesFailedCompletion(t *testing.T) {
	h := &fakeHarvest{err: httperror.NewHTTPError(http.StatusUnauthorized, "invalid token")}
	w := newWarehouse()

	report, err := newTestPipeline(h, &fakeForecast{}, w).Run(context.Background(), Options{})
	require.Error(t, err)
	assert.True(t, result.IsFatal(err))
	assert.False(t, report.Success())

	entry := lastEntry(t, w)
	assert.Equal(t, models.LoadCompletedDescription, entry.Description)
	assert.False(t, entry.Success)
	assert.Equal(t, report.RunID, entry.Documents.GetValue()["run_id"])
	assert.Empty(t, w.people.rows)
}

func TestRun_PerRecordFailuresAreLogged(t *testing.T) {
	w := newWarehouse()
	w.people.insert(models.Person{HarvestID: id(10), UpdatedAt: testNow})
	w.clients.insert(models.Client{HarvestID: id(20), UpdatedAt: testNow})
	w.tasks.rows[40] = models.Task{ID: 40, UpdatedAt: testNow}

	h := &fakeHarvest{entries: []harvest.TimeEntry{{
		ID:        77,
		SpentDate: models.NewDate(2024, 3, 14),
		User:      harvest.Ref{ID: 10},
		Client:    harvest.Ref{ID: 20},
		Project:   harvest.Ref{ID: 31},
		Task:      harvest.Ref{ID: 40},
		UpdatedAt: testNow,
	}}}
	f := &fakeForecast{
		projects: []forecast.Project{
			{ID: 901, Name: "Unresolved", ClientID: id(999), UpdatedAt: testNow},
			{ID: 902, Name: "Internal", UpdatedAt: testNow},
		},
	}

	report, err := newTestPipeline(h, f, w).Run(context.Background(), Options{
		Kinds:       []models.EntityKind{models.KindProjects, models.KindTimeEntries},
		SkipDeletes: true,
	})
	require.NoError(t, err)

	descriptions := w.runLog.descriptions()
	assert.Contains(t, descriptions, "Forecast Project Entry Error - id: 901")
	assert.Contains(t, descriptions, "Time Entry Error - id: 77")
	assert.Equal(t, 1, report.Tally(models.KindProjects).Count(result.StatusFailed))
	assert.Equal(t, 1, report.Tally(models.KindTimeEntries).Count(result.StatusFailed))

	require.Len(t, w.projects.rows, 1)
	internal := w.projects.rows[0]
	require.NotNil(t, internal.ClientID)
	assert.Equal(t, int64(164), *internal.ClientID)
	assert.Equal(t, "RevUnit", internal.ClientName)

	entry := lastEntry(t, w)
	assert.Equal(t, models.LoadCompletedDescription, entry.Description)
	assert.True(t, entry.Success)
}

func TestRun_RejectedForecastRecordIsNotDetached(t *testing.T) {
	w := newWarehouse()
	w.people.insert(models.Person{HarvestID: id(10), ForecastID: id(4), UpdatedAt: testNow})
	h := &fakeHarvest{users: []harvest.User{{ID: 10, UpdatedAt: testNow.Add(-time.Hour)}}}
	f := &fakeForecast{rejected: []source.Rejection{{Key: "4"}}}

	_, err := newTestPipeline(h, f, w).Run(context.Background(), Options{Kinds: []models.EntityKind{models.KindPeople}})
	require.NoError(t, err)

	require.Len(t, w.people.rows, 1)
	require.NotNil(t, w.people.rows[0].ForecastID)
	assert.Equal(t, int64(4), *w.people.rows[0].ForecastID)
	assert.Contains(t, w.runLog.descriptions(), "Forecast Person Entry Error - id: 4")
}

func TestOptions_Selected(t *testing.T) {
	assert.Equal(t, models.AllKinds, Options{}.selected())
	assert.Equal(t,
		[]models.EntityKind{models.KindPeople, models.KindAssignments},
		Options{Kinds: []models.EntityKind{models.KindAssignments, models.KindPeople}}.selected(),
	)
}
