package pipeline

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/Ramsey-B/fern/pkg/deletion"
	"github.com/Ramsey-B/fern/pkg/forecast"
	"github.com/Ramsey-B/fern/pkg/harvest"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/result"
	"github.com/Ramsey-B/fern/pkg/source"
)

var errRowNotFound = errors.New("row not found")

var (
	_ HarvestSource  = (*harvest.APIClient)(nil)
	_ ForecastSource = (*forecast.APIClient)(nil)
)

type fakeHarvest struct {
	users    []harvest.User
	clients  []harvest.Client
	projects []harvest.Project
	tasks    []harvest.Task
	entries  []harvest.TimeEntry
	err      error
}

func since[T any](records []T, since time.Time, updated func(T) time.Time) source.Batch[T] {
	return source.Batch[T]{Records: source.UpdatedSince(records, since, updated)}
}

func (f *fakeHarvest) Users(_ context.Context, s time.Time) (source.Batch[harvest.User], error) {
	if f.err != nil {
		return source.Batch[harvest.User]{}, f.err
	}
	return since(f.users, s, func(u harvest.User) time.Time { return u.UpdatedAt }), nil
}

func (f *fakeHarvest) Clients(_ context.Context, s time.Time) (source.Batch[harvest.Client], error) {
	return since(f.clients, s, func(c harvest.Client) time.Time { return c.UpdatedAt }), nil
}

func (f *fakeHarvest) Projects(_ context.Context, s time.Time) (source.Batch[harvest.Project], error) {
	return since(f.projects, s, func(p harvest.Project) time.Time { return p.UpdatedAt }), nil
}

func (f *fakeHarvest) Tasks(_ context.Context, s time.Time) (source.Batch[harvest.Task], error) {
	return since(f.tasks, s, func(t harvest.Task) time.Time { return t.UpdatedAt }), nil
}

func (f *fakeHarvest) TimeEntries(_ context.Context, s time.Time) (source.Batch[harvest.TimeEntry], error) {
	return since(f.entries, s, func(e harvest.TimeEntry) time.Time { return e.UpdatedAt }), nil
}

type fakeForecast struct {
	people      []forecast.Person
	clients     []forecast.Client
	projects    []forecast.Project
	assignments []forecast.Assignment
	rejected    []source.Rejection
	windowStart time.Time
}

func (f *fakeForecast) People(context.Context) (source.Batch[forecast.Person], error) {
	return source.Batch[forecast.Person]{Records: f.people, Rejections: f.rejected}, nil
}

func (f *fakeForecast) Clients(context.Context) (source.Batch[forecast.Client], error) {
	return source.Batch[forecast.Client]{Records: f.clients}, nil
}

func (f *fakeForecast) Projects(context.Context) (source.Batch[forecast.Project], error) {
	return source.Batch[forecast.Project]{Records: f.projects}, nil
}

func (f *fakeForecast) Assignments(context.Context) (source.Batch[forecast.Assignment], error) {
	return source.Batch[forecast.Assignment]{Records: f.assignments}, nil
}

func (f *fakeForecast) WindowStart() time.Time { return f.windowStart }

// memDimension mimics the dimension repositories: harvest upserts adopt an
// orphan holding the same forecast id.
type memDimension[T any] struct {
	rows   []*T
	next   int64
	fields func(*T) (id *int64, harvestID **int64, forecastID **int64)
}

func newMemDimension[T any](fields func(*T) (*int64, **int64, **int64)) *memDimension[T] {
	return &memDimension[T]{fields: fields, next: 1}
}

func (m *memDimension[T]) find(match func(harvestID, forecastID *int64) bool) *T {
	for _, row := range m.rows {
		_, h, f := m.fields(row)
		if match(*h, *f) {
			return row
		}
	}
	return nil
}

func (m *memDimension[T]) byID(id int64) *T {
	for _, row := range m.rows {
		if rowID, _, _ := m.fields(row); *rowID == id {
			return row
		}
	}
	return nil
}

func (m *memDimension[T]) insert(row T) int64 {
	id, _, _ := m.fields(&row)
	*id = m.next
	m.next++
	m.rows = append(m.rows, &row)
	return *id
}

func (m *memDimension[T]) UpsertHarvest(_ context.Context, row T) (int64, result.Status, error) {
	_, harvestID, forecastID := m.fields(&row)
	existing := m.find(func(h, _ *int64) bool { return h != nil && *h == **harvestID })
	if existing == nil && *forecastID != nil {
		existing = m.find(func(h, f *int64) bool { return h == nil && f != nil && *f == **forecastID })
	}
	if existing == nil {
		return m.insert(row), result.StatusInserted, nil
	}
	storedID, _, storedForecast := m.fields(existing)
	id, keep := *storedID, *storedForecast
	*existing = row
	newID, _, newForecast := m.fields(existing)
	*newID = id
	if *newForecast == nil {
		*newForecast = keep
	}
	return id, result.StatusUpdated, nil
}

func (m *memDimension[T]) UpsertForecast(_ context.Context, row T) (int64, result.Status, error) {
	_, _, forecastID := m.fields(&row)
	existing := m.find(func(_, f *int64) bool { return f != nil && *f == **forecastID })
	if existing == nil {
		return m.insert(row), result.StatusInserted, nil
	}
	id, _, _ := m.fields(existing)
	stored := *id
	*existing = row
	newID, _, _ := m.fields(existing)
	*newID = stored
	return stored, result.StatusUpdated, nil
}

func (m *memDimension[T]) Link(_ context.Context, warehouseID, forecastID int64) (result.Status, error) {
	row := m.byID(warehouseID)
	if row == nil {
		return result.StatusFailed, errRowNotFound
	}
	_, _, f := m.fields(row)
	if *f != nil && **f == forecastID {
		return result.StatusUnchanged, nil
	}
	*f = &forecastID
	return result.StatusLinked, nil
}

func (m *memDimension[T]) Identities(context.Context) ([]deletion.Identity, error) {
	identities := make([]deletion.Identity, 0, len(m.rows))
	for _, row := range m.rows {
		id, h, f := m.fields(row)
		identities = append(identities, deletion.Identity{ID: *id, HarvestID: *h, ForecastID: *f})
	}
	return identities, nil
}

func (m *memDimension[T]) Detach(_ context.Context, d deletion.Detach) error {
	row := m.byID(d.ID)
	if row == nil {
		return errRowNotFound
	}
	_, h, f := m.fields(row)
	if d.Side == deletion.SideHarvest {
		*h = nil
	} else {
		*f = nil
	}
	return nil
}

func (m *memDimension[T]) Delete(_ context.Context, id int64) error {
	for i, row := range m.rows {
		if rowID, _, _ := m.fields(row); *rowID == id {
			m.rows = slices.Delete(m.rows, i, i+1)
			return nil
		}
	}
	return errRowNotFound
}

func (m *memDimension[T]) all() []T {
	out := make([]T, 0, len(m.rows))
	for _, row := range m.rows {
		out = append(out, *row)
	}
	return out
}

type memTasks struct{ rows map[int64]models.Task }

func (m *memTasks) Upsert(_ context.Context, task models.Task) (result.Status, error) {
	_, exists := m.rows[task.ID]
	m.rows[task.ID] = task
	if exists {
		return result.StatusUpdated, nil
	}
	return result.StatusInserted, nil
}

func (m *memTasks) IDs(context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memTasks) Delete(_ context.Context, id int64) error {
	if _, ok := m.rows[id]; !ok {
		return errRowNotFound
	}
	delete(m.rows, id)
	return nil
}

type memTimeEntries struct {
	rows     map[int64]models.TimeEntry
	rebuilds int
}

func (m *memTimeEntries) Upsert(_ context.Context, entry models.TimeEntry) (result.Status, error) {
	_, exists := m.rows[entry.ID]
	m.rows[entry.ID] = entry
	if exists {
		return result.StatusUpdated, nil
	}
	return result.StatusInserted, nil
}

func (m *memTimeEntries) IDsUpdatedSince(_ context.Context, since time.Time) ([]int64, error) {
	var ids []int64
	for id, row := range m.rows {
		if !row.UpdatedAt.Before(since) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memTimeEntries) Delete(_ context.Context, id int64) error {
	if _, ok := m.rows[id]; !ok {
		return errRowNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memTimeEntries) RebuildLegacy(context.Context) (int64, error) {
	m.rebuilds++
	return int64(len(m.rows)), nil
}

type memAssignments struct{ parents map[int64][]models.Assignment }

func (m *memAssignments) Replace(_ context.Context, parentID int64, rows []models.Assignment) error {
	m.parents[parentID] = rows
	return nil
}

func (m *memAssignments) ParentsSince(_ context.Context, since time.Time) ([]int64, error) {
	var ids []int64
	for id, rows := range m.parents {
		for _, row := range rows {
			if !row.AssignDate.Before(since) {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, nil
}

func (m *memAssignments) DeleteParent(_ context.Context, parentID int64) error {
	delete(m.parents, parentID)
	return nil
}

type memRunLog struct{ entries []models.RunLog }

func (m *memRunLog) Write(_ context.Context, entry models.RunLog) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memRunLog) descriptions() []string {
	out := make([]string, 0, len(m.entries))
	for _, entry := range m.entries {
		out = append(out, entry.Description)
	}
	return out
}

// warehouse is the in-memory backing of every store.
type warehouse struct {
	people      *memDimension[models.Person]
	clients     *memDimension[models.Client]
	projects    *memDimension[models.Project]
	tasks       *memTasks
	entries     *memTimeEntries
	assignments *memAssignments
	runLog      *memRunLog
	watermarks  map[models.EntityKind]time.Time
}

func newWarehouse() *warehouse {
	return &warehouse{
		people: newMemDimension(func(p *models.Person) (*int64, **int64, **int64) {
			return &p.ID, &p.HarvestID, &p.ForecastID
		}),
		clients: newMemDimension(func(c *models.Client) (*int64, **int64, **int64) {
			return &c.ID, &c.HarvestID, &c.ForecastID
		}),
		projects: newMemDimension(func(p *models.Project) (*int64, **int64, **int64) {
			return &p.ID, &p.HarvestID, &p.ForecastID
		}),
		tasks:       &memTasks{rows: map[int64]models.Task{}},
		entries:     &memTimeEntries{rows: map[int64]models.TimeEntry{}},
		assignments: &memAssignments{parents: map[int64][]models.Assignment{}},
		runLog:      &memRunLog{},
		watermarks:  map[models.EntityKind]time.Time{},
	}
}

func (w *warehouse) stores() Stores {
	return Stores{
		People:      w.people,
		Clients:     w.clients,
		Projects:    w.projects,
		Tasks:       w.tasks,
		TimeEntries: w.entries,
		Assignments: w.assignments,
		RunLog:      w.runLog,
		Memo:        w,
		Watermarks:  w,
	}
}

func (w *warehouse) AllPeople(context.Context) ([]models.Person, error)  { return w.people.all(), nil }
func (w *warehouse) AllClients(context.Context) ([]models.Client, error) { return w.clients.all(), nil }
func (w *warehouse) AllProjects(context.Context) ([]models.Project, error) {
	return w.projects.all(), nil
}

func (w *warehouse) AllTasks(context.Context) ([]models.Task, error) {
	tasks := make([]models.Task, 0, len(w.tasks.rows))
	for _, task := range w.tasks.rows {
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (w *warehouse) MaxUpdatedAt(_ context.Context, kind models.EntityKind) (time.Time, bool, error) {
	t, ok := w.watermarks[kind]
	return t, ok, nil
}
