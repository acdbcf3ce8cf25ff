package transform

import (
	"errors"
	"testing"
	"time"

	"github.com/Ramsey-B/fern/pkg/forecast"
	"github.com/Ramsey-B/fern/pkg/harvest"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/reconcile"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roles = Roles{
	Priority:    []string{"Exec", "Mission Control"},
	Departments: []string{"Technology", "Design (Ops)", "Design (Support)", "Product", "Strategy", "Growth"},
}

func TestPrimaryRole(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  string
	}{
		{"single role", []string{"Technology"}, "Technology"},
		{"department before tags", []string{"Design (Ops)", "Pantswearer", "Contractor"}, "Design (Ops)"},
		{"exec wins", []string{"Full-Time", "Growth", "Non-Billable", "Exec", "Strategy"}, "Exec"},
		{"mission control wins", []string{"Design (Support)", "Mission Control", "Product"}, "Mission Control"},
		{"no department", []string{"NV", "Billable"}, "NV"},
		{"tag before department", []string{"NV", "Boost", "Strategy"}, "Strategy"},
		{"none", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, roles.PrimaryRole(tt.roles))
		})
	}
}

func TestEntryAmount(t *testing.T) {
	hours := decimal.RequireFromString("2.5")
	rate := decimal.NewNullDecimal(decimal.RequireFromString("150"))

	assert.True(t, decimal.RequireFromString("375").Equal(EntryAmount(hours, rate)))
	assert.True(t, decimal.Zero.Equal(EntryAmount(hours, decimal.NullDecimal{})))
}

func TestPerson(t *testing.T) {
	updated := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	user := harvest.User{ID: 10, FirstName: "John", LastName: "Doe", Roles: []string{"Technology"}, IsActive: true, UpdatedAt: updated}

	person := Person(user, &forecast.Person{ID: 711111}, roles)
	require.NotNil(t, person.HarvestID)
	require.NotNil(t, person.ForecastID)
	assert.Equal(t, int64(10), *person.HarvestID)
	assert.Equal(t, int64(711111), *person.ForecastID)
	assert.Equal(t, "John Doe", person.FullName)
	assert.Equal(t, "Technology", person.PrimaryRole)
	assert.Nil(t, person.CreatedAt)

	unmatched := Person(user, nil, roles)
	assert.Nil(t, unmatched.ForecastID)
	assert.NotNil(t, unmatched.Roles)
}

func TestOrphanPerson(t *testing.T) {
	person := OrphanPerson(forecast.Person{ID: 733333, FirstName: "Forecast", LastName: "Seesthefuture", Archived: true, Roles: []string{"NV", "Billable", "Marketing"}}, roles)

	assert.Nil(t, person.HarvestID)
	assert.Equal(t, int64(733333), *person.ForecastID)
	assert.Equal(t, "Forecast Seesthefuture", person.FullName)
	assert.False(t, person.IsActive)
	assert.Equal(t, "NV", person.PrimaryRole)
}

type fakeLookup struct {
	people   map[int64]models.Person
	clients  map[int64]models.Client
	projects map[int64]models.Project
	tasks    map[int64]models.Task
}

func (f fakeLookup) PersonByHarvestID(id int64) (models.Person, bool) {
	p, ok := f.people[id]
	return p, ok
}

func (f fakeLookup) PersonByForecastID(int64) (models.Person, bool) { return models.Person{}, false }

func (f fakeLookup) ClientByHarvestID(id int64) (models.Client, bool) {
	c, ok := f.clients[id]
	return c, ok
}

func (f fakeLookup) ClientByForecastID(int64) (models.Client, bool) { return models.Client{}, false }

func (f fakeLookup) ProjectByHarvestID(id int64) (models.Project, bool) {
	p, ok := f.projects[id]
	return p, ok
}

func (f fakeLookup) ProjectByForecastID(int64) (models.Project, bool) { return models.Project{}, false }

func (f fakeLookup) TaskByID(id int64) (models.Task, bool) {
	t, ok := f.tasks[id]
	return t, ok
}

func TestProject(t *testing.T) {
	lookup := fakeLookup{clients: map[int64]models.Client{20: {ID: 3, Name: "Acme"}}}
	fallback := reconcile.ClientRef{ID: 164, Name: "RevUnit"}

	project, err := Project(harvest.Project{ID: 30, Name: "Engine", Client: &harvest.Ref{ID: 20, Name: "Acme"}}, nil, lookup, fallback)
	require.NoError(t, err)
	assert.Equal(t, int64(3), *project.ClientID)
	assert.Equal(t, "Acme", project.ClientName)

	project, err = Project(harvest.Project{ID: 31, Name: "Internal"}, &forecast.Project{ID: 900}, lookup, fallback)
	require.NoError(t, err)
	assert.Equal(t, int64(164), *project.ClientID)
	assert.Equal(t, int64(900), *project.ForecastID)

	_, err = Project(harvest.Project{ID: 32, Client: &harvest.Ref{ID: 21}}, nil, lookup, fallback)
	assert.True(t, errors.Is(err, ErrReferenceUnresolved))
}

func TestTimeEntry(t *testing.T) {
	lookup := fakeLookup{
		people:   map[int64]models.Person{10: {ID: 1}},
		clients:  map[int64]models.Client{20: {ID: 2}},
		projects: map[int64]models.Project{30: {ID: 3}},
		tasks:    map[int64]models.Task{40: {ID: 40}},
	}
	source := harvest.TimeEntry{
		ID:           1,
		SpentDate:    models.NewDate(2024, 3, 4),
		Hours:        decimal.RequireFromString("1.5"),
		BillableRate: decimal.NewNullDecimal(decimal.RequireFromString("100")),
		User:         harvest.Ref{ID: 10, Name: "Ada"},
		Client:       harvest.Ref{ID: 20, Name: "Acme"},
		Project:      harvest.Ref{ID: 30, Name: "Engine", Code: "ENG"},
		Task:         harvest.Ref{ID: 40, Name: "Build"},
	}

	entry, err := TimeEntry(source, lookup)
	require.NoError(t, err)
	assert.Equal(t, int64(1), *entry.PersonID)
	assert.Equal(t, int64(2), *entry.ClientID)
	assert.Equal(t, int64(3), *entry.ProjectID)
	assert.Equal(t, int64(40), *entry.TaskID)
	assert.Equal(t, "ENG", entry.ProjectCode)
	assert.True(t, decimal.RequireFromString("150").Equal(entry.EntryAmount))

	source.Task.ID = 41
	_, err = TimeEntry(source, lookup)
	assert.True(t, errors.Is(err, ErrReferenceUnresolved))
}
