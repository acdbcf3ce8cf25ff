package transform

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Ramsey-B/fern/pkg/forecast"
	"github.com/Ramsey-B/fern/pkg/harvest"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/reconcile"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ErrReferenceUnresolved is returned when a record points at a dimension row
// the warehouse does not have.
var ErrReferenceUnresolved = errors.New("reference not found in warehouse")

// Lookup resolves source ids to warehouse rows. pkg/memo implements it.
type Lookup interface {
	PersonByHarvestID(harvestID int64) (models.Person, bool)
	PersonByForecastID(forecastID int64) (models.Person, bool)
	ClientByHarvestID(harvestID int64) (models.Client, bool)
	ClientByForecastID(forecastID int64) (models.Client, bool)
	ProjectByHarvestID(harvestID int64) (models.Project, bool)
	ProjectByForecastID(forecastID int64) (models.Project, bool)
	TaskByID(id int64) (models.Task, bool)
}

func FullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

// EntryAmount is hours times the billable rate, zero when there is no rate.
func EntryAmount(hours decimal.Decimal, rate decimal.NullDecimal) decimal.Decimal {
	if !rate.Valid {
		return decimal.Zero
	}
	return hours.Mul(rate.Decimal)
}

func Person(u harvest.User, match *forecast.Person, roles Roles) models.Person {
	person := models.Person{
		HarvestID:      ptr(u.ID),
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		FullName:       FullName(u.FirstName, u.LastName),
		Email:          u.Email,
		Timezone:       u.Timezone,
		WeeklyCapacity: u.WeeklyCapacity,
		IsContractor:   u.IsContractor,
		IsActive:       u.IsActive,
		Roles:          pq.StringArray(nonNil(u.Roles)),
		PrimaryRole:    roles.PrimaryRole(u.Roles),
		AvatarURL:      u.AvatarURL,
		CreatedAt:      timePtr(u.CreatedAt),
		UpdatedAt:      u.UpdatedAt,
	}
	if match != nil {
		person.ForecastID = ptr(match.ID)
	}
	return person
}

// OrphanPerson is a person known only to Forecast.
func OrphanPerson(f forecast.Person, roles Roles) models.Person {
	return models.Person{
		ForecastID:  ptr(f.ID),
		FirstName:   f.FirstName,
		LastName:    f.LastName,
		FullName:    FullName(f.FirstName, f.LastName),
		Email:       f.Email,
		IsActive:    !f.Archived,
		Roles:       pq.StringArray(nonNil(f.Roles)),
		PrimaryRole: roles.PrimaryRole(f.Roles),
		AvatarURL:   f.AvatarURL,
		UpdatedAt:   f.UpdatedAt,
	}
}

func Client(c harvest.Client, match *forecast.Client) models.Client {
	client := models.Client{
		HarvestID: ptr(c.ID),
		Name:      c.Name,
		IsActive:  c.IsActive,
		CreatedAt: timePtr(c.CreatedAt),
		UpdatedAt: c.UpdatedAt,
	}
	if match != nil {
		client.ForecastID = ptr(match.ID)
	}
	return client
}

func OrphanClient(f forecast.Client) models.Client {
	return models.Client{
		ForecastID: ptr(f.ID),
		Name:       f.Name,
		IsActive:   !f.Archived,
		UpdatedAt:  f.UpdatedAt,
	}
}

// Project resolves the Harvest client reference to a warehouse client. A
// project without a client gets the fallback.
func Project(p harvest.Project, match *forecast.Project, clients Lookup, fallback reconcile.ClientRef) (models.Project, error) {
	project := models.Project{
		HarvestID:       ptr(p.ID),
		Name:            p.Name,
		Code:            p.Code,
		IsActive:        p.IsActive,
		IsBillable:      p.IsBillable,
		Budget:          p.Budget,
		BudgetIsMonthly: p.BudgetIsMonthly,
		StartsOn:        p.StartsOn.Ptr(),
		EndsOn:          p.EndsOn.Ptr(),
		CreatedAt:       timePtr(p.CreatedAt),
		UpdatedAt:       p.UpdatedAt,
	}
	if match != nil {
		project.ForecastID = ptr(match.ID)
	}

	if p.Client == nil {
		project.ClientID = ptr(fallback.ID)
		project.ClientName = fallback.Name
		return project, nil
	}
	client, ok := clients.ClientByHarvestID(p.Client.ID)
	if !ok {
		return project, fmt.Errorf("%w: harvest client %d", ErrReferenceUnresolved, p.Client.ID)
	}
	project.ClientID = ptr(client.ID)
	project.ClientName = client.Name
	return project, nil
}

// OrphanProject is a project known only to Forecast; its client comes from
// reconcile.ResolveOrphanClient.
func OrphanProject(f forecast.Project, client reconcile.ClientRef) models.Project {
	return models.Project{
		ForecastID: ptr(f.ID),
		Name:       f.Name,
		Code:       f.Code,
		IsActive:   !f.Archived,
		ClientID:   ptr(client.ID),
		ClientName: client.Name,
		StartsOn:   f.StartDate.Ptr(),
		EndsOn:     f.EndDate.Ptr(),
		UpdatedAt:  f.UpdatedAt,
	}
}

func Task(t harvest.Task) models.Task {
	return models.Task{
		ID:        t.ID,
		Name:      t.Name,
		IsActive:  t.IsActive,
		CreatedAt: timePtr(t.CreatedAt),
		UpdatedAt: t.UpdatedAt,
	}
}

// TimeEntry rewrites the Harvest references to warehouse ids. Every reference
// must resolve.
func TimeEntry(e harvest.TimeEntry, lookup Lookup) (models.TimeEntry, error) {
	entry := models.TimeEntry{
		ID:           e.ID,
		SpentDate:    e.SpentDate.Time,
		Hours:        e.Hours,
		Billable:     e.Billable,
		BillableRate: e.BillableRate,
		EntryAmount:  EntryAmount(e.Hours, e.BillableRate),
		PersonName:   e.User.Name,
		ProjectName:  e.Project.Name,
		ProjectCode:  e.Project.Code,
		ClientName:   e.Client.Name,
		TaskName:     e.Task.Name,
		CreatedAt:    timePtr(e.CreatedAt),
		UpdatedAt:    e.UpdatedAt,
	}

	person, ok := lookup.PersonByHarvestID(e.User.ID)
	if !ok {
		return entry, fmt.Errorf("%w: harvest user %d", ErrReferenceUnresolved, e.User.ID)
	}
	project, ok := lookup.ProjectByHarvestID(e.Project.ID)
	if !ok {
		return entry, fmt.Errorf("%w: harvest project %d", ErrReferenceUnresolved, e.Project.ID)
	}
	client, ok := lookup.ClientByHarvestID(e.Client.ID)
	if !ok {
		return entry, fmt.Errorf("%w: harvest client %d", ErrReferenceUnresolved, e.Client.ID)
	}
	task, ok := lookup.TaskByID(e.Task.ID)
	if !ok {
		return entry, fmt.Errorf("%w: harvest task %d", ErrReferenceUnresolved, e.Task.ID)
	}

	entry.PersonID = ptr(person.ID)
	entry.ProjectID = ptr(project.ID)
	entry.ClientID = ptr(client.ID)
	entry.TaskID = ptr(task.ID)
	return entry, nil
}

func ptr(v int64) *int64 { return &v }

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
