package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Person is one human across both sources. At least one of HarvestID and
// ForecastID is always set.
type Person struct {
	ID             int64          `json:"id" db:"id"`
	HarvestID      *int64         `json:"harvest_id,omitempty" db:"harvest_id"`
	ForecastID     *int64         `json:"forecast_id,omitempty" db:"forecast_id"`
	FirstName      string         `json:"first_name" db:"first_name"`
	LastName       string         `json:"last_name" db:"last_name"`
	FullName       string         `json:"full_name" db:"full_name"`
	Email          string         `json:"email" db:"email"`
	Timezone       string         `json:"timezone" db:"timezone"`
	WeeklyCapacity *int64         `json:"weekly_capacity,omitempty" db:"weekly_capacity"` // seconds
	IsContractor   bool           `json:"is_contractor" db:"is_contractor"`
	IsActive       bool           `json:"is_active" db:"is_active"`
	Roles          pq.StringArray `json:"roles" db:"roles"`
	PrimaryRole    string         `json:"primary_role" db:"primary_role"`
	AvatarURL      string         `json:"avatar_url" db:"avatar_url"`
	CreatedAt      *time.Time     `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

type Client struct {
	ID         int64      `json:"id" db:"id"`
	HarvestID  *int64     `json:"harvest_id,omitempty" db:"harvest_id"`
	ForecastID *int64     `json:"forecast_id,omitempty" db:"forecast_id"`
	Name       string     `json:"name" db:"name"`
	IsActive   bool       `json:"is_active" db:"is_active"`
	CreatedAt  *time.Time `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

type Project struct {
	ID              int64               `json:"id" db:"id"`
	HarvestID       *int64              `json:"harvest_id,omitempty" db:"harvest_id"`
	ForecastID      *int64              `json:"forecast_id,omitempty" db:"forecast_id"`
	ClientID        *int64              `json:"client_id,omitempty" db:"client_id"`
	ClientName      string              `json:"client_name" db:"client_name"`
	Name            string              `json:"name" db:"name"`
	Code            string              `json:"code" db:"code"`
	IsActive        bool                `json:"is_active" db:"is_active"`
	IsBillable      bool                `json:"is_billable" db:"is_billable"`
	Budget          decimal.NullDecimal `json:"budget" db:"budget"`
	BudgetIsMonthly bool                `json:"budget_is_monthly" db:"budget_is_monthly"`
	StartsOn        *time.Time          `json:"starts_on,omitempty" db:"starts_on"`
	EndsOn          *time.Time          `json:"ends_on,omitempty" db:"ends_on"`
	CreatedAt       *time.Time          `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at" db:"updated_at"`
}

// Task keeps the Harvest id as its warehouse id.
type Task struct {
	ID        int64      `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	CreatedAt *time.Time `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// TimeEntry keeps the Harvest id as its warehouse id. The foreign keys hold
// warehouse ids, never source ids.
type TimeEntry struct {
	ID           int64               `json:"id" db:"id"`
	SpentDate    time.Time           `json:"spent_date" db:"spent_date"`
	Hours        decimal.Decimal     `json:"hours" db:"hours"`
	Billable     bool                `json:"billable" db:"billable"`
	BillableRate decimal.NullDecimal `json:"billable_rate" db:"billable_rate"`
	EntryAmount  decimal.Decimal     `json:"entry_amount" db:"entry_amount"`
	PersonID     *int64              `json:"person_id,omitempty" db:"person_id"`
	PersonName   string              `json:"person_name" db:"person_name"`
	ProjectID    *int64              `json:"project_id,omitempty" db:"project_id"`
	ProjectName  string              `json:"project_name" db:"project_name"`
	ProjectCode  string              `json:"project_code" db:"project_code"`
	ClientID     *int64              `json:"client_id,omitempty" db:"client_id"`
	ClientName   string              `json:"client_name" db:"client_name"`
	TaskID       *int64              `json:"task_id,omitempty" db:"task_id"`
	TaskName     string              `json:"task_name" db:"task_name"`
	CreatedAt    *time.Time          `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at" db:"updated_at"`
}

// Assignment is one business day of a Forecast assignment. ParentID is the
// Forecast assignment id shared by every day of the range.
type Assignment struct {
	ID         int64           `json:"id" db:"id"`
	ParentID   int64           `json:"parent_id" db:"parent_id"`
	PersonID   int64           `json:"person_id" db:"person_id"`
	ProjectID  int64           `json:"project_id" db:"project_id"`
	AssignDate time.Time       `json:"assign_date" db:"assign_date"`
	Allocation decimal.Decimal `json:"allocation" db:"allocation"` // hours per day
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// LegacyEntry is a row of the denormalized harvest_entries table, keyed by
// Harvest ids.
type LegacyEntry struct {
	EntryID            int64               `db:"entry_id"`
	Hours              decimal.Decimal     `db:"hours"`
	SpentDate          time.Time           `db:"spent_date"`
	Billable           bool                `db:"billable"`
	BillableRate       decimal.NullDecimal `db:"billable_rate"`
	EntryAmount        decimal.Decimal     `db:"entry_amount"`
	UserID             *int64              `db:"user_id"`
	UserName           string              `db:"user_name"`
	HarvestProjectID   *int64              `db:"harvest_project_id"`
	HarvestProjectName string              `db:"harvest_project_name"`
	HarvestProjectCode string              `db:"harvest_project_code"`
	ClientID           *int64              `db:"client_id"`
	ClientName         string              `db:"client_name"`
	TaskID             *int64              `db:"task_id"`
	TaskName           string              `db:"task_name"`
	CreatedAt          *time.Time          `db:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at"`
}
