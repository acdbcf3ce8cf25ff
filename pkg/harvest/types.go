package harvest

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/shopspring/decimal"
)

// Ref is a nested {id, name, code} reference as Harvest embeds them.
type Ref struct {
	ID   int64  `json:"id" validate:"required"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type User struct {
	ID             int64     `json:"id" validate:"required"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	Timezone       string    `json:"timezone"`
	WeeklyCapacity *int64    `json:"weekly_capacity"`
	IsContractor   bool      `json:"is_contractor"`
	IsActive       bool      `json:"is_active"`
	Roles          []string  `json:"roles"`
	AvatarURL      string    `json:"avatar_url"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" validate:"required"`
}

type Client struct {
	ID        int64     `json:"id" validate:"required"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at" validate:"required"`
}

type Project struct {
	ID              int64               `json:"id" validate:"required"`
	Name            string              `json:"name"`
	Code            string              `json:"code"`
	Client          *Ref                `json:"client"`
	IsActive        bool                `json:"is_active"`
	IsBillable      bool                `json:"is_billable"`
	Budget          decimal.NullDecimal `json:"budget"`
	BudgetIsMonthly bool                `json:"budget_is_monthly"`
	StartsOn        models.Date         `json:"starts_on"`
	EndsOn          models.Date         `json:"ends_on"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at" validate:"required"`
}

type Task struct {
	ID        int64     `json:"id" validate:"required"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at" validate:"required"`
}

type TimeEntry struct {
	ID           int64               `json:"id" validate:"required"`
	SpentDate    models.Date         `json:"spent_date" validate:"required"`
	Hours        decimal.Decimal     `json:"hours"`
	Billable     bool                `json:"billable"`
	BillableRate decimal.NullDecimal `json:"billable_rate"`
	IsRunning    bool                `json:"is_running"`
	User         Ref                 `json:"user" validate:"required"`
	Client       Ref                 `json:"client" validate:"required"`
	Project      Ref                 `json:"project" validate:"required"`
	Task         Ref                 `json:"task" validate:"required"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at" validate:"required"`
}

func (u User) Key() int64      { return u.ID }
func (c Client) Key() int64    { return c.ID }
func (p Project) Key() int64   { return p.ID }
func (t Task) Key() int64      { return t.ID }
func (e TimeEntry) Key() int64 { return e.ID }
