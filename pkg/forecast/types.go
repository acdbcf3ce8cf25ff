package forecast

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

type Person struct {
	ID            int64     `json:"id" validate:"required"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Email         string    `json:"email"`
	Roles         []string  `json:"roles"`
	AvatarURL     string    `json:"avatar_url"`
	Archived      bool      `json:"archived"`
	HarvestUserID *int64    `json:"harvest_user_id"`
	HarvestID     *int64    `json:"harvest_id"`
	UpdatedAt     time.Time `json:"updated_at" validate:"required"`
}

// SharedKey is the Harvest user id this person is linked to, if any. Older
// payloads call the field harvest_id.
func (p Person) SharedKey() *int64 {
	if p.HarvestUserID != nil {
		return p.HarvestUserID
	}
	return p.HarvestID
}

type Client struct {
	ID        int64     `json:"id" validate:"required"`
	Name      string    `json:"name"`
	HarvestID *int64    `json:"harvest_id"`
	Archived  bool      `json:"archived"`
	UpdatedAt time.Time `json:"updated_at" validate:"required"`
}

func (c Client) SharedKey() *int64 { return c.HarvestID }

type Project struct {
	ID        int64       `json:"id" validate:"required"`
	Name      string      `json:"name"`
	Code      string      `json:"code"`
	ClientID  *int64      `json:"client_id"` // Forecast client id
	HarvestID *int64      `json:"harvest_id"`
	Archived  bool        `json:"archived"`
	StartDate models.Date `json:"start_date"`
	EndDate   models.Date `json:"end_date"`
	UpdatedAt time.Time   `json:"updated_at" validate:"required"`
}

func (p Project) SharedKey() *int64 { return p.HarvestID }

// Assignment allocates a person (or placeholder) to a project for a date
// range. Allocation is seconds per day.
type Assignment struct {
	ID            int64       `json:"id" validate:"required"`
	StartDate     models.Date `json:"start_date" validate:"required"`
	EndDate       models.Date `json:"end_date" validate:"required"`
	Allocation    *int64      `json:"allocation"`
	PersonID      *int64      `json:"person_id"`
	PlaceholderID *int64      `json:"placeholder_id"`
	ProjectID     int64       `json:"project_id" validate:"required"`
	Notes         string      `json:"notes"`
	UpdatedAt     time.Time   `json:"updated_at" validate:"required"`
}

func (p Person) Key() int64     { return p.ID }
func (c Client) Key() int64     { return c.ID }
func (p Project) Key() int64    { return p.ID }
func (a Assignment) Key() int64 { return a.ID }

func (p Person) Updated() time.Time     { return p.UpdatedAt }
func (c Client) Updated() time.Time     { return c.UpdatedAt }
func (p Project) Updated() time.Time    { return p.UpdatedAt }
func (a Assignment) Updated() time.Time { return a.UpdatedAt }
