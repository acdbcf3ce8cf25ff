package expand

import (
	"errors"
	"iter"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/shopspring/decimal"
)

var ErrMissingAllocation = errors.New("assignment has no allocation")

var secondsPerHour = decimal.NewFromInt(3600)

// Days yields every calendar day from start to end inclusive. The sequence can
// be ranged over any number of times.
func Days(start, end time.Time) iter.Seq[time.Time] {
	first := truncate(start)
	last := truncate(end)
	return func(yield func(time.Time) bool) {
		for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
			if !yield(day) {
				return
			}
		}
	}
}

// Weekdays keeps Monday through Friday. Holidays are not excluded.
func Weekdays(days iter.Seq[time.Time]) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for day := range days {
			if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
				continue
			}
			if !yield(day) {
				return
			}
		}
	}
}

// Input is a Forecast assignment with its references already resolved to
// warehouse ids. PersonID is nil for placeholder assignments.
type Input struct {
	ParentID   int64
	PersonID   *int64
	ProjectID  int64
	Start      time.Time
	End        time.Time
	Allocation *int64 // seconds per day
	UpdatedAt  time.Time
}

// Expand produces one row per business day of the range. Placeholders expand
// to no rows.
func Expand(in Input) ([]models.Assignment, error) {
	if in.Allocation == nil {
		return nil, ErrMissingAllocation
	}
	if in.PersonID == nil {
		return []models.Assignment{}, nil
	}

	hours := decimal.NewFromInt(*in.Allocation).Div(secondsPerHour)

	var rows []models.Assignment
	for day := range Weekdays(Days(in.Start, in.End)) {
		rows = append(rows, models.Assignment{
			ParentID:   in.ParentID,
			PersonID:   *in.PersonID,
			ProjectID:  in.ProjectID,
			AssignDate: day,
			Allocation: hours,
			UpdatedAt:  in.UpdatedAt,
		})
	}
	if rows == nil {
		rows = []models.Assignment{}
	}
	return rows, nil
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
