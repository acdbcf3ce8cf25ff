package models

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
)

const LoadCompletedDescription = "load completed"

// RunLog is an audit row. One is written per failed record and one per run.
type RunLog struct {
	ID          int64                          `json:"id" db:"id"`
	Description string                         `json:"event_description" db:"event_description"`
	Datetime    time.Time                      `json:"event_datetime" db:"event_datetime"`
	Success     bool                           `json:"event_success" db:"event_success"`
	Documents   database.JSONB[map[string]any] `json:"event_documents" db:"event_documents"`
}
