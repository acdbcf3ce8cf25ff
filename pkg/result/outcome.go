package result

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Ramsey-B/fern/pkg/models"
)

type Status string

const (
	StatusInserted  Status = "inserted"
	StatusUpdated   Status = "updated"
	StatusLinked    Status = "linked"
	StatusMerged    Status = "merged"
	StatusUnchanged Status = "unchanged"
	StatusSkipped   Status = "skipped"
	StatusDeleted   Status = "deleted"
	StatusDetached  Status = "detached"
	StatusFailed    Status = "failed"
)

// Statuses is the column order of the tally table.
var Statuses = []Status{
	StatusInserted,
	StatusUpdated,
	StatusLinked,
	StatusMerged,
	StatusUnchanged,
	StatusSkipped,
	StatusDeleted,
	StatusDetached,
	StatusFailed,
}

type Source string

const (
	SourceHarvest   Source = "harvest"
	SourceForecast  Source = "forecast"
	SourceWarehouse Source = "warehouse"
)

// Outcome is what happened to one record. Key is the record's natural
// identity in its source.
type Outcome struct {
	Kind   models.EntityKind
	Source Source
	Key    string
	Status Status
	Err    error
}

func Ok(kind models.EntityKind, source Source, key int64, status Status) Outcome {
	return Outcome{Kind: kind, Source: source, Key: fmt.Sprint(key), Status: status}
}

func Failed(kind models.EntityKind, source Source, key string, err error) Outcome {
	return Outcome{Kind: kind, Source: source, Key: key, Status: StatusFailed, Err: err}
}

func FailedID(kind models.EntityKind, source Source, key int64, err error) Outcome {
	return Failed(kind, source, fmt.Sprint(key), err)
}

func (o Outcome) IsFailure() bool {
	return o.Status == StatusFailed
}

// Description is the run log description of a failed record, e.g.
// "Forecast Person Entry Error - id: 733333".
func (o Outcome) Description() string {
	prefix := ""
	if o.Source == SourceForecast {
		prefix = "Forecast "
	}
	return fmt.Sprintf("%s%s Error - id: %s", prefix, o.Kind.Label(), o.Key)
}

// IsFatal reports whether err should stop the run: an unreachable or
// rejecting source, an unavailable warehouse, or a cancelled run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var httpErr *httperror.HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	switch httperror.GetStatusCode(httpErr) {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
