package reconcile

import (
	"errors"
	"fmt"

	"github.com/Ramsey-B/fern/pkg/models"
)

var ErrClientUnresolved = errors.New("orphan project client could not be resolved")

// Link is a residual Source B record whose shared key already names a
// warehouse row; the row only needs its Forecast id set.
type Link[B any] struct {
	Record      B
	WarehouseID int64
}

type Detection[B any] struct {
	Links   []Link[B]
	Orphans []B
}

// Resolver maps a Harvest id to the warehouse id of the row holding it.
type Resolver func(harvestID int64) (int64, bool)

// Detect splits residual records into links and orphans. Every record lands
// in exactly one of the two.
func Detect[B any](residual []B, key func(B) *int64, resolve Resolver) Detection[B] {
	var detection Detection[B]
	for _, record := range residual {
		if k := key(record); k != nil {
			if id, ok := resolve(*k); ok {
				detection.Links = append(detection.Links, Link[B]{Record: record, WarehouseID: id})
				continue
			}
		}
		detection.Orphans = append(detection.Orphans, record)
	}
	return detection
}

// ClientLookup finds a warehouse client by its Forecast id.
type ClientLookup interface {
	ClientByForecastID(forecastID int64) (models.Client, bool)
}

type ClientRef struct {
	ID   int64
	Name string
}

// ResolveOrphanClient picks the warehouse client for a Forecast-only project.
// A nil reference gets the fallback; a reference that cannot be resolved is
// an error and never falls back.
func ResolveOrphanClient(forecastClientID *int64, clients ClientLookup, fallback ClientRef) (ClientRef, error) {
	if forecastClientID == nil {
		return fallback, nil
	}
	client, ok := clients.ClientByForecastID(*forecastClientID)
	if !ok {
		return ClientRef{}, fmt.Errorf("%w: forecast client %d", ErrClientUnresolved, *forecastClientID)
	}
	return ClientRef{ID: client.ID, Name: client.Name}, nil
}
