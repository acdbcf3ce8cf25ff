// Package memo holds the run-scoped snapshot of warehouse dimensions used to
// translate source ids into warehouse ids.
package memo

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Loader reads full dimension tables from the warehouse.
type Loader interface {
	AllPeople(ctx context.Context) ([]models.Person, error)
	AllClients(ctx context.Context) ([]models.Client, error)
	AllProjects(ctx context.Context) ([]models.Project, error)
	AllTasks(ctx context.Context) ([]models.Task, error)
}

type index[T any] struct {
	byID       map[int64]T
	byHarvest  map[int64]T
	byForecast map[int64]T
}

func newIndex[T any](rows []T, id func(T) int64, harvestID, forecastID func(T) *int64) index[T] {
	idx := index[T]{
		byID:       make(map[int64]T, len(rows)),
		byHarvest:  make(map[int64]T, len(rows)),
		byForecast: make(map[int64]T, len(rows)),
	}
	for _, row := range rows {
		idx.byID[id(row)] = row
		if harvestID != nil {
			if h := harvestID(row); h != nil {
				idx.byHarvest[*h] = row
			}
		}
		if forecastID != nil {
			if f := forecastID(row); f != nil {
				idx.byForecast[*f] = row
			}
		}
	}
	return idx
}

func lookup[T any](m map[int64]T, key int64) (T, bool) {
	v, ok := m[key]
	return v, ok
}

// Cache is created empty for each run and discarded at the end of it. It is
// not safe for concurrent use; the run is sequential.
type Cache struct {
	loader Loader
	logger ectologger.Logger

	people   index[models.Person]
	clients  index[models.Client]
	projects index[models.Project]
	tasks    index[models.Task]
}

func New(loader Loader, logger ectologger.Logger) *Cache {
	return &Cache{
		loader:   loader,
		logger:   logger,
		people:   newIndex[models.Person](nil, nil, nil, nil),
		clients:  newIndex[models.Client](nil, nil, nil, nil),
		projects: newIndex[models.Project](nil, nil, nil, nil),
		tasks:    newIndex[models.Task](nil, nil, nil, nil),
	}
}

// Refresh reloads the given dimension kinds. Fact kinds are ignored.
func (c *Cache) Refresh(ctx context.Context, kinds ...models.EntityKind) error {
	ctx, span := tracing.StartSpan(ctx, "memo.Cache.Refresh")
	defer span.End()

	for _, kind := range kinds {
		span.AddEvent("refresh", trace.WithAttributes(attribute.String("kind", string(kind))))
		var (
			count int
			err   error
		)
		switch kind {
		case models.KindPeople:
			var rows []models.Person
			if rows, err = c.loader.AllPeople(ctx); err == nil {
				c.people = newIndex(rows, func(p models.Person) int64 { return p.ID },
					func(p models.Person) *int64 { return p.HarvestID },
					func(p models.Person) *int64 { return p.ForecastID })
				count = len(rows)
			}
		case models.KindClients:
			var rows []models.Client
			if rows, err = c.loader.AllClients(ctx); err == nil {
				c.clients = newIndex(rows, func(r models.Client) int64 { return r.ID },
					func(r models.Client) *int64 { return r.HarvestID },
					func(r models.Client) *int64 { return r.ForecastID })
				count = len(rows)
			}
		case models.KindProjects:
			var rows []models.Project
			if rows, err = c.loader.AllProjects(ctx); err == nil {
				c.projects = newIndex(rows, func(r models.Project) int64 { return r.ID },
					func(r models.Project) *int64 { return r.HarvestID },
					func(r models.Project) *int64 { return r.ForecastID })
				count = len(rows)
			}
		case models.KindTasks:
			var rows []models.Task
			if rows, err = c.loader.AllTasks(ctx); err == nil {
				c.tasks = newIndex(rows, func(r models.Task) int64 { return r.ID }, nil, nil)
				count = len(rows)
			}
		default:
			continue
		}
		if err != nil {
			tracing.RecordError(span, err)
			return fmt.Errorf("failed to refresh %s cache: %w", kind, err)
		}
		c.logger.WithContext(ctx).WithFields(map[string]any{"kind": kind, "rows": count}).Debug("Refreshed memo cache")
	}
	return nil
}

func (c *Cache) PersonByID(id int64) (models.Person, bool) { return lookup(c.people.byID, id) }
func (c *Cache) PersonByHarvestID(id int64) (models.Person, bool) {
	return lookup(c.people.byHarvest, id)
}
func (c *Cache) PersonByForecastID(id int64) (models.Person, bool) {
	return lookup(c.people.byForecast, id)
}

func (c *Cache) ClientByID(id int64) (models.Client, bool) { return lookup(c.clients.byID, id) }
func (c *Cache) ClientByHarvestID(id int64) (models.Client, bool) {
	return lookup(c.clients.byHarvest, id)
}
func (c *Cache) ClientByForecastID(id int64) (models.Client, bool) {
	return lookup(c.clients.byForecast, id)
}

func (c *Cache) ProjectByID(id int64) (models.Project, bool) { return lookup(c.projects.byID, id) }
func (c *Cache) ProjectByHarvestID(id int64) (models.Project, bool) {
	return lookup(c.projects.byHarvest, id)
}
func (c *Cache) ProjectByForecastID(id int64) (models.Project, bool) {
	return lookup(c.projects.byForecast, id)
}

func (c *Cache) TaskByID(id int64) (models.Task, bool) { return lookup(c.tasks.byID, id) }

// Resolver returns a Harvest id → warehouse id function for a dual-identity
// kind.
func (c *Cache) Resolver(kind models.EntityKind) func(harvestID int64) (int64, bool) {
	return func(harvestID int64) (int64, bool) {
		switch kind {
		case models.KindPeople:
			p, ok := c.PersonByHarvestID(harvestID)
			return p.ID, ok
		case models.KindClients:
			r, ok := c.ClientByHarvestID(harvestID)
			return r.ID, ok
		case models.KindProjects:
			r, ok := c.ProjectByHarvestID(harvestID)
			return r.ID, ok
		default:
			return 0, false
		}
	}
}

// Len reports how many rows of a kind are cached.
func (c *Cache) Len(kind models.EntityKind) int {
	switch kind {
	case models.KindPeople:
		return len(c.people.byID)
	case models.KindClients:
		return len(c.clients.byID)
	case models.KindProjects:
		return len(c.projects.byID)
	case models.KindTasks:
		return len(c.tasks.byID)
	default:
		return 0
	}
}
