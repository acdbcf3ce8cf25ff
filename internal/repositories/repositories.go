// Package repositories wires the warehouse repositories into the stores a
// pipeline run needs.
package repositories

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/internal/repositories/assignment"
	"github.com/Ramsey-B/fern/internal/repositories/client"
	"github.com/Ramsey-B/fern/internal/repositories/person"
	"github.com/Ramsey-B/fern/internal/repositories/project"
	"github.com/Ramsey-B/fern/internal/repositories/runlog"
	"github.com/Ramsey-B/fern/internal/repositories/task"
	"github.com/Ramsey-B/fern/internal/repositories/timeentry"
	"github.com/Ramsey-B/fern/internal/repositories/watermark"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/pipeline"
)

type Repositories struct {
	People      *person.Repository
	Clients     *client.Repository
	Projects    *project.Repository
	Tasks       *task.Repository
	TimeEntries *timeentry.Repository
	Assignments *assignment.Repository
	RunLog      *runlog.Repository
	Watermarks  *watermark.Repository
}

func New(db database.DB, logger ectologger.Logger) *Repositories {
	return &Repositories{
		People:      person.NewRepository(db, logger),
		Clients:     client.NewRepository(db, logger),
		Projects:    project.NewRepository(db, logger),
		Tasks:       task.NewRepository(db, logger),
		TimeEntries: timeentry.NewRepository(db, logger),
		Assignments: assignment.NewRepository(db, logger),
		RunLog:      runlog.NewRepository(db, logger),
		Watermarks:  watermark.NewRepository(db, logger),
	}
}

func (r *Repositories) Stores() pipeline.Stores {
	return pipeline.Stores{
		People:      r.People,
		Clients:     r.Clients,
		Projects:    r.Projects,
		Tasks:       r.Tasks,
		TimeEntries: r.TimeEntries,
		Assignments: r.Assignments,
		RunLog:      r.RunLog,
		Memo:        r,
		Watermarks:  r.Watermarks,
	}
}

func (r *Repositories) AllPeople(ctx context.Context) ([]models.Person, error) {
	return r.People.AllPeople(ctx)
}

func (r *Repositories) AllClients(ctx context.Context) ([]models.Client, error) {
	return r.Clients.AllClients(ctx)
}

func (r *Repositories) AllProjects(ctx context.Context) ([]models.Project, error) {
	return r.Projects.AllProjects(ctx)
}

func (r *Repositories) AllTasks(ctx context.Context) ([]models.Task, error) {
	return r.Tasks.AllTasks(ctx)
}
