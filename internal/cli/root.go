// Package cli is the fern command line: one synchronization per invocation.
package cli

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/pipeline"
	"github.com/spf13/cobra"
)

// RootOptions holds the flags of the sync command.
type RootOptions struct {
	EnvFiles    []string
	LogLevel    string
	FullLoad    bool
	SkipDeletes bool

	People      bool
	Clients     bool
	Tasks       bool
	Projects    bool
	TimeEntries bool
	Assignments bool
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fern [kinds...]",
		Short: "Synchronize Harvest and Forecast into the warehouse",
		Long: `Fetch people, clients, tasks, projects, time entries and assignments from
Harvest and Forecast, reconcile the two identities of every dimension and write
the result to the Postgres warehouse.

Without a selection every kind is synchronized differentially.

Example:
  fern
  fern people projects --full-load
  fern time_entries full_load`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			selection, err := opts.Selection(args)
			if err != nil {
				return err
			}
			return runSync(cmd, opts, selection)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringSliceVar(&opts.EnvFiles, "env-file", []string{".env"}, "env files to load before the environment (missing files are skipped)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "override LOG_LEVEL")

	cmd.Flags().BoolVar(&opts.FullLoad, "full-load", false, "ignore watermarks and fetch everything")
	cmd.Flags().BoolVar(&opts.SkipDeletes, "skip-deletes", false, "do not propagate source deletions")
	cmd.Flags().BoolVar(&opts.People, "people", false, "synchronize people")
	cmd.Flags().BoolVar(&opts.Clients, "clients", false, "synchronize clients")
	cmd.Flags().BoolVar(&opts.Tasks, "tasks", false, "synchronize tasks")
	cmd.Flags().BoolVar(&opts.Projects, "projects", false, "synchronize projects")
	cmd.Flags().BoolVar(&opts.TimeEntries, "time-entries", false, "synchronize time entries")
	cmd.Flags().BoolVar(&opts.Assignments, "assignments", false, "synchronize assignments")

	cmd.AddCommand(NewRunsCommand(opts))

	return cmd
}

// Selection merges the kind flags with positional words. Positional words
// may name kinds or the full_load and skip_deletes switches.
func (o *RootOptions) Selection(args []string) (pipeline.Options, error) {
	selection := pipeline.Options{
		FullLoad:    o.FullLoad,
		SkipDeletes: o.SkipDeletes,
	}

	flagged := []struct {
		set  bool
		kind models.EntityKind
	}{
		{o.People, models.KindPeople},
		{o.Clients, models.KindClients},
		{o.Tasks, models.KindTasks},
		{o.Projects, models.KindProjects},
		{o.TimeEntries, models.KindTimeEntries},
		{o.Assignments, models.KindAssignments},
	}
	for _, f := range flagged {
		if f.set {
			selection.Kinds = appendKind(selection.Kinds, f.kind)
		}
	}

	for _, arg := range args {
		switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(arg)), "-", "_") {
		case "full_load", "full", "fullload":
			selection.FullLoad = true
			continue
		case "skip_deletes", "skipdeletes":
			selection.SkipDeletes = true
			continue
		case "all":
			continue
		}

		kind, ok := models.ParseKind(arg)
		if !ok {
			return selection, fmt.Errorf("unknown kind %q", arg)
		}
		selection.Kinds = appendKind(selection.Kinds, kind)
	}

	return selection, nil
}

func appendKind(kinds []models.EntityKind, kind models.EntityKind) []models.EntityKind {
	for _, k := range kinds {
		if k == kind {
			return kinds
		}
	}
	return append(kinds, kind)
}
