package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Ramsey-B/fern/internal/repositories/runlog"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/spf13/cobra"
)

type RunsOptions struct {
	*RootOptions
	Limit  int
	Errors bool
}

// NewRunsCommand prints the newest run log rows.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "runs",
		Short:         "Show the newest run log entries",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showRuns(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of entries to show")
	cmd.Flags().BoolVar(&opts.Errors, "errors", false, "only show failed entries")

	return cmd
}

func showRuns(cmd *cobra.Command, opts *RunsOptions) error {
	env, err := loadEnvironment(opts.RootOptions)
	if err != nil {
		return err
	}
	defer env.sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := database.Open(ctx, database.ConnectionConfig{
		Driver: env.cfg.DatabaseDriver,
		DSN:    env.cfg.DatabaseDSN(),
	}, env.logger)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := runlog.NewRepository(db, env.logger).Recent(ctx, opts.Limit)
	if err != nil {
		return err
	}

	return renderRuns(cmd.OutOrStdout(), entries, opts.Errors)
}

func renderRuns(w io.Writer, entries []models.RunLog, errorsOnly bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "time\tsuccess\tdescription\tdocuments")
	for _, entry := range entries {
		if errorsOnly && entry.Success {
			continue
		}
		documents, err := json.Marshal(entry.Documents.GetValue())
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", entry.Datetime.Format(time.RFC3339), entry.Success, entry.Description, documents)
	}
	return tw.Flush()
}
