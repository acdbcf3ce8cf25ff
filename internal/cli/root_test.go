package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootOptions_Selection(t *testing.T) {
	tests := []struct {
		name            string
		opts            RootOptions
		args            []string
		wantKinds       []models.EntityKind
		wantFullLoad    bool
		wantSkipDeletes bool
	}{
		{
			name: "nothing selected",
		},
		{
			name:      "flags",
			opts:      RootOptions{Projects: true, People: true},
			wantKinds: []models.EntityKind{models.KindPeople, models.KindProjects},
		},
		{
			name:         "positional words",
			args:         []string{"time_entries", "full_load"},
			wantKinds:    []models.EntityKind{models.KindTimeEntries},
			wantFullLoad: true,
		},
		{
			name:            "dashed spellings and duplicates",
			opts:            RootOptions{TimeEntries: true},
			args:            []string{"time-entries", "Skip-Deletes", "assignment"},
			wantKinds:       []models.EntityKind{models.KindTimeEntries, models.KindAssignments},
			wantSkipDeletes: true,
		},
		{
			name:         "full load flag",
			opts:         RootOptions{FullLoad: true},
			args:         []string{"all"},
			wantFullLoad: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			selection, err := tt.opts.Selection(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKinds, selection.Kinds)
			assert.Equal(t, tt.wantFullLoad, selection.FullLoad)
			assert.Equal(t, tt.wantSkipDeletes, selection.SkipDeletes)
		})
	}
}

func TestRootOptions_SelectionRejectsUnknownWords(t *testing.T) {
	opts := RootOptions{}
	_, err := opts.Selection([]string{"people", "invoices"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"invoices"`)
}

func TestNewRootCommand_Flags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"full-load", "skip-deletes", "people", "clients", "tasks", "projects", "time-entries", "assignments"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("env-file"))

	runs, _, err := cmd.Find([]string{"runs"})
	require.NoError(t, err)
	assert.Equal(t, "runs", runs.Name())
}

func TestRenderRuns(t *testing.T) {
	at := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	entries := []models.RunLog{
		{Description: models.LoadCompletedDescription, Datetime: at, Success: true, Documents: database.NewJSONB(map[string]any{"run_id": "r1"})},
		{Description: "Time Entry Error - id: 77", Datetime: at, Success: false, Documents: database.NewJSONB(map[string]any{"key": "77"})},
	}

	var all bytes.Buffer
	require.NoError(t, renderRuns(&all, entries, false))
	assert.Contains(t, all.String(), "load completed")
	assert.Contains(t, all.String(), "Time Entry Error - id: 77")
	assert.Contains(t, all.String(), `{"run_id":"r1"}`)

	var failed bytes.Buffer
	require.NoError(t, renderRuns(&failed, entries, true))
	assert.NotContains(t, failed.String(), "load completed")
	assert.Contains(t, failed.String(), "2024-03-15T12:00:00Z")
}
