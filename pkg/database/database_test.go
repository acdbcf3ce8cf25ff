package database

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictClause(t *testing.T) {
	tests := []struct {
		name     string
		conflict Conflict
		expected string
	}{
		{
			name:     "do nothing",
			conflict: Conflict{Table: "tasks", Columns: []string{"id"}},
			expected: " ON CONFLICT (id) DO NOTHING",
		},
		{
			name: "overwrite with guard",
			conflict: Conflict{
				Table:   "tasks",
				Columns: []string{"id"},
				Set:     append(Overwrite("name"), Set("updated_at", Greatest("tasks", "updated_at"))),
				Where:   NotOlder("tasks", "updated_at"),
			},
			expected: " ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = GREATEST(tasks.updated_at, EXCLUDED.updated_at)" +
				" WHERE (tasks.updated_at IS NULL OR EXCLUDED.updated_at >= tasks.updated_at)",
		},
		{
			name: "preserve nullable identity",
			conflict: Conflict{
				Table:   "people",
				Columns: []string{"harvest_id"},
				Set:     []Assignment{Set("forecast_id", Preserve("people", "forecast_id"))},
			},
			expected: " ON CONFLICT (harvest_id) DO UPDATE SET forecast_id = COALESCE(EXCLUDED.forecast_id, people.forecast_id)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.conflict.Clause())
		})
	}
}

func TestJSONB(t *testing.T) {
	var doc JSONB[map[string]int]
	require.NoError(t, doc.Scan([]byte(`{"people":3}`)))
	assert.Equal(t, 3, doc.GetValue()["people"])

	require.NoError(t, doc.Scan(nil))
	assert.Nil(t, doc.GetValue())

	assert.Error(t, doc.Scan(42))

	value, err := NewJSONB(map[string]int{"clients": 1}).Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"clients":1}`, string(value.([]byte)))
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, IsConnectionError(nil))
	assert.False(t, IsConnectionError(errors.New("duplicate key")))
	assert.True(t, IsConnectionError(driver.ErrBadConn))
	assert.True(t, IsConnectionError(fmt.Errorf("exec: %w", sql.ErrConnDone)))
	assert.True(t, IsConnectionError(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
}

func TestGetLatestVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000001_init.up.sql", "000001_init.down.sql", "000003_legacy.up.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}

	latest, err := getLatestVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, latest)

	_, err = getLatestVersion(t.TempDir())
	assert.Error(t, err)
}

func TestHTTPError(t *testing.T) {
	unavailable := HTTPError(&net.OpError{Op: "dial", Err: errors.New("connection refused")}, "failed to upsert person")
	assert.Equal(t, http.StatusServiceUnavailable, httperror.GetStatusCode(unavailable))

	failed := HTTPError(errors.New("pq: duplicate key value"), "failed to upsert person")
	assert.Equal(t, http.StatusInternalServerError, httperror.GetStatusCode(failed))
	assert.Contains(t, failed.Error(), "duplicate key")
}
