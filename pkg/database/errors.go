package database

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

// Querier is satisfied by both DB and Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// HTTPError maps a failed statement to a status-coded error: 503 when the
// warehouse is unreachable, 500 otherwise.
func HTTPError(err error, message string) error {
	if IsConnectionError(err) {
		return httperror.NewHTTPErrorf(http.StatusServiceUnavailable, "%s: warehouse unavailable: %s", message, err.Error())
	}
	return httperror.NewHTTPErrorf(http.StatusInternalServerError, "%s: %s", message, err.Error())
}
