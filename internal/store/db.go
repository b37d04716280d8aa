package store

import (
	"context"
	"database/sql"
)

// DBTX is the query surface the postgres stores run against. Both *sql.DB and
// *sql.Tx satisfy it, so a store constructed over a transaction (via WithTx)
// joins that transaction transparently.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
