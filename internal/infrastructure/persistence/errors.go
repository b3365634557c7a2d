package persistence

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgUndefinedColumn is the Postgres SQLSTATE for a missing column
const pgUndefinedColumn = "42703"

// IsUndefinedColumn reports whether err comes from a query referencing a
// column the table does not have (Postgres 42703 or SQLite "no such column")
func IsUndefinedColumn(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUndefinedColumn
	}
	msg := err.Error()
	return strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "has no column named") ||
		strings.Contains(msg, "SQLSTATE "+pgUndefinedColumn)
}
