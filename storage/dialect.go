package storage

import (
	"fmt"
	"strings"
)

// Dialect abstracts the SQL syntax differences between SQLite and
// PostgreSQL so the shared query code in BaseStore works on both.
type Dialect interface {
	// Name returns the dialect name ("sqlite" or "postgres").
	Name() string

	// Placeholder returns the parameter placeholder for a 1-based index.
	// SQLite uses ?, PostgreSQL uses $1, $2, ...
	Placeholder(index int) string

	// AutoIncrement returns the auto-incrementing primary key column clause.
	AutoIncrement() string

	// NumericType returns the column type used for decimal quantities.
	NumericType() string

	// UpsertConflict returns the ON CONFLICT clause for the given key columns.
	UpsertConflict(conflictColumns []string) string
}

// SQLiteDialect implements Dialect for SQLite.
type SQLiteDialect struct{}

var _ Dialect = (*SQLiteDialect)(nil)

func (d *SQLiteDialect) Name() string                 { return "sqlite" }
func (d *SQLiteDialect) Placeholder(index int) string { return "?" }
func (d *SQLiteDialect) AutoIncrement() string {
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}
func (d *SQLiteDialect) NumericType() string { return "NUMERIC" }
func (d *SQLiteDialect) UpsertConflict(cols []string) string {
	return fmt.Sprintf("ON CONFLICT (%s)", strings.Join(cols, ", "))
}

// PostgresDialect implements Dialect for PostgreSQL.
type PostgresDialect struct{}

var _ Dialect = (*PostgresDialect)(nil)

func (d *PostgresDialect) Name() string { return "postgres" }
func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}
func (d *PostgresDialect) AutoIncrement() string { return "BIGSERIAL PRIMARY KEY" }
func (d *PostgresDialect) NumericType() string   { return "NUMERIC" }
func (d *PostgresDialect) UpsertConflict(cols []string) string {
	return fmt.Sprintf("ON CONFLICT (%s)", strings.Join(cols, ", "))
}

// inClause builds an "col IN (...)" fragment with dialect placeholders
// starting at the given 1-based index, and appends the ids to args.
// An empty id list produces a clause that matches nothing, preserving the
// distinction between an explicit empty scope and no scope at all.
func inClause(d Dialect, column string, ids []int64, startIndex int, args []interface{}) (string, []interface{}, int) {
	if len(ids) == 0 {
		return "1 = 0", args, startIndex
	}
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		placeholders[i] = d.Placeholder(startIndex + i)
		args = append(args, id)
	}
	clause := fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", "))
	return clause, args, startIndex + len(ids)
}
