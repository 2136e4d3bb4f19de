package storage

import (
	"database/sql"
	"regexp"
	"strconv"
)

// Dialect isolates what differs between the supported databases.
type Dialect interface {
	// Name is the value accepted in configuration ("sqlite", "postgres").
	Name() string

	// DriverName returns the database/sql driver name.
	DriverName() string

	// DSN builds the data source name from configuration.
	DSN(cfg Config) string

	// Rebind converts ? placeholders to the dialect syntax.
	Rebind(query string) string

	// ForUpdate is appended to reads that precede a conditional write in
	// the same transaction.
	ForUpdate() string

	// Configure applies pool settings after opening.
	Configure(db *sql.DB) error

	// IsUniqueViolation reports whether err comes from a unique index.
	IsUniqueViolation(err error) bool

	// MigrationsDir is the subdirectory of migrations/ for this dialect.
	MigrationsDir() string
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, bool) {
	switch name {
	case "sqlite", "":
		return SQLite{}, true
	case "postgres", "postgresql", "pgx":
		return Postgres{}, true
	}
	return nil, false
}

var placeholderRegexp = regexp.MustCompile(`\?`)

// rebindNumbered converts ? placeholders to $1, $2, ...
func rebindNumbered(query string) string {
	n := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(string) string {
		n++
		return "$" + strconv.Itoa(n)
	})
}
