package storage

import (
	"database/sql"
	"errors"
	"net/url"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLite is the default dialect, backed by the pure Go modernc driver.
type SQLite struct{}

func (SQLite) Name() string       { return "sqlite" }
func (SQLite) DriverName() string { return "sqlite" }

// DSN enables foreign keys, WAL and a busy timeout on every connection, and
// makes transactions take the write lock at BEGIN so that two concurrent
// contributions serialize instead of failing on lock upgrade.
func (SQLite) DSN(cfg Config) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Set("_txlock", "immediate")
	return "file:" + cfg.Path + "?" + q.Encode()
}

func (SQLite) Rebind(query string) string { return query }

func (SQLite) ForUpdate() string { return "" }

func (SQLite) Configure(db *sql.DB) error {
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)
	return nil
}

func (SQLite) IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE constraint failed")
	}
	return false
}

func (SQLite) MigrationsDir() string { return "sqlite" }
