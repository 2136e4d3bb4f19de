// Package storage is the relational store behind FamBudget: users,
// families, categories, movements, goals, contributions and auth
// identities, on SQLite or PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Config selects and locates the database.
type Config struct {
	Driver string // "sqlite" or "postgres"
	Path   string // SQLite file
	URL    string // PostgreSQL connection string

	// Now overrides the clock used for created_at stamps.
	Now func() time.Time
}

// Store owns the connection pool. Its embedded Queries run outside any
// transaction; InTx hands a transaction-bound Queries to the callback.
type Store struct {
	*Queries
	db      *sql.DB
	dialect Dialect
}

// Open connects, applies migrations and returns a ready Store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	d, ok := DialectFor(cfg.Driver)
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if d.Name() == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := d.DSN(cfg)
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.Name(), err)
	}
	if err := d.Configure(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure %s connection: %w", d.Name(), err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	slog.InfoContext(ctx, "Database ready", "driver", d.Name())
	return &Store{
		Queries: &Queries{db: db, dialect: d, now: now},
		db:      db,
		dialect: d,
	}, nil
}

func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise; fn's error is returned unchanged.
func (s *Store) InTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&Queries{db: tx, dialect: s.dialect, now: s.now}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
