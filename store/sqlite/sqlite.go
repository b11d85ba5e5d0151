/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists the staffing base data (clients, engineers, projects,
  allocations) and the scenario change logs. Everything the engine reads
  comes from here; scenarios never write base rows.

INTERFACES IMPLEMENTED:
  staffing.DatasetReader: Base snapshot for reports and replay
  staffing.ScenarioStore: Scenario headers
  generic.LogStore:       Scenario change logs (append-only)

APPEND-ONLY ENFORCEMENT:
  scenario_changes is only ever INSERTed into. Rows disappear only when
  their scenario is removed (ON DELETE CASCADE) or on Reset.

KEY TABLES:
  cohorts, engineers, clients, contacts: Reference data
  projects, allocations:                 Billable work
  scenarios, scenario_changes:           What-if logs

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Writes are serialised; a change is
  appended as one INSERT, so readers see the log before or after it.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) and foreign keys on.
  ":memory:" databases are pinned to a single connection so every query
  sees the same database.

MIGRATION:
  Schema is versioned under migrations/ and applied on New() with
  golang-migrate from the embedded files.

USAGE:
  store, err := sqlite.New("./data/staffing.db", sqlite.WithLogger(entry))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - entities.go: Base data CRUD and allocation validation
  - scenarios.go: Scenario headers and the change log
  - dataset.go: Snapshot loading and Reset
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements all storage interfaces using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	log *logrus.Entry
}

type Option func(*Store)

// WithLogger sets the entry used for store diagnostics.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Store) { s.log = l.WithField("component", "sqlite") }
}

// New opens (or creates) the database at dbPath and migrates it.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	for _, opt := range opts {
		opt(store)
	}
	if store.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		store.log = logrus.NewEntry(l).WithField("component", "sqlite")
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	store.log.WithField("path", dbPath).Debug("database ready")
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the embedded migrations. The migrate instance is not
// closed: that would close s.db with it.
func (s *Store) migrate() error {
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// requireAffected turns a zero-row delete into a not-found error.
func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
