// Package migrate runs the embedded schema migrations with golang-migrate.
package migrate

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed sql/*.sql
var migrationFS embed.FS

const defaultMigrationsTable = "schema_migrations"

// ErrNoChange is returned when Up/Down has nothing to do.
var ErrNoChange = migrate.ErrNoChange

// Status is the schema version recorded in the migrations table.
type Status struct {
	Version uint
	Dirty   bool
	// Applied is false when no migration has run yet.
	Applied bool
}

// Manager applies the embedded migrations to one database.
type Manager struct {
	dsn             string
	migrationsTable string
}

// Option configures Manager.
type Option func(*Manager)

// WithMigrationsTable overrides the default migrations bookkeeping table.
func WithMigrationsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.migrationsTable = name
		}
	}
}

// NewManager constructs a Manager for dsn.
func NewManager(dsn string, opts ...Option) (*Manager, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	m := &Manager{dsn: dsn, migrationsTable: defaultMigrationsTable}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Up applies all pending migrations. It returns nil when already current.
func (m *Manager) Up() error {
	return m.run(func(mg *migrate.Migrate) error {
		if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	})
}

// Down rolls back the most recent migration.
func (m *Manager) Down() error {
	return m.run(func(mg *migrate.Migrate) error {
		return mg.Steps(-1)
	})
}

// Status reports the current schema version.
func (m *Manager) Status() (Status, error) {
	var st Status
	err := m.run(func(mg *migrate.Migrate) error {
		v, dirty, err := mg.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		if err != nil {
			return err
		}
		st = Status{Version: v, Dirty: dirty, Applied: true}
		return nil
	})
	return st, err
}

func (m *Manager) run(fn func(*migrate.Migrate) error) error {
	src, err := Source()
	if err != nil {
		return err
	}
	db, err := sql.Open("pgx", m.dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: m.migrationsTable})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}
	mg, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = mg.Close() }()
	return fn(mg)
}

// Source exposes the embedded migrations as a golang-migrate source.
func Source() (source.Driver, error) {
	src, err := iofs.New(migrationFS, "sql")
	if err != nil {
		return nil, fmt.Errorf("migrate source: %w", err)
	}
	return src, nil
}
