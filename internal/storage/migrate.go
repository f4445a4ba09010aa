package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// schemaTable records which ledger migrations have been applied.
const schemaTable = "ledger_schema_migrations"

//go:embed migrations/*.sql
var ledgerMigrations embed.FS

// ErrDirtySchema means a ledger migration stopped halfway. The database has
// to be repaired by hand before the repository will open it.
var ErrDirtySchema = errors.New("ledger schema is dirty")

// migrateLedgerSchema applies pending ledger migrations and returns the
// resulting version, which must be the newest embedded one.
func migrateLedgerSchema(dbPath string) (uint, error) {
	src, err := iofs.New(ledgerMigrations, "migrations")
	if err != nil {
		return 0, fmt.Errorf("load ledger migrations: %w", err)
	}
	want, err := newestMigration(src)
	if err != nil {
		return 0, err
	}

	// migrate closes the handle it is given, so it gets its own.
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open migration database: %w", err)
	}
	defer conn.Close()

	driver, err := sqlite.WithInstance(conn, &sqlite.Config{MigrationsTable: schemaTable})
	if err != nil {
		return 0, fmt.Errorf("create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply ledger migrations: %w", err)
	}

	got, dirty, err := m.Version()
	switch {
	case err != nil:
		return 0, fmt.Errorf("read ledger schema version: %w", err)
	case dirty:
		return got, fmt.Errorf("%w at version %d", ErrDirtySchema, got)
	case got != want:
		return got, fmt.Errorf("ledger schema at version %d, binary expects %d", got, want)
	}
	return got, nil
}

func newestMigration(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("no ledger migrations embedded: %w", err)
	}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		if err != nil {
			return 0, fmt.Errorf("scan ledger migrations: %w", err)
		}
		v = next
	}
}
