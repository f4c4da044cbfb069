// Package migrations embeds the schema for both store backends and applies it
// with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Up applies all pending Postgres migrations to the database at databaseURL.
func Up(databaseURL string) error {
	m, err := newPostgres(databaseURL)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	return run(m.Up)
}

// Down rolls back every Postgres migration.
func Down(databaseURL string) error {
	m, err := newPostgres(databaseURL)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	return run(m.Down)
}

// UpSQLite applies the SQLite schema to an open database. The handle stays
// owned by the caller.
func UpSQLite(db *sql.DB) error {
	src, err := iofs.New(files, "sqlite")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("sqlite3 migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("migrate.NewWithInstance: %w", err)
	}
	return run(m.Up)
}

func newPostgres(databaseURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(files, "postgres")
	if err != nil {
		return nil, fmt.Errorf("migrations source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("migrate.NewWithSourceInstance: %w", err)
	}
	return m, nil
}

func run(step func() error) error {
	if err := step(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
