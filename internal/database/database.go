// Package database opens the single SQLite file that backs the inventory,
// the provisioning journal and the audit log, and tracks each component's
// schema version inside it.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"nathanbeddoewebdev/fleet/internal/config"
)

// EnvPath overrides the database location for every command.
const EnvPath = "FLEET_DB"

const dbFile = "fleet.db"

var pathOverride string

// SetPath overrides the default database path. Intended for testing.
func SetPath(p string) { pathOverride = p }

// ResetPath clears the path override. Intended for testing.
func ResetPath() { pathOverride = "" }

// DefaultPath resolves the database file: the test override, then
// $FLEET_DB, then fleet.db next to the settings file.
func DefaultPath() (string, error) {
	if pathOverride != "" {
		return pathOverride, nil
	}
	if p := os.Getenv(EnvPath); p != "" {
		return p, nil
	}
	dir, err := config.Dir()
	if err != nil {
		return "", fmt.Errorf("database: %w", err)
	}
	return filepath.Join(dir, dbFile), nil
}

// Open opens a SQLite database at path, creating its directory.
//
// Orchestration fans out writes from many goroutines, so the pool is held to
// one connection and SQLite waits on a busy lock instead of failing.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("database: create %s: %w", dir, err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database: connect %s: %w", path, err)
	}
	return db, nil
}

// Migrate brings component's tables up to date. steps[i] is the DDL for
// schema version i+1; only steps above the recorded version run, each in its
// own transaction.
func Migrate(db *sql.DB, component string, steps ...string) error {
	if _, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS schema_versions (
            component TEXT    PRIMARY KEY,
            version   INTEGER NOT NULL
        )`); err != nil {
		return fmt.Errorf("%s: schema versions: %w", component, err)
	}

	current, err := Version(db, component)
	if err != nil {
		return err
	}
	for i := current; i < len(steps); i++ {
		if err := apply(db, component, i+1, steps[i]); err != nil {
			return err
		}
		log.Debug().Str("component", component).Int("version", i+1).Msg("schema migrated")
	}
	return nil
}

// Version reports component's recorded schema version, 0 if none.
func Version(db *sql.DB, component string) (int, error) {
	var v int
	err := db.QueryRow(`SELECT version FROM schema_versions WHERE component = ?`, component).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: read schema version: %w", component, err)
	}
	return v, nil
}

func apply(db *sql.DB, component string, version int, ddl string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%s: migration %d: %w", component, version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(ddl); err != nil {
		return fmt.Errorf("%s: migration %d failed: %w", component, version, err)
	}
	if _, err := tx.Exec(`
        INSERT INTO schema_versions (component, version) VALUES (?, ?)
        ON CONFLICT(component) DO UPDATE SET version = excluded.version`, component, version); err != nil {
		return fmt.Errorf("%s: record migration %d: %w", component, version, err)
	}
	return tx.Commit()
}
