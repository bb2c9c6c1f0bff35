// Package inventory is the persisted source of truth for fleet membership:
// providers, domains, environments, servers, addresses, DNS records and
// services.
//
// Storage is the shared SQLite database resolved by database.DefaultPath.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"nathanbeddoewebdev/fleet/internal/database"
	"nathanbeddoewebdev/fleet/internal/domain"
)

// SQLiteRepository implements the inventory accessor over SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the inventory at the default database path.
func Open() (*SQLiteRepository, error) {
	path, err := database.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	return OpenAt(path)
}

// OpenAt creates or opens the inventory at path and applies the schema.
// Callers run this once at process start before building orchestrators.
func OpenAt(path string) (*SQLiteRepository, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}

	r := &SQLiteRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS providers (
            id         INTEGER PRIMARY KEY AUTOINCREMENT,
            name       TEXT    NOT NULL UNIQUE,
            compute    TEXT    NOT NULL DEFAULT '',
            dns        TEXT    NOT NULL DEFAULT '',
            created_at TEXT    NOT NULL
        );
        CREATE TABLE IF NOT EXISTS domains (
            id                 INTEGER PRIMARY KEY AUTOINCREMENT,
            name               TEXT    NOT NULL UNIQUE,
            provider_id        INTEGER NOT NULL,
            provider_record_id TEXT    NOT NULL DEFAULT '',
            created_at         TEXT    NOT NULL
        );
        CREATE TABLE IF NOT EXISTS environments (
            id                INTEGER PRIMARY KEY AUTOINCREMENT,
            name              TEXT    NOT NULL UNIQUE,
            branch            TEXT    NOT NULL DEFAULT '',
            public_domain_id  INTEGER NOT NULL,
            private_domain_id INTEGER NOT NULL,
            created_at        TEXT    NOT NULL
        );
        CREATE TABLE IF NOT EXISTS servers (
            id                 INTEGER PRIMARY KEY AUTOINCREMENT,
            name               TEXT    NOT NULL,
            status             TEXT    NOT NULL,
            environment_id     INTEGER NOT NULL,
            provider_id        INTEGER NOT NULL,
            provider_record_id TEXT    NOT NULL DEFAULT '',
            image              TEXT    NOT NULL DEFAULT '',
            size               TEXT    NOT NULL DEFAULT '',
            location           TEXT    NOT NULL DEFAULT '',
            firewall_snapshot  TEXT    NOT NULL DEFAULT '',
            created_at         TEXT    NOT NULL,
            updated_at         TEXT    NOT NULL,
            UNIQUE (environment_id, name)
        );
        CREATE INDEX IF NOT EXISTS idx_servers_record ON servers(provider_id, provider_record_id);
        CREATE TABLE IF NOT EXISTS addresses (
            id         INTEGER PRIMARY KEY AUTOINCREMENT,
            server_id  INTEGER NOT NULL,
            ip         TEXT    NOT NULL UNIQUE,
            family     TEXT    NOT NULL,
            visibility TEXT    NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_addresses_server ON addresses(server_id);
        CREATE TRIGGER IF NOT EXISTS addresses_visibility_immutable
        BEFORE UPDATE OF visibility ON addresses
        WHEN OLD.visibility <> NEW.visibility
        BEGIN
            SELECT RAISE(ABORT, 'address visibility is immutable');
        END;
        CREATE TABLE IF NOT EXISTS dns_records (
            id                 INTEGER PRIMARY KEY AUTOINCREMENT,
            address_id         INTEGER NOT NULL,
            domain_id          INTEGER NOT NULL,
            name               TEXT    NOT NULL UNIQUE,
            type               TEXT    NOT NULL,
            data               TEXT    NOT NULL,
            ttl                INTEGER NOT NULL DEFAULT 0,
            provider_record_id TEXT    NOT NULL DEFAULT ''
        );
        CREATE INDEX IF NOT EXISTS idx_dns_records_address ON dns_records(address_id);
        CREATE TABLE IF NOT EXISTS services (
            id           INTEGER PRIMARY KEY AUTOINCREMENT,
            name         TEXT    NOT NULL UNIQUE,
            kind         TEXT    NOT NULL,
            does_reload  INTEGER NOT NULL DEFAULT 0,
            service_name TEXT    NOT NULL UNIQUE
        );
        CREATE TABLE IF NOT EXISTS server_services (
            server_id  INTEGER NOT NULL,
            service_id INTEGER NOT NULL,
            PRIMARY KEY (server_id, service_id)
        );
    `
	return database.Migrate(r.db, "inventory", ddl)
}

// Close releases database resources.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// wrapErr classifies driver errors into the inventory error kinds.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return &domain.InventoryError{Op: op, Err: domain.ErrNotFound}
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return &domain.InventoryError{Op: op, Err: fmt.Errorf("%w: %v", domain.ErrConflict, err)}
	case strings.Contains(err.Error(), "immutable"):
		return &domain.InventoryError{Op: op, Err: fmt.Errorf("%w: %v", domain.ErrConstraint, err)}
	}
	return &domain.InventoryError{Op: op, Err: err}
}

func notFound(op, what string) error {
	return &domain.InventoryError{Op: op, Err: fmt.Errorf("%s: %w", what, domain.ErrNotFound)}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// checkAffected turns a zero-row update or delete into NotFound.
func checkAffected(op, what string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(op, err)
	}
	if n == 0 {
		return notFound(op, what)
	}
	return nil
}

// exists reports whether a row with id exists in table.
func (r *SQLiteRepository) exists(ctx context.Context, table string, id int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM `+table+` WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
