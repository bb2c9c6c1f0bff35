// Package journal persists the step-by-step progress of provisioning,
// destruction and deployment runs.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	"nathanbeddoewebdev/fleet/internal/database"
)

// Repository defines the persistence interface for journal entries.
type Repository interface {
	// Save inserts (ID == 0) or updates an entry.
	Save(entry *Entry) error

	// ListRun returns the entries of one run in the order they were written.
	ListRun(runID string) ([]Entry, error)

	// ListRecent returns the most recent n entries, newest first.
	ListRecent(n int) ([]Entry, error)

	// DeleteOlderThan removes finished entries older than d.
	DeleteOlderThan(d time.Duration) (int64, error)

	Close() error
}

// SQLiteRepository implements Repository backed by the shared SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

// Open creates or opens the journal at the default database path.
func Open() (*SQLiteRepository, error) {
	path, err := database.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	return OpenAt(path)
}

// OpenAt creates or opens the journal at the given path.
func OpenAt(path string) (*SQLiteRepository, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	r := &SQLiteRepository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS journal (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id        TEXT    NOT NULL,
			operation     TEXT    NOT NULL,
			target        TEXT    NOT NULL DEFAULT '',
			step          TEXT    NOT NULL,
			status        TEXT    NOT NULL DEFAULT 'running',
			error_message TEXT    NOT NULL DEFAULT '',
			created_at    TEXT    NOT NULL,
			updated_at    TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_journal_run ON journal(run_id);
		CREATE INDEX IF NOT EXISTS idx_journal_created ON journal(created_at);
	`
	return database.Migrate(r.db, "journal", ddl)
}

// Save inserts a new entry (ID == 0) or updates an existing one.
func (r *SQLiteRepository) Save(entry *Entry) error {
	entry.UpdatedAt = time.Now().UTC()

	if entry.ID == 0 {
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = entry.UpdatedAt
		}
		result, err := r.db.Exec(`
			INSERT INTO journal (run_id, operation, target, step, status, error_message, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.RunID, entry.Operation, entry.Target, entry.Step, entry.Status, entry.ErrorMessage,
			entry.CreatedAt.Format(time.RFC3339Nano), entry.UpdatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("journal: insert failed: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("journal: failed to get last insert ID: %w", err)
		}
		entry.ID = id
		return nil
	}

	result, err := r.db.Exec(`
		UPDATE journal SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		entry.Status, entry.ErrorMessage, entry.UpdatedAt.Format(time.RFC3339Nano), entry.ID,
	)
	if err != nil {
		return fmt.Errorf("journal: update failed: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("journal: entry with ID %d not found", entry.ID)
	}
	return nil
}

// ListRun returns the entries of one run in insertion order.
func (r *SQLiteRepository) ListRun(runID string) ([]Entry, error) {
	rows, err := r.db.Query(`
		SELECT id, run_id, operation, target, step, status, error_message, created_at, updated_at
		FROM journal WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("journal: query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// ListRecent returns the most recent n entries.
func (r *SQLiteRepository) ListRecent(n int) ([]Entry, error) {
	rows, err := r.db.Query(`
		SELECT id, run_id, operation, target, step, status, error_message, created_at, updated_at
		FROM journal ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("journal: query failed: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// DeleteOlderThan removes finished entries older than d.
func (r *SQLiteRepository) DeleteOlderThan(d time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-d).Format(time.RFC3339Nano)
	result, err := r.db.Exec(`
		DELETE FROM journal WHERE status != 'running' AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("journal: delete failed: %w", err)
	}
	return result.RowsAffected()
}

// Close releases database resources.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func scanRows(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdStr, updatedStr string
		err := rows.Scan(&e.ID, &e.RunID, &e.Operation, &e.Target, &e.Step, &e.Status,
			&e.ErrorMessage, &createdStr, &updatedStr)
		if err != nil {
			return nil, fmt.Errorf("journal: scan failed: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
