package auditlog

import (
	"database/sql"
	"fmt"
	"time"

	"nathanbeddoewebdev/fleet/internal/database"
)

// Filter narrows List. Zero fields match everything; Limit must be positive.
type Filter struct {
	Command     string
	Environment string
	RunID       string
	Limit       int
}

// Repository stores audit entries.
type Repository interface {
	Save(e *Entry) error
	List(f Filter) ([]Entry, error)
	DeleteOlderThan(d time.Duration) (int64, error)
	Close() error
}

// SQLiteRepository keeps the audit log in the shared fleet database.
type SQLiteRepository struct {
	db *sql.DB
}

// Open opens the audit log in the default database.
func Open() (*SQLiteRepository, error) {
	path, err := database.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("auditlog: %w", err)
	}
	return OpenAt(path)
}

// OpenAt opens the audit log in the database at path.
func OpenAt(path string) (*SQLiteRepository, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("auditlog: %w", err)
	}
	r := &SQLiteRepository{db: db}
	if err := database.Migrate(db, "auditlog", schema); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp     TEXT    NOT NULL,
    command       TEXT    NOT NULL,
    args          TEXT    NOT NULL DEFAULT '',
    environment   TEXT    NOT NULL DEFAULT '',
    run_id        TEXT    NOT NULL DEFAULT '',
    resource_type TEXT    NOT NULL DEFAULT '',
    resource_id   TEXT    NOT NULL DEFAULT '',
    resource_name TEXT    NOT NULL DEFAULT '',
    outcome       TEXT    NOT NULL,
    exit_code     INTEGER NOT NULL DEFAULT 0,
    detail        TEXT    NOT NULL DEFAULT '',
    duration_ms   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_log_environment ON audit_log(environment, timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_log_run ON audit_log(run_id);
`

const entryColumns = `id, timestamp, command, args, environment, run_id, resource_type, resource_id,
       resource_name, outcome, exit_code, detail, duration_ms`

// Save inserts e and sets its ID. A zero timestamp becomes now.
func (r *SQLiteRepository) Save(e *Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	res, err := r.db.Exec(`
        INSERT INTO audit_log (timestamp, command, args, environment, run_id, resource_type, resource_id,
                               resource_name, outcome, exit_code, detail, duration_ms)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp.UTC().Format(time.RFC3339Nano), e.Command, e.Args, e.Environment, e.RunID,
		e.ResourceType, e.ResourceID, e.ResourceName, string(e.Outcome), e.ExitCode, e.Detail, e.DurationMs)
	if err != nil {
		return fmt.Errorf("auditlog: save: %w", err)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("auditlog: save: %w", err)
	}
	return nil
}

// List returns entries matching f, newest first.
func (r *SQLiteRepository) List(f Filter) ([]Entry, error) {
	if f.Limit <= 0 {
		return nil, fmt.Errorf("auditlog: limit must be positive, got %d", f.Limit)
	}
	query := `SELECT ` + entryColumns + ` FROM audit_log WHERE 1 = 1`
	var args []any
	for _, c := range []struct{ column, value string }{
		{"command", f.Command},
		{"environment", f.Environment},
		{"run_id", f.RunID},
	} {
		if c.value != "" {
			query += ` AND ` + c.column + ` = ?`
			args = append(args, c.value)
		}
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	args = append(args, f.Limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("auditlog: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts, outcome string
		if err := rows.Scan(&e.ID, &ts, &e.Command, &e.Args, &e.Environment, &e.RunID, &e.ResourceType,
			&e.ResourceID, &e.ResourceName, &outcome, &e.ExitCode, &e.Detail, &e.DurationMs); err != nil {
			return nil, fmt.Errorf("auditlog: list: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		e.Outcome = Outcome(outcome)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes entries recorded more than d ago.
func (r *SQLiteRepository) DeleteOlderThan(d time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-d).Format(time.RFC3339Nano)
	res, err := r.db.Exec(`DELETE FROM audit_log WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("auditlog: prune: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
