package database

import (
	"path/filepath"
	"testing"

	"nathanbeddoewebdev/fleet/internal/config"
)

func TestDefaultPath(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(ResetPath)
	t.Cleanup(config.ResetPath)
	config.SetPath(filepath.Join(dir, "settings", "config.json"))

	t.Setenv(EnvPath, "")
	got, err := DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath: %v", err)
	}
	if want := filepath.Join(dir, "settings", "fleet.db"); got != want {
		t.Errorf("next to settings: got %q, want %q", got, want)
	}

	t.Setenv(EnvPath, filepath.Join(dir, "env.db"))
	if got, _ := DefaultPath(); got != filepath.Join(dir, "env.db") {
		t.Errorf("%s: got %q", EnvPath, got)
	}

	SetPath(filepath.Join(dir, "override.db"))
	if got, _ := DefaultPath(); got != filepath.Join(dir, "override.db") {
		t.Errorf("override: got %q", got)
	}
}

func TestOpenCreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fleet.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var mode string
	if err := db.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
	var fk int
	if err := db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
		t.Fatalf("foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestMigrate_AppliesPendingSteps(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "fleet.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	v1 := `CREATE TABLE widgets (id INTEGER PRIMARY KEY)`
	if err := Migrate(db, "widgets", v1); err != nil {
		t.Fatalf("Migrate v1: %v", err)
	}
	// Re-running an applied step would fail on the duplicate table.
	if err := Migrate(db, "widgets", v1, `ALTER TABLE widgets ADD COLUMN name TEXT`); err != nil {
		t.Fatalf("Migrate v2: %v", err)
	}
	if v, err := Version(db, "widgets"); err != nil || v != 2 {
		t.Errorf("Version = %d, %v; want 2", v, err)
	}
	if v, _ := Version(db, "gadgets"); v != 0 {
		t.Errorf("unknown component version = %d, want 0", v)
	}
}

func TestMigrate_FailedStepRollsBack(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "fleet.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	err = Migrate(db, "broken", `CREATE TABLE ok (id INTEGER); CREATE TABLE ok (id INTEGER)`)
	if err == nil {
		t.Fatal("expected migration error")
	}
	if v, _ := Version(db, "broken"); v != 0 {
		t.Errorf("Version = %d after failed step, want 0", v)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'ok'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Error("partial migration was not rolled back")
	}
}
