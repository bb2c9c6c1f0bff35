package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func useTempConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleet", "config.json")
	SetPath(path)
	t.Cleanup(ResetPath)
	return path
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	useTempConfig(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(&Config{}, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := useTempConfig(t)

	want := &Config{DefaultProvider: "main", SSHUser: "deploy", SSHKey: "/home/ops/.ssh/fleet"}
	if err := want.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("mode = %o, want 600", perm)
	}
	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".config-*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestSave_Overwrites(t *testing.T) {
	useTempConfig(t)

	if err := (&Config{DefaultProvider: "main"}).Save(); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := (&Config{DefaultProvider: "backup"}).Save(); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.DefaultProvider != "backup" {
		t.Errorf("DefaultProvider = %q, want backup", got.DefaultProvider)
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", "{not json}"},
		{"unknown field", `{"default_provider": "main", "ssh_usr": "deploy"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := useTempConfig(t)
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestPath_EnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDir, dir)

	got, err := Path()
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if want := filepath.Join(dir, "config.json"); got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
}

func TestSSHKeyPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		key  string
		want string
	}{
		{"", filepath.Join(home, ".ssh", "id_rsa")},
		{"~/.ssh/fleet", filepath.Join(home, ".ssh", "fleet")},
		{"/etc/fleet/key", "/etc/fleet/key"},
	}
	for _, tt := range tests {
		got, err := (&Config{SSHKey: tt.key}).SSHKeyPath()
		if err != nil {
			t.Fatalf("SSHKeyPath(%q): %v", tt.key, err)
		}
		if got != tt.want {
			t.Errorf("SSHKeyPath(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
