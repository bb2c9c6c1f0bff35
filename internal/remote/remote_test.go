package remote

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nathanbeddoewebdev/fleet/internal/domain"
)

type stubExecutor struct {
	res *Result
	err error
}

func (s stubExecutor) Run(context.Context, string, string) (*Result, error) { return s.res, s.err }
func (s stubExecutor) Upload(context.Context, string, string, []byte, fs.FileMode) error {
	return nil
}

func TestCheck(t *testing.T) {
	ctx := context.Background()

	if _, err := Check(ctx, stubExecutor{res: &Result{}}, "h", "true"); err != nil {
		t.Errorf("expected success, got %v", err)
	}

	_, err := Check(ctx, stubExecutor{res: &Result{ExitCode: 3, Stderr: "nope"}}, "h", "false")
	var execErr *domain.ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *domain.ExecError, got %T", err)
	}
	if execErr.ExitCode != 3 || execErr.Host != "h" {
		t.Errorf("unexpected ExecError: %+v", execErr)
	}

	connErr := &domain.ConnectError{Host: "h", Err: errors.New("refused")}
	if _, err := Check(ctx, stubExecutor{err: connErr}, "h", "true"); !errors.Is(err, connErr) {
		t.Errorf("expected connect error to pass through, got %v", err)
	}
}

func TestQuote(t *testing.T) {
	tests := map[string]string{
		"":                  "''",
		"/etc/fleet/a.json": "/etc/fleet/a.json",
		"a b":               "'a b'",
		"it's":              `'it'\''s'`,
	}
	for in, want := range tests {
		if got := Quote(in); got != want {
			t.Errorf("Quote(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUploadCommand(t *testing.T) {
	got := UploadCommand("/etc/fleet/agent.json", 0o600)
	want := "mkdir -p /etc/fleet && cat > /etc/fleet/agent.json && chmod 600 /etc/fleet/agent.json"
	if got != want {
		t.Errorf("UploadCommand = %q, want %q", got, want)
	}
}

func TestRsyncArgs(t *testing.T) {
	s := &RsyncSyncer{User: "deploy", Port: 2222, KeyPath: "/k/id"}
	got := s.Args("/src/app", "10.0.0.2", "/srv/app", SyncOptions{Mirror: true, Excludes: []string{".git"}})
	want := []string{
		"-az", "--delete", "--exclude", ".git",
		"-e", "ssh -o StrictHostKeyChecking=no -o BatchMode=yes -p 2222 -i /k/id",
		"/src/app/", "deploy@10.0.0.2:/srv/app",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestRsyncSync_ExitCodeBecomesExecError(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-rsync")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho 'connection unexpectedly closed' >&2\nexit 12\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	s := &RsyncSyncer{Binary: script}
	err := s.Sync(context.Background(), dir, "10.0.0.2", "/srv/app", SyncOptions{Mirror: true})
	var execErr *domain.ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *domain.ExecError, got %v", err)
	}
	if execErr.ExitCode != 12 {
		t.Errorf("ExitCode = %d, want 12", execErr.ExitCode)
	}
}

func TestLineLogger_SplitsLines(t *testing.T) {
	l := newLineLogger("h", "stdout")
	if _, err := l.Write([]byte("one\ntw")); err != nil {
		t.Fatal(err)
	}
	if string(l.buf) != "tw" {
		t.Errorf("buffer = %q, want %q", l.buf, "tw")
	}
	l.Flush()
	if len(l.buf) != 0 {
		t.Errorf("expected empty buffer after flush, got %q", l.buf)
	}
}

func TestNewSSHExecutor_RejectsBadKey(t *testing.T) {
	if _, err := NewSSHExecutor(SSHConfig{}); err == nil {
		t.Error("expected error for empty key")
	}
	if _, err := NewSSHExecutor(SSHConfig{PrivateKey: []byte("not a key")}); err == nil {
		t.Error("expected error for unparsable key")
	}
}
