package auth

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nathanbeddoewebdev/fleet/internal/dns"
	"nathanbeddoewebdev/fleet/internal/providers"
	"nathanbeddoewebdev/fleet/internal/services/auth"
)

func useMockStore(t *testing.T) *auth.MockStore {
	t.Helper()
	store := auth.NewMockStore()
	prev := storeFactory
	storeFactory = func() auth.Store { return store }
	t.Cleanup(func() { storeFactory = prev })
	return store
}

func execAuth(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func TestLogin_WithTokenFlag(t *testing.T) {
	store := useMockStore(t)

	stdout, _, err := execAuth(t, "login", "Hetzner", "--token", "  secret  ")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(stdout, "Saved token for hetzner") {
		t.Errorf("unexpected stdout: %s", stdout)
	}
	got, err := store.GetToken("hetzner")
	if err != nil || got != "secret" {
		t.Errorf("stored token = %q, %v", got, err)
	}
}

func TestStatus_ListsBackends(t *testing.T) {
	store := useMockStore(t)
	providers.Reset()
	dns.Reset()
	t.Cleanup(func() { providers.Reset(); dns.Reset() })
	providers.RegisterHetzner(0)
	dns.RegisterCloudflare()

	if err := store.SetToken("cloudflare", "tok"); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := execAuth(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	want := map[string][]string{
		"hetzner":    {"hetzner", "not", "logged", "in", "-"},
		"cloudflare": {"cloudflare", "logged", "in", "keychain"},
	}
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n")[1:] {
		fields := strings.Fields(line)
		if diff := cmp.Diff(want[fields[0]], fields); diff != "" {
			t.Errorf("row %q mismatch (-want +got):\n%s", fields[0], diff)
		}
	}
}

func TestStatus_SingleKind(t *testing.T) {
	useMockStore(t)

	stdout, _, err := execAuth(t, "status", "cloudflare")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "cloudflare") || !strings.Contains(lines[1], "not logged in") {
		t.Errorf("unexpected stdout: %q", stdout)
	}
}

func TestStatus_EnvironmentToken(t *testing.T) {
	useMockStore(t)
	t.Setenv("FLEET_TOKEN_HETZNER", "from-env")

	stdout, _, err := execAuth(t, "status", "hetzner")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(stdout, "logged in") || !strings.HasSuffix(strings.TrimSpace(stdout), "env") {
		t.Errorf("expected env-sourced token, got:\n%s", stdout)
	}
}

func TestLogout(t *testing.T) {
	store := useMockStore(t)
	_ = store.SetToken("cloudflare", "tok")

	stdout, _, err := execAuth(t, "logout", "Cloudflare")
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !strings.Contains(stdout, "Removed token for cloudflare") {
		t.Errorf("unexpected stdout: %s", stdout)
	}
	if _, err := store.GetToken("cloudflare"); !errors.Is(err, auth.ErrTokenNotFound) {
		t.Errorf("token still present: %v", err)
	}

	stdout, _, err = execAuth(t, "logout", "cloudflare")
	if err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if !strings.Contains(stdout, "No stored token for cloudflare") {
		t.Errorf("unexpected stdout: %s", stdout)
	}
}
