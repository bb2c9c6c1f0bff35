package site

import (
	"errors"
	"strings"
	"testing"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdtest"
	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/remote"
)

var proxy = domain.Service{Name: "proxy", Kind: domain.InitScript, ServiceName: "nginx"}

func TestDown_SwapsOnProxyHosts(t *testing.T) {
	env := cmdtest.Setup(t)
	p, prod := cmdtest.Seed(t)
	cmdtest.AddServer(t, "lb-01", prod, p, "1.2.3.4", "10.0.0.2", proxy)
	cmdtest.AddServer(t, "app-01", prod, p, "1.2.3.5", "10.0.0.3")
	env.Exec.On("/etc/init.d/nginx status", remote.Result{Stdout: "nginx is running"})

	out, _, err := cmdtest.Run(t, NewCommand(), "down", "prod", "--yes")
	if err != nil {
		t.Fatalf("site down: %v", err)
	}
	if !strings.Contains(out, "Site prod is down.") {
		t.Errorf("unexpected output: %s", out)
	}

	cmds := env.Exec.Commands("1.2.3.4")
	if len(cmds) == 0 || !strings.Contains(cmds[0], "/etc/nginx/sites-enabled/site-down") {
		t.Errorf("lb-01 commands = %v", cmds)
	}
	if got := env.Exec.Commands("1.2.3.5"); len(got) != 0 {
		t.Errorf("app-01 should be untouched, got %v", got)
	}
}

func TestUp_NeedsNoConfirmation(t *testing.T) {
	env := cmdtest.Setup(t)
	p, prod := cmdtest.Seed(t)
	cmdtest.AddServer(t, "lb-01", prod, p, "1.2.3.4", "10.0.0.2", proxy)
	env.Exec.On("/etc/init.d/nginx status", remote.Result{Stdout: "nginx is running"})

	if _, _, err := cmdtest.Run(t, NewCommand(), "up", "prod"); err != nil {
		t.Fatalf("site up: %v", err)
	}
	cmds := env.Exec.Commands("1.2.3.4")
	if len(cmds) == 0 || !strings.Contains(cmds[0], "site-http") {
		t.Errorf("commands = %v", cmds)
	}
}

func TestDown_WithoutTerminalNeedsYes(t *testing.T) {
	env := cmdtest.Setup(t)
	p, prod := cmdtest.Seed(t)
	cmdtest.AddServer(t, "lb-01", prod, p, "1.2.3.4", "10.0.0.2", proxy)

	_, _, err := cmdtest.Run(t, NewCommand(), "down", "prod")
	var exitErr *cmdutil.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("expected exit 1, got %v", err)
	}
	if calls := env.Exec.Calls(); len(calls) != 0 {
		t.Errorf("expected no remote calls, got %+v", calls)
	}
}

func TestDown_NoProxyHosts(t *testing.T) {
	cmdtest.Setup(t)
	p, prod := cmdtest.Seed(t)
	cmdtest.AddServer(t, "app-01", prod, p, "1.2.3.5", "10.0.0.3")

	_, _, err := cmdtest.Run(t, NewCommand(), "down", "prod", "--yes")
	if !errors.Is(err, domain.ErrConstraint) {
		t.Fatalf("expected ErrConstraint, got %v", err)
	}
}
