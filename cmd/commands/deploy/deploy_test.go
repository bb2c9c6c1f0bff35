package deploy

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdtest"
	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/deploy"
	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/remote"
	"nathanbeddoewebdev/fleet/internal/tui"
)

var web = domain.Service{Name: "web", Kind: domain.Supervised, ServiceName: "web"}

func TestDeploy_RunsEveryPhase(t *testing.T) {
	env := cmdtest.Setup(t)
	p, prod := cmdtest.Seed(t)
	cmdtest.AddServer(t, "app-01", prod, p, "1.2.3.4", "10.0.0.2", web)
	env.Exec.On("status web", remote.Result{Stdout: "web start/running"})

	out, _, err := cmdtest.Run(t, NewCommand(), "prod", "--yes", "-o", "json")
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}

	var report deploy.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if len(report.Phases) != 7 {
		t.Fatalf("expected 7 phases, got %+v", report.Phases)
	}
	if report.Phases[1].Phase != deploy.PhaseSyncApp || report.Phases[1].Hosts != 1 {
		t.Errorf("sync-app phase = %+v", report.Phases[1])
	}

	syncs := env.Syncer.Calls()
	if len(syncs) != 1 || syncs[0].Host != "1.2.3.4" {
		t.Errorf("syncs = %+v", syncs)
	}
	if got := env.Exec.Commands("1.2.3.4"); len(got) == 0 || got[0] != "restart web" {
		t.Errorf("commands = %v, want restart web first", got)
	}
}

func TestDeploy_FailedRestartReportsPhase(t *testing.T) {
	env := cmdtest.Setup(t)
	p, prod := cmdtest.Seed(t)
	cmdtest.AddServer(t, "app-01", prod, p, "1.2.3.4", "10.0.0.2", web)
	env.Exec.On("status web", remote.Result{Stdout: "web stop/waiting"})

	out, _, err := cmdtest.Run(t, NewCommand(), "prod", "--yes")
	var statusErr *deploy.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if !strings.Contains(out, "restart-app") || strings.Contains(out, "sync-workers") {
		t.Errorf("report should stop at restart-app:\n%s", out)
	}
}

func TestDeploy_SourceNotReady(t *testing.T) {
	env := cmdtest.Setup(t)
	p, prod := cmdtest.Seed(t)
	cmdtest.AddServer(t, "app-01", prod, p, "1.2.3.4", "10.0.0.2", web)
	env.Source.(*cmdtest.Source).Err = deploy.ErrSourceNotReady

	_, _, err := cmdtest.Run(t, NewCommand(), "prod", "--yes")
	if !errors.Is(err, deploy.ErrSourceNotReady) {
		t.Fatalf("expected ErrSourceNotReady, got %v", err)
	}
	if calls := env.Exec.Calls(); len(calls) != 0 {
		t.Errorf("expected no remote calls, got %+v", calls)
	}
}

func TestDeploy_WithoutTerminalNeedsYes(t *testing.T) {
	env := cmdtest.Setup(t)
	cmdtest.Seed(t)

	_, _, err := cmdtest.Run(t, NewCommand(), "prod")
	var exitErr *cmdutil.ExitError
	if !errors.As(err, &exitErr) || !errors.Is(err, tui.ErrAborted) {
		t.Fatalf("expected an aborted exit, got %v", err)
	}
	if calls := env.Syncer.Calls(); len(calls) != 0 {
		t.Errorf("expected no syncs, got %+v", calls)
	}
}

func TestDeploy_UnknownEnvironment(t *testing.T) {
	cmdtest.Setup(t)
	cmdtest.Seed(t)

	_, _, err := cmdtest.Run(t, NewCommand(), "nope", "--yes")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
