package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nathanbeddoewebdev/fleet/internal/config"
	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/remote"
	"nathanbeddoewebdev/fleet/internal/remote/remotetest"
)

func testHost() domain.Host {
	return domain.Host{
		Server:      domain.Server{ID: 4, Name: "web-01"},
		Environment: domain.Environment{Name: "prod"},
	}
}

func TestInstaller_Install(t *testing.T) {
	exec := remotetest.NewExecutor()
	policy := config.Policy{
		Agent:      config.AgentPolicy{Install: "apt-get install -y fleet-agent"},
		ConfigMgmt: config.ConfigMgmtPolicy{Authority: "puppet.example.internal"},
	}
	inst := NewInstaller(exec, policy)
	cfg := inst.ConfigFor(testHost(), "example.internal")

	if err := inst.Install(context.Background(), "1.2.3.4", cfg); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	want := []string{
		"apt-get install -y fleet-agent",
		"fleet agent bootstrap --config /etc/fleet/agent.json",
	}
	if diff := cmp.Diff(want, exec.Commands("1.2.3.4")); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}

	data, ok := exec.File("1.2.3.4", "/etc/fleet/agent.json")
	if !ok {
		t.Fatal("agent config was not uploaded")
	}
	var got Config
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("uploaded config is not JSON: %v", err)
	}
	if got.Authority != "puppet.example.internal" || got.PrivateDomain != "example.internal" || got.ServerID != 4 {
		t.Errorf("uploaded config = %+v", got)
	}
}

func TestInstaller_StopsOnInstallFailure(t *testing.T) {
	exec := remotetest.NewExecutor().On("install", remote.Result{ExitCode: 100, Stderr: "E: Unable to locate package"})
	inst := NewInstaller(exec, config.Policy{Agent: config.AgentPolicy{Install: "apt-get install -y fleet-agent"}})

	err := inst.Install(context.Background(), "1.2.3.4", inst.ConfigFor(testHost(), "example.internal"))
	var execErr *domain.ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *domain.ExecError, got %v", err)
	}
	if _, ok := exec.File("1.2.3.4", "/etc/fleet/agent.json"); ok {
		t.Error("config must not be uploaded after a failed install")
	}
}
