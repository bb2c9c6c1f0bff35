package whitelist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdtest"
	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/fanout"
)

func TestWhitelist_AppliesEveryServer(t *testing.T) {
	env := cmdtest.Setup(t)
	p, prod := cmdtest.Seed(t)
	web := cmdtest.AddServer(t, "web-01", prod, p, "1.2.3.4", "10.0.0.2")
	cmdtest.AddServer(t, "web-02", prod, p, "1.2.3.5", "10.0.0.3")

	out, _, err := cmdtest.Run(t, NewCommand())
	if err != nil {
		t.Fatalf("whitelist: %v", err)
	}
	if !strings.Contains(out, "Firewall applied on 2 of 2 servers.") {
		t.Errorf("unexpected output: %s", out)
	}
	if len(env.Exec.Commands("1.2.3.4")) == 0 {
		t.Error("expected remote commands on web-01")
	}

	srv, err := cmdtest.Inventory(t).GetServer(context.Background(), web.ID)
	if err != nil {
		t.Fatalf("GetServer: %v", err)
	}
	if srv.FirewallSnapshot == "" {
		t.Error("expected the firewall snapshot path to be recorded")
	}
}

func TestWhitelist_ReportsEveryFailure(t *testing.T) {
	env := cmdtest.Setup(t)
	p, prod := cmdtest.Seed(t)
	cmdtest.AddServer(t, "web-01", prod, p, "1.2.3.4", "10.0.0.2")
	cmdtest.AddServer(t, "web-02", prod, p, "1.2.3.5", "10.0.0.3")
	env.Exec.FailHost("1.2.3.4", &domain.ConnectError{Host: "1.2.3.4", Err: errors.New("timeout")})

	out, _, err := cmdtest.Run(t, NewCommand())
	var fanErr *fanout.Error
	if !errors.As(err, &fanErr) || len(fanErr.Failures) != 1 || fanErr.Failures[0].Name != "web-01" {
		t.Fatalf("expected one web-01 failure, got %v", err)
	}
	if !strings.Contains(out, "1 of 2") {
		t.Errorf("unexpected output: %s", out)
	}
}
