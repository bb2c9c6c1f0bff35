package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdtest"
	"nathanbeddoewebdev/fleet/internal/dns"
	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/providers"
)

func registerBackends(t *testing.T) {
	t.Helper()
	providers.Reset()
	dns.Reset()
	providers.RegisterHetzner(0)
	dns.RegisterCloudflare()
	t.Cleanup(func() {
		providers.Reset()
		dns.Reset()
	})
}

func TestCreate_RecordsProvider(t *testing.T) {
	cmdtest.Setup(t)
	registerBackends(t)

	out, _, err := cmdtest.Run(t, NewCommand(), "create", "Main")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out, `Provider "main" created`) {
		t.Errorf("unexpected output: %s", out)
	}

	p, err := cmdtest.Inventory(t).GetProviderByName(context.Background(), "main")
	if err != nil {
		t.Fatalf("GetProviderByName: %v", err)
	}
	if p.Compute != "hetzner" || p.DNS != "cloudflare" {
		t.Errorf("provider = %+v", p)
	}
}

func TestCreate_UnknownBackend(t *testing.T) {
	cmdtest.Setup(t)
	registerBackends(t)

	_, _, err := cmdtest.Run(t, NewCommand(), "create", "main", "--compute", "aws")
	if err == nil || !strings.Contains(err.Error(), "unknown compute backend") {
		t.Fatalf("expected unknown backend error, got %v", err)
	}
}

func TestCreate_DuplicateIsConflict(t *testing.T) {
	cmdtest.Setup(t)
	registerBackends(t)

	if _, _, err := cmdtest.Run(t, NewCommand(), "create", "main"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, _, err := cmdtest.Run(t, NewCommand(), "create", "main")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestList_MarksDefault(t *testing.T) {
	cmdtest.Setup(t)
	cmdtest.Seed(t)

	out, _, err := cmdtest.Run(t, NewCommand(), "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "main") || !strings.Contains(out, "*") {
		t.Errorf("unexpected listing:\n%s", out)
	}
}
