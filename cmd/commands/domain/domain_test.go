package domain

import (
	"context"
	"errors"
	"strings"
	"testing"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdtest"
	"nathanbeddoewebdev/fleet/internal/config"
	"nathanbeddoewebdev/fleet/internal/domain"
)

func seedProvider(t *testing.T) *domain.Provider {
	t.Helper()
	p := &domain.Provider{Name: "main", Compute: "hetzner", DNS: "cloudflare"}
	if err := cmdtest.Inventory(t).CreateProvider(context.Background(), p); err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}
	return p
}

func TestImport_RecordsZoneID(t *testing.T) {
	cmdtest.Setup(t)
	seedProvider(t)

	out, _, err := cmdtest.Run(t, NewCommand(), "import", "example.com", "--provider", "main")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, `Domain "example.com" imported`) {
		t.Errorf("unexpected output: %s", out)
	}

	d, err := cmdtest.Inventory(t).GetDomainByName(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("GetDomainByName: %v", err)
	}
	if d.ProviderRecordID != "zone-1" {
		t.Errorf("ProviderRecordID = %q, want zone-1", d.ProviderRecordID)
	}
}

func TestImport_UsesDefaultProvider(t *testing.T) {
	cmdtest.Setup(t)
	seedProvider(t)
	if err := (&config.Config{DefaultProvider: "main"}).Save(); err != nil {
		t.Fatalf("save config: %v", err)
	}

	if _, _, err := cmdtest.Run(t, NewCommand(), "import", "example.internal"); err != nil {
		t.Fatalf("import: %v", err)
	}
}

func TestImport_UnknownZone(t *testing.T) {
	cmdtest.Setup(t)
	seedProvider(t)

	_, _, err := cmdtest.Run(t, NewCommand(), "import", "nope.example", "--provider", "main")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := cmdtest.Inventory(t).GetDomainByName(context.Background(), "nope.example"); err == nil {
		t.Error("expected nothing recorded for an unknown zone")
	}
}

func TestImport_InvalidZoneName(t *testing.T) {
	env := cmdtest.Setup(t)
	seedProvider(t)

	if _, _, err := cmdtest.Run(t, NewCommand(), "import", "localhost", "--provider", "main"); err == nil {
		t.Fatal("expected a validation error for a single-label zone")
	}
	if calls := env.Cloud.Calls(); len(calls) != 0 {
		t.Errorf("expected no cloud calls, got %v", calls)
	}
}

func TestList(t *testing.T) {
	cmdtest.Setup(t)
	cmdtest.Seed(t)

	out, _, err := cmdtest.Run(t, NewCommand(), "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"example.com", "example.internal", "main"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}
