package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdtest"
	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/provision"
	"nathanbeddoewebdev/fleet/internal/tui"
)

func TestParseStorage(t *testing.T) {
	tests := []struct {
		in      string
		want    *provision.StorageSpec
		wantErr bool
	}{
		{"", nil, false},
		{"ssd:100", &provision.StorageSpec{Kind: "ssd", SizeGB: 100}, false},
		{"ssd", nil, true},
		{":100", nil, true},
		{"ssd:0", nil, true},
		{"ssd:big", nil, true},
	}
	for _, tt := range tests {
		got, err := ParseStorage(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStorage(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ParseStorage(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestCreate_ProvisionsServer(t *testing.T) {
	env := cmdtest.Setup(t)
	_, prod := cmdtest.Seed(t)
	env.Cloud.Addresses = []domain.Address{
		{IP: "1.2.3.4", Family: domain.IPv4, Visibility: domain.Public},
		{IP: "10.0.0.2", Family: domain.IPv4, Visibility: domain.Private},
	}

	out, _, err := cmdtest.Run(t, NewCommand(), "create", "web-01",
		"--environment", "prod", "--image", "ubuntu-24.04", "--size", "cx22", "-o", "json")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var report provision.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if report.Step != provision.StepActive || report.RunID == "" {
		t.Errorf("report = %+v", report)
	}

	srv, err := cmdtest.Inventory(t).GetServerByName(context.Background(), prod.ID, "web-01")
	if err != nil {
		t.Fatalf("GetServerByName: %v", err)
	}
	if srv.Status != domain.ServerActive {
		t.Errorf("Status = %q, want active", srv.Status)
	}
}

func TestCreate_InvalidName(t *testing.T) {
	env := cmdtest.Setup(t)
	cmdtest.Seed(t)

	_, _, err := cmdtest.Run(t, NewCommand(), "create", "-bad",
		"--environment", "prod", "--image", "ubuntu-24.04", "--size", "cx22")
	if err == nil {
		t.Fatal("expected a name validation error")
	}
	if calls := env.Cloud.Calls(); len(calls) != 0 {
		t.Errorf("expected no cloud calls, got %v", calls)
	}
}

func TestCreate_FailurePrintsReport(t *testing.T) {
	env := cmdtest.Setup(t)
	cmdtest.Seed(t)
	env.Cloud.Err["CreateInstance"] = &domain.ProviderError{Message: "quota exceeded"}

	out, _, err := cmdtest.Run(t, NewCommand(), "create", "web-01",
		"--environment", "prod", "--image", "ubuntu-24.04", "--size", "cx22")
	var stepErr *provision.StepError
	if !errors.As(err, &stepErr) || stepErr.Step != provision.StepCloudCreated {
		t.Fatalf("expected a cloud_created StepError, got %v", err)
	}
	if !strings.Contains(out, "Last step:") {
		t.Errorf("expected the report on failure:\n%s", out)
	}
}

func TestDestroy_RemovesServer(t *testing.T) {
	env := cmdtest.Setup(t)
	p, prod := cmdtest.Seed(t)
	srv := cmdtest.AddServer(t, "web-01", prod, p, "1.2.3.4", "10.0.0.2")
	env.Cloud.AddInstance(domain.Instance{ID: srv.ProviderRecordID, Name: "web-01", Status: "running"})

	out, _, err := cmdtest.Run(t, NewCommand(), "destroy", "web-01", "--environment", "prod", "--yes")
	if err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if !strings.Contains(out, `Server "web-01" destroyed.`) {
		t.Errorf("unexpected output: %s", out)
	}
	if _, ok := env.Cloud.Instance(srv.ProviderRecordID); ok {
		t.Error("expected the cloud instance to be deleted")
	}
	if _, err := cmdtest.Inventory(t).GetServer(context.Background(), srv.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected the server row to be gone, got %v", err)
	}
}

func TestDestroy_WithoutTerminalNeedsYes(t *testing.T) {
	env := cmdtest.Setup(t)
	p, prod := cmdtest.Seed(t)
	cmdtest.AddServer(t, "web-01", prod, p, "1.2.3.4", "10.0.0.2")

	_, _, err := cmdtest.Run(t, NewCommand(), "destroy", "web-01", "--environment", "prod")
	var exitErr *cmdutil.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 || !errors.Is(err, tui.ErrAborted) {
		t.Fatalf("expected an aborted exit 1, got %v", err)
	}
	if calls := env.Cloud.Calls(); len(calls) != 0 {
		t.Errorf("expected no cloud calls, got %v", calls)
	}
}

func TestDestroy_RefusesAttachedVolumes(t *testing.T) {
	env := cmdtest.Setup(t)
	p, prod := cmdtest.Seed(t)
	srv := cmdtest.AddServer(t, "db-01", prod, p, "1.2.3.4", "10.0.0.2")
	env.Cloud.AddInstance(domain.Instance{ID: srv.ProviderRecordID, Name: "db-01"})
	env.Cloud.AddVolume(domain.Volume{ID: "vol-1", Name: "db-01-data", SizeGB: 100, InstanceID: srv.ProviderRecordID})

	_, _, err := cmdtest.Run(t, NewCommand(), "destroy", "db-01", "--environment", "prod", "--yes")
	var volErr *domain.VolumesAttachedError
	if !errors.As(err, &volErr) {
		t.Fatalf("expected VolumesAttachedError, got %v", err)
	}
	got, _ := cmdtest.Inventory(t).GetServer(context.Background(), srv.ID)
	if got == nil || got.Status != domain.ServerActive {
		t.Errorf("server should be untouched, got %+v", got)
	}
}

func TestList_FiltersEnvironment(t *testing.T) {
	cmdtest.Setup(t)
	p, prod := cmdtest.Seed(t)
	cmdtest.AddServer(t, "web-01", prod, p, "1.2.3.4", "10.0.0.2")

	out, _, err := cmdtest.Run(t, NewCommand(), "list", "--environment", "prod")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"web-01", "1.2.3.4", "10.0.0.2", "active"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}

	if _, _, err := cmdtest.Run(t, NewCommand(), "list", "--environment", "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown environment: expected ErrNotFound, got %v", err)
	}
}

func TestUnprovisioned_ListsUnknownInstances(t *testing.T) {
	env := cmdtest.Setup(t)
	p, prod := cmdtest.Seed(t)
	srv := cmdtest.AddServer(t, "web-01", prod, p, "1.2.3.4", "10.0.0.2")
	env.Cloud.AddInstance(domain.Instance{ID: srv.ProviderRecordID, Name: "web-01"})
	env.Cloud.AddInstance(domain.Instance{ID: "999", Name: "stray-01", Status: "running"})

	out, _, err := cmdtest.Run(t, NewCommand(), "unprovisioned")
	if err != nil {
		t.Fatalf("unprovisioned: %v", err)
	}
	if !strings.Contains(out, "stray-01") || strings.Contains(out, "web-01") {
		t.Errorf("unexpected listing:\n%s", out)
	}
}

func TestAddress_PrintsPrivateIPv4(t *testing.T) {
	cmdtest.Setup(t)
	p, prod := cmdtest.Seed(t)
	cmdtest.AddServer(t, "web-01", prod, p, "1.2.3.4", "10.0.0.2")

	out, _, err := cmdtest.Run(t, NewCommand(), "address", "web-01", "--environment", "prod")
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	if strings.TrimSpace(out) != "10.0.0.2" {
		t.Errorf("address = %q, want 10.0.0.2", out)
	}
}

func TestUpdate_RunsAuthorityFirst(t *testing.T) {
	env := cmdtest.Setup(t)
	p, prod := cmdtest.Seed(t)
	cmdtest.AddServer(t, "web-01", prod, p, "1.2.3.4", "10.0.0.2")

	if _, _, err := cmdtest.Run(t, NewCommand(), "update"); err != nil {
		t.Fatalf("update: %v", err)
	}
	calls := env.Exec.Calls()
	if len(calls) == 0 {
		t.Fatal("expected remote calls")
	}
	if calls[len(calls)-1].Host != "1.2.3.4" {
		t.Errorf("expected the fleet host to run last, got %+v", calls[len(calls)-1])
	}
}

func TestUpdate_RejectsZeroLimit(t *testing.T) {
	cmdtest.Setup(t)
	if _, _, err := cmdtest.Run(t, NewCommand(), "update", "--limit", "0"); err == nil {
		t.Fatal("expected an error for --limit 0")
	}
}

func TestServices_AddAndClear(t *testing.T) {
	cmdtest.Setup(t)
	p, prod := cmdtest.Seed(t)
	srv := cmdtest.AddServer(t, "web-01", prod, p, "1.2.3.4", "10.0.0.2")
	ctx := context.Background()
	inv := cmdtest.Inventory(t)
	for _, s := range []*domain.Service{
		{Name: "web", Kind: domain.Supervised, ServiceName: "app-web"},
		{Name: "proxy", Kind: domain.InitScript, ServiceName: "nginx"},
	} {
		if err := inv.CreateService(ctx, s); err != nil {
			t.Fatalf("CreateService: %v", err)
		}
	}

	if _, _, err := cmdtest.Run(t, NewCommand(), "services", "add", "web-01", "web", "proxy", "--environment", "prod"); err != nil {
		t.Fatalf("services add: %v", err)
	}
	got, _ := inv.ListServerServices(ctx, srv.ID)
	if len(got) != 2 {
		t.Fatalf("expected 2 services, got %+v", got)
	}

	if _, _, err := cmdtest.Run(t, NewCommand(), "services", "clear", "web-01", "--environment", "prod"); err != nil {
		t.Fatalf("services clear: %v", err)
	}
	got, _ = inv.ListServerServices(ctx, srv.ID)
	if len(got) != 0 {
		t.Errorf("expected no services after clear, got %+v", got)
	}
}

func TestServices_UnknownServiceAttachesNothing(t *testing.T) {
	cmdtest.Setup(t)
	p, prod := cmdtest.Seed(t)
	srv := cmdtest.AddServer(t, "web-01", prod, p, "1.2.3.4", "10.0.0.2",
		domain.Service{Name: "web", Kind: domain.Supervised, ServiceName: "app-web"})

	_, _, err := cmdtest.Run(t, NewCommand(), "services", "add", "web-01", "nope", "--environment", "prod")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	got, _ := cmdtest.Inventory(t).ListServerServices(context.Background(), srv.ID)
	if len(got) != 1 {
		t.Errorf("services changed: %+v", got)
	}
}

