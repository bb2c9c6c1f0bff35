package cloud

import (
	"context"
	"testing"

	"nathanbeddoewebdev/fleet/internal/dns"
	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/providers"
	"nathanbeddoewebdev/fleet/internal/services/auth"
)

type stubCompute struct{ providers.Compute }

func (stubCompute) DisplayName() string { return "Stub" }

func (stubCompute) ListInstances(context.Context) ([]domain.Instance, error) {
	return []domain.Instance{{ID: "1", Name: "web-01"}}, nil
}

type stubZones struct{ dns.Zones }

func (stubZones) DisplayName() string { return "StubDNS" }

func TestOpen_ResolvesBothBackends(t *testing.T) {
	providers.Reset()
	dns.Reset()
	t.Cleanup(func() {
		providers.Reset()
		dns.Reset()
	})
	providers.Register("stub", func(auth.Store) (providers.Compute, error) { return stubCompute{}, nil })
	dns.Register("stubdns", func(auth.Store) (dns.Zones, error) { return stubZones{}, nil })

	c, err := Open(domain.Provider{Name: "main", Compute: "stub", DNS: "stubdns"}, auth.NewMockStore())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := c.DisplayName(); got != "Stub/StubDNS" {
		t.Errorf("DisplayName = %q", got)
	}
	insts, err := c.ListInstances(context.Background())
	if err != nil || len(insts) != 1 {
		t.Errorf("ListInstances = %v, %v", insts, err)
	}

	if _, err := Open(domain.Provider{Name: "main", Compute: "stub", DNS: "route53"}, auth.NewMockStore()); err == nil {
		t.Error("expected error for unknown DNS kind")
	}
}
