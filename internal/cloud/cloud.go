// Package cloud joins a compute backend and a DNS backend into the single
// control plane the orchestration code talks to.
package cloud

import (
	"context"
	"fmt"

	"nathanbeddoewebdev/fleet/internal/dns"
	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/providers"
	"nathanbeddoewebdev/fleet/internal/services/auth"
)

// ControlPlane is everything the fleet needs from a cloud account.
type ControlPlane interface {
	CreateInstance(ctx context.Context, spec domain.InstanceSpec) (*domain.Instance, error)
	DestroyInstance(ctx context.Context, id string) error
	GetInstance(ctx context.Context, id string) (*domain.Instance, error)
	ListInstances(ctx context.Context) ([]domain.Instance, error)

	CreateVolume(ctx context.Context, spec domain.VolumeSpec) (*domain.Volume, error)
	AttachVolume(ctx context.Context, instanceID, volumeID string) (*domain.Volume, error)
	DetachVolume(ctx context.Context, volumeID string) error
	ListVolumes(ctx context.Context, instanceID string) ([]domain.Volume, error)

	ListZones(ctx context.Context) ([]domain.Zone, error)
	GetZoneByName(ctx context.Context, name string) (*domain.Zone, error)
	CreateRecord(ctx context.Context, zoneID string, spec domain.RecordSpec) (*domain.Record, error)
	DeleteRecord(ctx context.Context, zoneID, recordID string) error
}

// Client is a ControlPlane backed by one compute and one DNS backend.
type Client struct {
	providers.Compute
	dns.Zones
}

var _ ControlPlane = (*Client)(nil)

// New joins compute and zones.
func New(compute providers.Compute, zones dns.Zones) *Client {
	return &Client{Compute: compute, Zones: zones}
}

// Open builds the control plane for an inventory provider by looking up its
// compute and DNS kinds in the backend registries.
func Open(p domain.Provider, store auth.Store) (*Client, error) {
	compute, err := providers.Get(p.Compute, store)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", p.Name, err)
	}
	zones, err := dns.Get(p.DNS, store)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", p.Name, err)
	}
	return New(compute, zones), nil
}

// DisplayName names both backends, e.g. "Hetzner/Cloudflare".
func (c *Client) DisplayName() string {
	return c.Compute.DisplayName() + "/" + c.Zones.DisplayName()
}
