// Package dns holds the DNS half of the cloud control plane: zone lookup
// and record management at the provider, plus a registry of backends.
package dns

import (
	"context"

	"nathanbeddoewebdev/fleet/internal/domain"
)

// Zones manages DNS zones and records at a provider. Zones and records are
// addressed by provider-side IDs. Every method may fail with a
// *domain.ProviderError.
type Zones interface {
	DisplayName() string

	ListZones(ctx context.Context) ([]domain.Zone, error)
	// GetZoneByName returns the zone for an exact zone name.
	GetZoneByName(ctx context.Context, name string) (*domain.Zone, error)

	ListRecords(ctx context.Context, zoneID string) ([]domain.Record, error)
	CreateRecord(ctx context.Context, zoneID string, spec domain.RecordSpec) (*domain.Record, error)
	DeleteRecord(ctx context.Context, zoneID, recordID string) error
}
