package providers

import (
	"context"

	"nathanbeddoewebdev/fleet/internal/domain"
)

// Compute is the compute and block-storage half of the cloud control
// plane. Every method may fail with a *domain.ProviderError.
type Compute interface {
	DisplayName() string

	// CreateInstance creates a VM and waits until it is running. When the
	// boot wait runs out it returns the instance it has so far together
	// with a *domain.TimeoutError.
	CreateInstance(ctx context.Context, spec domain.InstanceSpec) (*domain.Instance, error)
	DestroyInstance(ctx context.Context, id string) error
	GetInstance(ctx context.Context, id string) (*domain.Instance, error)
	ListInstances(ctx context.Context) ([]domain.Instance, error)

	CreateVolume(ctx context.Context, spec domain.VolumeSpec) (*domain.Volume, error)
	// AttachVolume attaches and waits for the attach to finish.
	AttachVolume(ctx context.Context, instanceID, volumeID string) (*domain.Volume, error)
	DetachVolume(ctx context.Context, volumeID string) error
	ListVolumes(ctx context.Context, instanceID string) ([]domain.Volume, error)
}
