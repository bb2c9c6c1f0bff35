package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"nathanbeddoewebdev/fleet/internal/domain"
)

// CreateVolume creates an unattached, unformatted volume.
func (h *HetznerProvider) CreateVolume(ctx context.Context, spec domain.VolumeSpec) (*domain.Volume, error) {
	opts := hcloud.VolumeCreateOpts{
		Name:   spec.Name,
		Size:   spec.SizeGB,
		Labels: map[string]string{},
	}
	if spec.Kind != "" {
		opts.Labels[StorageKindLabel] = spec.Kind
	}
	if spec.Location != "" {
		opts.Location = &hcloud.Location{Name: spec.Location}
	}

	result, _, err := h.client.Volume.Create(ctx, opts)
	if err != nil {
		return nil, mapError("create volume", err)
	}
	actions := append([]*hcloud.Action{result.Action}, result.NextActions...)
	if err := h.client.Action.WaitFor(ctx, nonNil(actions)...); err != nil {
		return nil, mapError("create volume", err)
	}
	vol := toVolume(result.Volume)
	return &vol, nil
}

// AttachVolume attaches a volume and waits for the attach action. Running
// out of the attach wait is a hard *domain.TimeoutError; the volume may
// still end up attached and must be detached by hand before a retry.
func (h *HetznerProvider) AttachVolume(ctx context.Context, instanceID, volumeID string) (*domain.Volume, error) {
	serverID, err := parseID("server", instanceID)
	if err != nil {
		return nil, err
	}
	volID, err := parseID("volume", volumeID)
	if err != nil {
		return nil, err
	}

	action, _, err := h.client.Volume.Attach(ctx, &hcloud.Volume{ID: volID}, &hcloud.Server{ID: serverID})
	if err != nil {
		return nil, mapError("attach volume", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, h.attachWait)
	defer cancel()
	if err := h.client.Action.WaitFor(waitCtx, action); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &domain.TimeoutError{Op: fmt.Sprintf("attach volume %s to server %s", volumeID, instanceID), Wait: h.attachWait}
		}
		return nil, mapError("attach volume", err)
	}

	var vol *hcloud.Volume
	err = h.read(ctx, func(ctx context.Context) error {
		var apiErr error
		vol, _, apiErr = h.client.Volume.GetByID(ctx, volID)
		return apiErr
	})
	if err != nil {
		return nil, mapError("get volume", err)
	}
	if vol == nil {
		return nil, &domain.ProviderError{Code: string(hcloud.ErrorCodeNotFound), Message: fmt.Sprintf("volume %s not found", volumeID), Err: domain.ErrNotFound}
	}
	out := toVolume(vol)
	return &out, nil
}

// DetachVolume detaches a volume and waits for the action.
func (h *HetznerProvider) DetachVolume(ctx context.Context, volumeID string) error {
	volID, err := parseID("volume", volumeID)
	if err != nil {
		return err
	}
	action, _, err := h.client.Volume.Detach(ctx, &hcloud.Volume{ID: volID})
	if err != nil {
		return mapError("detach volume", err)
	}
	return mapError("detach volume", h.client.Action.WaitFor(ctx, action))
}

// ListVolumes returns the volumes attached to an instance.
func (h *HetznerProvider) ListVolumes(ctx context.Context, instanceID string) ([]domain.Volume, error) {
	serverID, err := parseID("server", instanceID)
	if err != nil {
		return nil, err
	}

	var volumes []*hcloud.Volume
	err = h.read(ctx, func(ctx context.Context) error {
		var apiErr error
		volumes, apiErr = h.client.Volume.All(ctx)
		return apiErr
	})
	if err != nil {
		return nil, mapError("list volumes", err)
	}

	var out []domain.Volume
	for _, v := range volumes {
		if v.Server != nil && v.Server.ID == serverID {
			out = append(out, toVolume(v))
		}
	}
	return out, nil
}
