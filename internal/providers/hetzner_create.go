package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/rs/zerolog/log"

	"nathanbeddoewebdev/fleet/internal/domain"
)

// CreateInstance creates a server on Hetzner Cloud and waits until it
// reports running. SSH keys and networks are resolved by name or ID.
func (h *HetznerProvider) CreateInstance(ctx context.Context, spec domain.InstanceSpec) (*domain.Instance, error) {
	opts := hcloud.ServerCreateOpts{
		Name:       spec.Name,
		ServerType: &hcloud.ServerType{Name: spec.Size},
		Image:      &hcloud.Image{Name: spec.Image},
		Labels:     spec.Labels,
	}
	if spec.Location != "" {
		opts.Location = &hcloud.Location{Name: spec.Location}
	}

	// The SDK requires SSH key IDs in the request body, so we resolve
	// each name-or-ID through the API before creating the server.
	for _, key := range spec.SSHKeys {
		var sshKey *hcloud.SSHKey
		err := h.read(ctx, func(ctx context.Context) error {
			var apiErr error
			sshKey, _, apiErr = h.client.SSHKey.Get(ctx, key)
			return apiErr
		})
		if err != nil {
			return nil, mapError(fmt.Sprintf("resolve SSH key %q", key), err)
		}
		if sshKey == nil {
			return nil, &domain.ProviderError{Code: string(hcloud.ErrorCodeNotFound), Message: fmt.Sprintf("SSH key %q not found", key), Err: domain.ErrNotFound}
		}
		opts.SSHKeys = append(opts.SSHKeys, sshKey)
	}
	for _, name := range spec.Networks {
		var network *hcloud.Network
		err := h.read(ctx, func(ctx context.Context) error {
			var apiErr error
			network, _, apiErr = h.client.Network.Get(ctx, name)
			return apiErr
		})
		if err != nil {
			return nil, mapError(fmt.Sprintf("resolve network %q", name), err)
		}
		if network == nil {
			return nil, &domain.ProviderError{Code: string(hcloud.ErrorCodeNotFound), Message: fmt.Sprintf("network %q not found", name), Err: domain.ErrNotFound}
		}
		opts.Networks = append(opts.Networks, network)
	}

	result, _, err := h.client.Server.Create(ctx, opts)
	if err != nil {
		return nil, mapError("create server", err)
	}

	inst := toInstance(result.Server)
	inst.RootPassword = result.RootPassword

	bootCtx, cancel := context.WithTimeout(ctx, h.bootWait)
	defer cancel()

	actions := append([]*hcloud.Action{result.Action}, result.NextActions...)
	if err := h.client.Action.WaitFor(bootCtx, nonNil(actions)...); err != nil {
		return &inst, h.waitErr(ctx, "create server "+spec.Name, err)
	}

	running, err := h.waitRunning(bootCtx, result.Server.ID)
	if running != nil {
		password := inst.RootPassword
		inst = toInstance(running)
		inst.RootPassword = password
	}
	if err != nil {
		return &inst, h.waitErr(ctx, "boot server "+spec.Name, err)
	}
	log.Debug().Str("server", spec.Name).Str("id", inst.ID).Msg("instance running")
	return &inst, nil
}

// waitErr turns a bounded-wait failure into a *domain.TimeoutError unless
// the parent context was cancelled.
func (h *HetznerProvider) waitErr(parent context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return &domain.TimeoutError{Op: op, Wait: h.bootWait}
	}
	return mapError(op, err)
}

func (h *HetznerProvider) waitRunning(ctx context.Context, id int64) (*hcloud.Server, error) {
	var last *hcloud.Server
	for {
		srv, _, err := h.client.Server.GetByID(ctx, id)
		if err != nil {
			return last, err
		}
		if srv == nil {
			return last, hcloud.Error{Code: hcloud.ErrorCodeNotFound, Message: fmt.Sprintf("server %d disappeared while booting", id)}
		}
		last = srv
		if srv.Status == hcloud.ServerStatusRunning {
			return srv, nil
		}

		timer := time.NewTimer(h.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last, ctx.Err()
		case <-timer.C:
		}
	}
}

func nonNil(actions []*hcloud.Action) []*hcloud.Action {
	out := actions[:0]
	for _, a := range actions {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

// DestroyInstance deletes a server and waits for the delete action.
func (h *HetznerProvider) DestroyInstance(ctx context.Context, id string) error {
	numericID, err := parseID("server", id)
	if err != nil {
		return err
	}

	result, _, err := h.client.Server.DeleteWithResult(ctx, &hcloud.Server{ID: numericID})
	if err != nil {
		return mapError("delete server", err)
	}
	if result != nil && result.Action != nil {
		if err := h.client.Action.WaitFor(ctx, result.Action); err != nil {
			return mapError("delete server", err)
		}
	}
	return nil
}

// GetInstance returns one server.
func (h *HetznerProvider) GetInstance(ctx context.Context, id string) (*domain.Instance, error) {
	numericID, err := parseID("server", id)
	if err != nil {
		return nil, err
	}

	var srv *hcloud.Server
	err = h.read(ctx, func(ctx context.Context) error {
		var apiErr error
		srv, _, apiErr = h.client.Server.GetByID(ctx, numericID)
		return apiErr
	})
	if err != nil {
		return nil, mapError("get server", err)
	}
	if srv == nil {
		return nil, &domain.ProviderError{Code: string(hcloud.ErrorCodeNotFound), Message: fmt.Sprintf("server %s not found", id), Err: domain.ErrNotFound}
	}
	inst := toInstance(srv)
	return &inst, nil
}

// ListInstances retrieves all servers in the project.
func (h *HetznerProvider) ListInstances(ctx context.Context) ([]domain.Instance, error) {
	var servers []*hcloud.Server
	err := h.read(ctx, func(ctx context.Context) error {
		var apiErr error
		servers, apiErr = h.client.Server.All(ctx)
		return apiErr
	})
	if err != nil {
		return nil, mapError("list servers", err)
	}

	out := make([]domain.Instance, 0, len(servers))
	for _, s := range servers {
		out = append(out, toInstance(s))
	}
	return out, nil
}
