package providers

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/retry"
	"nathanbeddoewebdev/fleet/internal/services/auth"
)

const (
	requestTimeout = 30 * time.Second

	defaultBootWait     = 5 * time.Minute
	defaultAttachWait   = 2 * time.Minute
	defaultPollInterval = 2 * time.Second

	// StorageKindLabel tags volumes with the storage kind they were
	// created for.
	StorageKindLabel = "fleet-storage-kind"
)

// HetznerProvider implements Compute using the Hetzner Cloud API.
type HetznerProvider struct {
	client *hcloud.Client

	bootWait     time.Duration
	attachWait   time.Duration
	pollInterval time.Duration
	backoff      retry.Backoff
}

// HetznerOption tunes the bounded waits of a HetznerProvider.
type HetznerOption func(*HetznerProvider)

// WithBootWait bounds how long CreateInstance waits for the VM to run.
func WithBootWait(d time.Duration) HetznerOption {
	return func(h *HetznerProvider) { h.bootWait = d }
}

// WithAttachWait bounds how long AttachVolume waits for the attach action.
func WithAttachWait(d time.Duration) HetznerOption {
	return func(h *HetznerProvider) { h.attachWait = d }
}

// WithPollInterval sets the pause between status polls.
func WithPollInterval(d time.Duration) HetznerOption {
	return func(h *HetznerProvider) { h.pollInterval = d }
}

// WithBackoff sets the retry bounds for idempotent reads.
func WithBackoff(b retry.Backoff) HetznerOption {
	return func(h *HetznerProvider) { h.backoff = b }
}

// WithClientOptions passes options through to the hcloud client.
func WithClientOptions(opts ...hcloud.ClientOption) HetznerOption {
	return func(h *HetznerProvider) {
		defaults := []hcloud.ClientOption{hcloud.WithApplication("fleet", "0.1.0")}
		h.client = hcloud.NewClient(append(defaults, opts...)...)
	}
}

// NewHetznerProvider creates a HetznerProvider. Default client options
// (application name) are applied first; callers can override them.
func NewHetznerProvider(opts ...HetznerOption) *HetznerProvider {
	h := &HetznerProvider{
		client:       hcloud.NewClient(hcloud.WithApplication("fleet", "0.1.0")),
		bootWait:     defaultBootWait,
		attachWait:   defaultAttachWait,
		pollInterval: defaultPollInterval,
		backoff:      retry.API,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterHetzner registers the Hetzner provider factory with the global
// registry. bootWait overrides the default boot wait when positive.
func RegisterHetzner(bootWait time.Duration) {
	Register("hetzner", func(store auth.Store) (Compute, error) {
		token, err := store.GetToken("hetzner")
		if err != nil {
			return nil, fmt.Errorf("hetzner auth: %w", err)
		}
		opts := []HetznerOption{WithClientOptions(hcloud.WithToken(token))}
		if bootWait > 0 {
			opts = append(opts, WithBootWait(bootWait))
		}
		return NewHetznerProvider(opts...), nil
	})
}

func (h *HetznerProvider) DisplayName() string {
	return "Hetzner"
}

func parseID(kind, id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, &domain.ProviderError{Code: "invalid_input", Message: fmt.Sprintf("invalid %s ID %q", kind, id), Err: err}
	}
	return n, nil
}

// isHetznerRetryable retries throttling, lock contention and transient
// network failures. Only idempotent reads go through it.
func isHetznerRetryable(err error) bool {
	if hcloud.IsError(err, hcloud.ErrorCodeRateLimitExceeded, hcloud.ErrorCodeLocked,
		hcloud.ErrorCodeConflict, hcloud.ErrorCodeTimeout, hcloud.ErrorCodeResourceUnavailable) {
		return true
	}
	return retry.Transient(err)
}

// read runs an idempotent API call with a per-request timeout and retries.
func (h *HetznerProvider) read(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, h.backoff, isHetznerRetryable, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		return fn(reqCtx)
	})
}

// mapError converts an hcloud error into a *domain.ProviderError carrying
// the matching sentinel.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var herr hcloud.Error
	if !errors.As(err, &herr) {
		return &domain.ProviderError{Message: fmt.Sprintf("%s: %v", op, err), Err: err}
	}

	var sentinel error
	switch herr.Code {
	case hcloud.ErrorCodeNotFound:
		sentinel = domain.ErrNotFound
	case hcloud.ErrorCodeUnauthorized, hcloud.ErrorCodeForbidden:
		sentinel = domain.ErrUnauthorized
	case hcloud.ErrorCodeRateLimitExceeded:
		sentinel = domain.ErrRateLimited
	case hcloud.ErrorCodeUniquenessError, hcloud.ErrorCodeConflict:
		sentinel = domain.ErrConflict
	default:
		sentinel = err
	}
	return &domain.ProviderError{Code: string(herr.Code), Message: fmt.Sprintf("%s: %s", op, herr.Message), Err: sentinel}
}

// toInstance converts an hcloud.Server to a domain.Instance.
func toInstance(s *hcloud.Server) domain.Instance {
	inst := domain.Instance{
		ID:        strconv.FormatInt(s.ID, 10),
		Name:      s.Name,
		Status:    string(s.Status),
		CreatedAt: s.Created,
	}
	if s.ServerType != nil {
		inst.Size = s.ServerType.Name
	}
	if s.Image != nil {
		inst.Image = s.Image.Name
	}
	if s.Location != nil {
		inst.Location = s.Location.Name
	}

	if !s.PublicNet.IPv4.IsUnspecified() && s.PublicNet.IPv4.IP != nil {
		inst.Addresses = append(inst.Addresses, domain.Address{
			IP: s.PublicNet.IPv4.IP.String(), Family: domain.IPv4, Visibility: domain.Public,
		})
	}
	if !s.PublicNet.IPv6.IsUnspecified() && s.PublicNet.IPv6.Network != nil {
		// Hetzner assigns a /64; the host itself answers on ::1 of it.
		if pfx, err := netip.ParsePrefix(s.PublicNet.IPv6.Network.String()); err == nil {
			inst.Addresses = append(inst.Addresses, domain.Address{
				IP: pfx.Masked().Addr().Next().String(), Family: domain.IPv6, Visibility: domain.Public,
			})
		}
	}
	for _, pn := range s.PrivateNet {
		if pn.IP == nil {
			continue
		}
		fam := domain.IPv4
		if pn.IP.To4() == nil {
			fam = domain.IPv6
		}
		inst.Addresses = append(inst.Addresses, domain.Address{IP: pn.IP.String(), Family: fam, Visibility: domain.Private})
	}
	return inst
}

func toVolume(v *hcloud.Volume) domain.Volume {
	vol := domain.Volume{
		ID:          strconv.FormatInt(v.ID, 10),
		Name:        v.Name,
		SizeGB:      v.Size,
		LinuxDevice: v.LinuxDevice,
	}
	if v.Server != nil {
		vol.InstanceID = strconv.FormatInt(v.Server.ID, 10)
	}
	return vol
}
