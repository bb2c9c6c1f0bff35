package provision

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/fanout"
	"nathanbeddoewebdev/fleet/internal/journal"
	"nathanbeddoewebdev/fleet/internal/naming"
	"nathanbeddoewebdev/fleet/internal/remote"
)

// creation carries what earlier steps produced to later ones.
type creation struct {
	mu sync.Mutex

	req      Request
	report   *Report
	env      *domain.Environment
	pub      *domain.Domain
	priv     *domain.Domain
	services []*domain.Service
	instance *domain.Instance
	server   *domain.Server
}

type step struct {
	name Step
	run  func(ctx context.Context, c *creation) error
}

// Create drives a new server from requested to active. Steps run strictly
// in sequence and the first failure halts with a *StepError. Nothing is
// rolled back: the returned Report says what exists.
func (o *Orchestrator) Create(ctx context.Context, req Request) (*Report, error) {
	run := journal.NewRun(o.Journal, "provision", req.Name)
	c := &creation{req: req, report: &Report{RunID: run.ID, Step: StepNone}}

	steps := []step{
		{StepRequested, o.validate},
		{StepCloudCreated, o.createInstance},
		{StepLocalRecorded, o.recordServer},
		{StepAddressesRecorded, o.recordAddresses},
		{StepStorageAttached, o.prepareStorage},
		{StepAgentInstalled, o.installAgent},
		{StepFirewallConverged, o.convergeFirewall},
		{StepConfigMgmtEnrolled, o.enroll},
		{StepActive, o.activate},
	}

	for _, s := range steps {
		logger := log.With().Str("server", req.Name).Str("step", string(s.name)).Logger()
		logger.Info().Msg("provisioning step")

		done := run.Start(string(s.name))
		err := s.run(ctx, c)
		done(err)
		if err != nil {
			logger.Error().Err(err).Msg("provisioning step failed")
			return c.report, &StepError{Server: req.Name, Step: s.name, LastCompleted: c.report.Step, Err: err}
		}
		c.report.Step = s.name
	}
	return c.report, nil
}

func (o *Orchestrator) validate(ctx context.Context, c *creation) error {
	req := c.req
	if err := naming.Server(req.Name); err != nil {
		return &domain.ConstraintError{Reason: err.Error()}
	}
	if req.Image == "" || req.Size == "" {
		return &domain.ConstraintError{Reason: "image and size are required"}
	}
	if req.Storage != nil && req.Storage.SizeGB <= 0 {
		return &domain.ConstraintError{Reason: "storage size must be positive"}
	}

	env, err := o.Inventory.GetEnvironmentByName(ctx, req.Environment)
	if err != nil {
		return err
	}
	c.env = env
	if c.pub, c.priv, err = o.environmentDomains(ctx, env); err != nil {
		return err
	}
	for _, name := range req.Services {
		svc, err := o.Inventory.GetServiceByName(ctx, name)
		if err != nil {
			return err
		}
		c.services = append(c.services, svc)
	}
	return nil
}

func (o *Orchestrator) createInstance(ctx context.Context, c *creation) error {
	inst, err := o.Cloud.CreateInstance(ctx, domain.InstanceSpec{
		Name:     c.req.Name,
		Image:    c.req.Image,
		Size:     c.req.Size,
		Location: c.req.Location,
		SSHKeys:  c.req.SSHKeys,
		Networks: c.req.Networks,
		Labels:   map[string]string{"fleet-environment": c.env.Name},
	})
	if inst != nil {
		// Captured even on timeout so the operator can clean up.
		c.instance = inst
		c.report.InstanceID = inst.ID
		c.report.RootPassword = inst.RootPassword
	}
	return err
}

func (o *Orchestrator) recordServer(ctx context.Context, c *creation) error {
	srv := &domain.Server{
		Name:             c.req.Name,
		Status:           domain.ServerCreating,
		EnvironmentID:    c.env.ID,
		ProviderID:       o.Provider.ID,
		ProviderRecordID: c.instance.ID,
		Image:            c.req.Image,
		Size:             c.req.Size,
		Location:         c.req.Location,
	}
	if err := o.Inventory.CreateServer(ctx, srv); err != nil {
		return err
	}
	c.server = srv
	c.report.ServerID = srv.ID

	for _, svc := range c.services {
		if err := o.Inventory.AttachService(ctx, srv.ID, svc.ID); err != nil {
			return err
		}
	}
	return nil
}

// recordAddresses persists every address in parallel. The first IPv4
// address of each visibility also gets an A record in the public or
// private domain of the environment.
func (o *Orchestrator) recordAddresses(ctx context.Context, c *creation) error {
	tasks := make([]fanout.Task, 0, len(c.instance.Addresses))
	named := map[domain.Visibility]bool{}
	for _, a := range c.instance.Addresses {
		// Record names are unique, so only the first IPv4 address of each
		// visibility is published.
		publish := a.Family == domain.IPv4 && !named[a.Visibility]
		if publish {
			named[a.Visibility] = true
		}
		tasks = append(tasks, fanout.Task{
			Name: a.IP,
			Func: func(ctx context.Context) error {
				return o.recordAddress(ctx, c, a, publish)
			},
		})
	}
	err := fanout.Run(ctx, "record addresses", 0, tasks)
	sort.Slice(c.report.Addresses, func(i, j int) bool { return c.report.Addresses[i].ID < c.report.Addresses[j].ID })
	return err
}

func (o *Orchestrator) recordAddress(ctx context.Context, c *creation, a domain.Address, publish bool) error {
	a.ServerID = c.server.ID
	if err := o.Inventory.CreateAddress(ctx, &a); err != nil {
		return err
	}
	c.mu.Lock()
	c.report.Addresses = append(c.report.Addresses, a)
	c.mu.Unlock()
	if !publish {
		return nil
	}

	zone := c.pub
	if a.Visibility == domain.Private {
		zone = c.priv
	}
	name := c.req.Name + "." + zone.Name
	rec, err := o.Cloud.CreateRecord(ctx, zone.ProviderRecordID, domain.RecordSpec{
		Name: name, Type: "A", Content: a.IP, TTL: o.recordTTL(),
	})
	if err != nil {
		return fmt.Errorf("dns record %s: %w", name, err)
	}
	return o.Inventory.CreateDNSRecord(ctx, &domain.DNSRecord{
		AddressID:        a.ID,
		DomainID:         zone.ID,
		Name:             name,
		Type:             "A",
		Data:             a.IP,
		TTL:              o.recordTTL(),
		ProviderRecordID: rec.ID,
	})
}

// prepareStorage creates, attaches and formats the requested volume. A
// server without one still gets its data directory.
func (o *Orchestrator) prepareStorage(ctx context.Context, c *creation) error {
	addr, err := connectAddress(c.report.Addresses)
	if err != nil {
		return err
	}

	if c.req.Storage == nil {
		dir := o.DataDir
		if dir == "" {
			dir = "/usr/local/data"
		}
		_, err := remote.Check(ctx, o.Exec, addr, "mkdir -p "+remote.Quote(dir))
		return err
	}

	vol, err := o.Cloud.CreateVolume(ctx, domain.VolumeSpec{
		Name:     c.req.Name + "-" + c.req.Storage.Kind,
		SizeGB:   c.req.Storage.SizeGB,
		Kind:     c.req.Storage.Kind,
		Location: c.req.Location,
	})
	if err != nil {
		return err
	}
	c.report.Volume = vol

	vol, err = o.Cloud.AttachVolume(ctx, c.instance.ID, vol.ID)
	if err != nil {
		return err
	}
	c.report.Volume = vol
	if vol.LinuxDevice == "" {
		return fmt.Errorf("volume %s attached without a device path", vol.ID)
	}

	for _, cmd := range StorageCommands(vol.LinuxDevice) {
		if _, err := remote.Check(ctx, o.Exec, addr, cmd); err != nil {
			return err
		}
	}
	log.Info().Str("server", c.req.Name).Str("volume", vol.ID).Msg("volume attached and formatted")
	return nil
}

// StorageCommands partitions device when it has no partition yet and
// creates an ext4 filesystem when the partition has none. Both are safe to
// repeat.
func StorageCommands(device string) []string {
	dev := remote.Quote(device)
	part := remote.Quote(device + partitionSuffix(device))
	return []string{
		fmt.Sprintf("test -b %s || echo ',,83' | sfdisk %s", part, dev),
		fmt.Sprintf("blkid %s >/dev/null || mkfs -t ext4 %s", part, part),
	}
}

// partitionSuffix follows udev naming: by-id links get "-part1", kernel
// names ending in a digit get "p1", the rest get "1".
func partitionSuffix(device string) string {
	switch {
	case strings.Contains(device, "/by-id/"):
		return "-part1"
	case device != "" && device[len(device)-1] >= '0' && device[len(device)-1] <= '9':
		return "p1"
	default:
		return "1"
	}
}

func (o *Orchestrator) installAgent(ctx context.Context, c *creation) error {
	host, err := o.Inventory.LoadHost(ctx, c.server.ID)
	if err != nil {
		return err
	}
	addr := host.ConnectAddress()
	if addr == "" {
		return errors.New("no reachable address")
	}
	return o.Agent.Install(ctx, addr, o.Agent.ConfigFor(*host, c.priv.Name))
}

func (o *Orchestrator) convergeFirewall(ctx context.Context, _ *creation) error {
	_, err := o.Firewall.Converge(ctx)
	return err
}

func (o *Orchestrator) enroll(ctx context.Context, c *creation) error {
	addr, err := connectAddress(c.report.Addresses)
	if err != nil {
		return err
	}
	return o.ConfigMgmt.Enroll(ctx, CertName(c.req.Name, c.priv), addr)
}

func (o *Orchestrator) activate(ctx context.Context, c *creation) error {
	return o.Inventory.UpdateServerStatus(ctx, c.server.ID, domain.ServerActive)
}

func connectAddress(addrs []domain.Address) (string, error) {
	h := domain.Host{Addresses: addrs}
	if addr := h.ConnectAddress(); addr != "" {
		return addr, nil
	}
	return "", errors.New("no reachable IPv4 address")
}
