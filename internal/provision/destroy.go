package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/fanout"
	"nathanbeddoewebdev/fleet/internal/journal"
)

// Destroy tears a server down. It refuses with a *domain.VolumesAttachedError
// while the cloud instance still has volumes attached. Otherwise the
// server is marked decommissioning and four independent teardowns run
// concurrently: certificate revocation, local record removal, instance
// deletion and address/DNS removal. Their errors are joined.
func (o *Orchestrator) Destroy(ctx context.Context, serverID int64) error {
	host, err := o.Inventory.LoadHost(ctx, serverID)
	if err != nil {
		return err
	}
	name := host.Server.Name
	run := journal.NewRun(o.Journal, "destroy", name)

	done := run.Start("preflight")
	records, zones, err := o.loadTeardown(ctx, host)
	if err == nil {
		err = o.checkVolumes(ctx, host.Server)
	}
	done(err)
	if err != nil {
		return err
	}

	done = run.Start("decommissioning")
	err = o.Inventory.UpdateServerStatus(ctx, serverID, domain.ServerDecommissioning)
	done(err)
	if err != nil {
		return err
	}
	log.Info().Str("server", name).Msg("server decommissioning")

	priv := zones[host.Environment.PrivateDomainID]
	tasks := []fanout.Task{
		{Name: "revoke certificate", Func: func(ctx context.Context) error {
			return o.ConfigMgmt.Revoke(ctx, CertName(name, priv))
		}},
		{Name: "delete local record", Func: func(ctx context.Context) error {
			if err := o.Inventory.ClearServices(ctx, serverID); err != nil {
				return err
			}
			return o.Inventory.DeleteServer(ctx, serverID)
		}},
		{Name: "delete instance", Func: func(ctx context.Context) error {
			if host.Server.ProviderRecordID == "" {
				return nil
			}
			err := o.Cloud.DestroyInstance(ctx, host.Server.ProviderRecordID)
			if errors.Is(err, domain.ErrNotFound) {
				log.Warn().Str("server", name).Msg("cloud instance already gone")
				return nil
			}
			return err
		}},
		{Name: "delete addresses", Func: func(ctx context.Context) error {
			return o.deleteAddresses(ctx, host.Addresses, records, zones)
		}},
	}

	done = run.Start("teardown")
	err = fanout.All(ctx, tasks...)
	done(err)
	if err != nil {
		return fmt.Errorf("destroy %s: %w", name, err)
	}
	log.Info().Str("server", name).Msg("server destroyed")
	return nil
}

// loadTeardown collects the DNS records of every address and the domains
// they live in, keyed by domain ID.
func (o *Orchestrator) loadTeardown(ctx context.Context, host *domain.Host) (map[int64][]domain.DNSRecord, map[int64]*domain.Domain, error) {
	pub, priv, err := o.environmentDomains(ctx, &host.Environment)
	if err != nil {
		return nil, nil, err
	}
	zones := map[int64]*domain.Domain{pub.ID: pub, priv.ID: priv}

	records := make(map[int64][]domain.DNSRecord, len(host.Addresses))
	for _, a := range host.Addresses {
		recs, err := o.Inventory.ListDNSRecords(ctx, a.ID)
		if err != nil {
			return nil, nil, err
		}
		for _, r := range recs {
			if _, ok := zones[r.DomainID]; !ok {
				d, err := o.Inventory.GetDomain(ctx, r.DomainID)
				if err != nil {
					return nil, nil, err
				}
				zones[d.ID] = d
			}
		}
		records[a.ID] = recs
	}
	return records, zones, nil
}

func (o *Orchestrator) checkVolumes(ctx context.Context, srv domain.Server) error {
	if srv.ProviderRecordID == "" {
		return nil
	}
	vols, err := o.Cloud.ListVolumes(ctx, srv.ProviderRecordID)
	if err != nil {
		return err
	}
	if len(vols) == 0 {
		return nil
	}
	names := make([]string, 0, len(vols))
	for _, v := range vols {
		label := v.Name
		if label == "" {
			label = v.ID
		}
		names = append(names, label)
	}
	return &domain.VolumesAttachedError{Server: srv.Name, Volumes: names}
}

// deleteAddresses removes each address's DNS records at the provider and in
// the inventory, then the address itself. Addresses are independent of
// each other; failures are joined.
func (o *Orchestrator) deleteAddresses(ctx context.Context, addrs []domain.Address, records map[int64][]domain.DNSRecord, zones map[int64]*domain.Domain) error {
	var errs []error
	for _, a := range addrs {
		if err := o.deleteAddress(ctx, a, records[a.ID], zones); err != nil {
			errs = append(errs, fmt.Errorf("address %s: %w", a.IP, err))
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) deleteAddress(ctx context.Context, a domain.Address, recs []domain.DNSRecord, zones map[int64]*domain.Domain) error {
	for _, r := range recs {
		err := o.Cloud.DeleteRecord(ctx, zones[r.DomainID].ProviderRecordID, r.ProviderRecordID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("dns record %s: %w", r.Name, err)
		}
		if err := o.Inventory.DeleteDNSRecord(ctx, r.ID); err != nil {
			return err
		}
	}
	return o.Inventory.DeleteAddress(ctx, a.ID)
}
