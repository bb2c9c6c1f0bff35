package provision

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/fanout"
	"nathanbeddoewebdev/fleet/internal/firewall"
	"nathanbeddoewebdev/fleet/internal/journal"
)

// Whitelist reconverges the firewall across the fleet.
func (o *Orchestrator) Whitelist(ctx context.Context) (*firewall.Report, error) {
	run := journal.NewRun(o.Journal, "whitelist", "fleet")
	done := run.Start(string(StepFirewallConverged))
	report, err := o.Firewall.Converge(ctx)
	done(err)
	return report, err
}

// UpdateAgent reinstalls the agent on every server, at most limit at a
// time, and then reconverges the firewall. The firewall step only runs
// when every reinstall succeeded.
func (o *Orchestrator) UpdateAgent(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = DefaultAgentConcurrency
	}
	fleet, err := o.Inventory.LoadFleet(ctx)
	if err != nil {
		return err
	}

	run := journal.NewRun(o.Journal, "agent-update", "fleet")
	done := run.Start(string(StepAgentInstalled))

	privateDomains := map[int64]string{}
	tasks := make([]fanout.Task, 0, len(fleet))
	for _, h := range fleet {
		name, ok := privateDomains[h.Environment.PrivateDomainID]
		if !ok {
			d, err := o.Inventory.GetDomain(ctx, h.Environment.PrivateDomainID)
			if err != nil {
				done(err)
				return err
			}
			name = d.Name
			privateDomains[d.ID] = name
		}
		tasks = append(tasks, fanout.Task{
			Name: h.Server.Name,
			Func: func(ctx context.Context) error {
				addr := h.ConnectAddress()
				if addr == "" {
					return fmt.Errorf("no reachable address")
				}
				return o.Agent.Install(ctx, addr, o.Agent.ConfigFor(h, name))
			},
		})
	}
	err = fanout.Run(ctx, "agent update", limit, tasks)
	done(err)
	if err != nil {
		return err
	}

	_, err = o.Whitelist(ctx)
	return err
}

// UpdateConfig runs the config-management client on the authority and
// then on every server.
func (o *Orchestrator) UpdateConfig(ctx context.Context, limit int) error {
	fleet, err := o.Inventory.LoadFleet(ctx)
	if err != nil {
		return err
	}
	run := journal.NewRun(o.Journal, "server-update", "fleet")
	done := run.Start("config_mgmt_run")
	err = o.ConfigMgmt.Update(ctx, fleet, limit)
	done(err)
	return err
}

// Unprovisioned lists cloud instances that have no server row in the
// inventory, sorted by name.
func (o *Orchestrator) Unprovisioned(ctx context.Context, known []domain.Server) ([]domain.Instance, error) {
	instances, err := o.Cloud.ListInstances(ctx)
	if err != nil {
		return nil, err
	}

	recorded := make(map[string]bool, len(known))
	for _, s := range known {
		if s.ProviderID == o.Provider.ID && s.ProviderRecordID != "" {
			recorded[s.ProviderRecordID] = true
		}
	}

	var out []domain.Instance
	for _, inst := range instances {
		if !recorded[inst.ID] {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	log.Debug().Int("instances", len(instances)).Int("unprovisioned", len(out)).Msg("unprovisioned scan")
	return out, nil
}
