package firewall

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/fanout"
)

// DefaultConcurrency bounds how many hosts are converged at once.
const DefaultConcurrency = 10

// Inventory is the slice of the inventory the converger needs.
type Inventory interface {
	LoadFleet(ctx context.Context) ([]domain.Host, error)
	SetFirewallSnapshot(ctx context.Context, serverID int64, path string) error
}

// Converger compiles and applies the policy on every host in the fleet.
type Converger struct {
	Inventory   Inventory
	Applier     *Applier
	Policy      Policy
	Compile     CompileFunc
	Concurrency int
}

// NewConverger wires a converger with the default compiler.
func NewConverger(inv Inventory, applier *Applier, policy Policy) *Converger {
	return &Converger{
		Inventory:   inv,
		Applier:     applier,
		Policy:      policy,
		Compile:     Compile,
		Concurrency: DefaultConcurrency,
	}
}

// Report summarises one convergence.
type Report struct {
	Hosts   int
	Applied int
}

// Converge loads the fleet once and brings every host in line with the
// policy. Per-host failures are collected into a *fanout.Error after all
// hosts have been attempted.
func (c *Converger) Converge(ctx context.Context) (*Report, error) {
	fleet, err := c.Inventory.LoadFleet(ctx)
	if err != nil {
		return nil, fmt.Errorf("firewall: loading fleet: %w", err)
	}

	compile := c.Compile
	if compile == nil {
		compile = Compile
	}
	limit := c.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	report := &Report{Hosts: len(fleet)}
	applied := make(chan struct{}, len(fleet))
	tasks := make([]fanout.Task, 0, len(fleet))
	for _, h := range fleet {
		tasks = append(tasks, fanout.Task{
			Name: h.Server.Name,
			Func: func(ctx context.Context) error {
				addr := h.ConnectAddress()
				if addr == "" {
					return fmt.Errorf("no reachable address")
				}
				batch, err := compile(c.Policy, fleet, h.Server.ID)
				if err != nil {
					return err
				}
				path, err := c.Applier.Apply(ctx, addr, batch)
				if err != nil {
					return err
				}
				if err := c.Inventory.SetFirewallSnapshot(ctx, h.Server.ID, path); err != nil {
					return err
				}
				applied <- struct{}{}
				log.Info().Str("server", h.Server.Name).Msg("firewall converged")
				return nil
			},
		})
	}

	err = fanout.Run(ctx, "firewall converge", limit, tasks)
	report.Applied = len(applied)
	return report, err
}
