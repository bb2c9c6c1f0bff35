package deploy

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"nathanbeddoewebdev/fleet/internal/config"
	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/fanout"
	"nathanbeddoewebdev/fleet/internal/remote"
	"nathanbeddoewebdev/fleet/internal/servicectl"
)

// Site swaps the proxy between the live virtual hosts and the
// maintenance page on every proxy host of an environment.
type Site struct {
	Inventory Inventory
	Exec      remote.Executor
	Services  ServiceController
	Policy    config.SitePolicy
	// Concurrency bounds the hosts toggled at once.
	Concurrency int
}

// SiteCommand returns the shell command that enables the maintenance page
// (down) or the live sites (!down). Both directions are idempotent.
func SiteCommand(p config.SitePolicy, down bool) string {
	enabled := func(name string) string { return remote.Quote(path.Join(p.EnabledDir, name)) }
	available := func(name string) string { return remote.Quote(path.Join(p.AvailableDir, name)) }

	var parts []string
	if down {
		rm := []string{"rm", "-f"}
		for _, name := range p.Live {
			rm = append(rm, enabled(name))
		}
		parts = append(parts, strings.Join(rm, " "),
			fmt.Sprintf("ln -sfn %s %s", available(p.Maintenance), enabled(p.Maintenance)))
	} else {
		parts = append(parts, "rm -f "+enabled(p.Maintenance))
		for _, name := range p.Live {
			parts = append(parts, fmt.Sprintf("ln -sfn %s %s", available(name), enabled(name)))
		}
	}
	return strings.Join(parts, " && ")
}

// Down puts the environment into maintenance.
func (s *Site) Down(ctx context.Context, environment string) error {
	return s.toggle(ctx, environment, true)
}

// Up brings the environment's live sites back.
func (s *Site) Up(ctx context.Context, environment string) error {
	return s.toggle(ctx, environment, false)
}

func (s *Site) toggle(ctx context.Context, environment string, down bool) error {
	env, err := s.Inventory.GetEnvironmentByName(ctx, environment)
	if err != nil {
		return err
	}
	fleet, err := s.Inventory.LoadFleet(ctx)
	if err != nil {
		return err
	}

	cmd := SiteCommand(s.Policy, down)
	var tasks []fanout.Task
	for _, h := range fleet {
		if h.Server.EnvironmentID != env.ID || !slices.Contains(h.ServiceNames(), s.Policy.ProxyService) {
			continue
		}
		tasks = append(tasks, fanout.Task{
			Name: h.Server.Name,
			Func: func(ctx context.Context) error { return s.swap(ctx, h, cmd) },
		})
	}
	if len(tasks) == 0 {
		return &domain.ConstraintError{Reason: fmt.Sprintf("no %s hosts in environment %s", s.Policy.ProxyService, env.Name)}
	}

	op := "site up"
	if down {
		op = "site down"
	}
	log.Info().Str("environment", env.Name).Int("hosts", len(tasks)).Msg(op)
	return fanout.Run(ctx, op, s.Concurrency, tasks)
}

func (s *Site) swap(ctx context.Context, h domain.Host, cmd string) error {
	addr := h.ConnectAddress()
	if addr == "" {
		return fmt.Errorf("no reachable address")
	}
	if _, err := remote.Check(ctx, s.Exec, addr, cmd); err != nil {
		return err
	}

	for _, svc := range servicesIn(h, []string{s.Policy.ProxyService}) {
		st, err := s.Services.Do(ctx, addr, svc, servicectl.Restart)
		if err != nil {
			return err
		}
		if st != servicectl.Running {
			return &StatusError{Host: h.Server.Name, Service: svc.ServiceName, Action: servicectl.Restart, Got: st, Want: servicectl.Running}
		}
	}
	return nil
}
