package deploy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"nathanbeddoewebdev/fleet/internal/config"
	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/fanout"
	"nathanbeddoewebdev/fleet/internal/journal"
	"nathanbeddoewebdev/fleet/internal/metrics"
	"nathanbeddoewebdev/fleet/internal/remote"
	"nathanbeddoewebdev/fleet/internal/servicectl"
)

// DeploymentPipeline rolls code out to an environment.
type DeploymentPipeline interface {
	Deploy(ctx context.Context, environment string) (*Report, error)
}

// Inventory is the slice of the inventory the pipeline reads.
type Inventory interface {
	GetEnvironmentByName(ctx context.Context, name string) (*domain.Environment, error)
	LoadFleet(ctx context.Context) ([]domain.Host, error)
}

// ServiceController acts on services and reports the resulting status.
type ServiceController interface {
	Do(ctx context.Context, addr string, svc domain.Service, action servicectl.Action) (servicectl.Status, error)
	WaitFor(ctx context.Context, addr string, svc domain.Service, want servicectl.Status, wait time.Duration) (servicectl.Status, error)
}

// StatusError reports a service that did not reach the expected status.
type StatusError struct {
	Host    string
	Service string
	Action  servicectl.Action
	Got     servicectl.Status
	Want    servicectl.Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s on %s: service is %s, want %s", e.Action, e.Service, e.Host, e.Got, e.Want)
}

// Phase names one barrier-separated stage of a deploy.
type Phase string

const (
	PhaseStopWorkers  Phase = "stop-workers"
	PhaseSyncApp      Phase = "sync-app"
	PhaseRestartApp   Phase = "restart-app"
	PhaseSyncWorkers  Phase = "sync-workers"
	PhaseSyncOther    Phase = "sync-other"
	PhaseStartWorkers Phase = "start-workers"
	PhaseRestartOther Phase = "restart-other"
	phasePreflight    Phase = "preflight"
)

// PhaseResult is the outcome of one phase.
type PhaseResult struct {
	Phase Phase  `json:"phase"`
	Hosts int    `json:"hosts"`
	Error string `json:"error,omitempty"`
}

// Report summarises a deploy.
type Report struct {
	RunID       string        `json:"run_id"`
	Environment string        `json:"environment"`
	Branch      string        `json:"branch"`
	Phases      []PhaseResult `json:"phases"`
}

// Pipeline implements DeploymentPipeline.
type Pipeline struct {
	Inventory Inventory
	Services  ServiceController
	Syncer    remote.Syncer
	Source    SourceTree
	Policy    config.DeployPolicy
	Journal   journal.Repository
	Metrics   *metrics.Recorder
}

var _ DeploymentPipeline = (*Pipeline)(nil)

type phase struct {
	name  Phase
	hosts []domain.Host
	task  func(ctx context.Context, h domain.Host) error
}

// Deploy checks the source tree, then runs the seven phases in order:
// stop workers, sync app, restart app, sync workers, sync other, start
// workers, restart other. Every phase waits for all of its hosts before
// the next starts, and the first phase with failures ends the deploy.
func (p *Pipeline) Deploy(ctx context.Context, environment string) (*Report, error) {
	env, err := p.Inventory.GetEnvironmentByName(ctx, environment)
	if err != nil {
		return nil, err
	}
	run := journal.NewRun(p.Journal, "deploy", env.Name)
	report := &Report{RunID: run.ID, Environment: env.Name, Branch: env.Branch}

	done := run.Start(string(phasePreflight))
	err = p.Source.Prepare(ctx, env.Branch)
	done(err)
	if err != nil {
		return report, fmt.Errorf("deploy %s: %w", env.Name, err)
	}

	hosts, err := p.environmentHosts(ctx, env.ID)
	if err != nil {
		return report, err
	}
	roles := Partition(hosts, p.Policy)
	log.Info().Str("environment", env.Name).
		Int("worker", len(roles.Worker)).Int("app", len(roles.App)).Int("other", len(roles.Other)).
		Msg("deploy starting")

	phases := []phase{
		{PhaseStopWorkers, roles.Worker, p.stopWorkers},
		{PhaseSyncApp, roles.App, p.sync},
		{PhaseRestartApp, roles.App, p.control(servicectl.Restart, p.Policy.AppServices)},
		{PhaseSyncWorkers, roles.Worker, p.sync},
		{PhaseSyncOther, roles.Other, p.sync},
		{PhaseStartWorkers, roles.Worker, p.control(servicectl.Start, p.Policy.WorkerServices)},
		{PhaseRestartOther, roles.Other, p.control(servicectl.Restart, p.Policy.OtherServices)},
	}

	for _, ph := range phases {
		tasks := make([]fanout.Task, 0, len(ph.hosts))
		for _, h := range ph.hosts {
			tasks = append(tasks, fanout.Task{
				Name: h.Server.Name,
				Func: func(ctx context.Context) error { return ph.task(ctx, h) },
			})
		}

		done := run.Start(string(ph.name))
		err := fanout.Run(ctx, string(ph.name), p.Policy.Concurrency, tasks)
		done(err)

		p.Metrics.SetPhaseHosts(env.Name, string(ph.name), len(ph.hosts))
		result := PhaseResult{Phase: ph.name, Hosts: len(ph.hosts)}
		if err != nil {
			result.Error = err.Error()
		}
		report.Phases = append(report.Phases, result)
		if err != nil {
			log.Error().Str("environment", env.Name).Str("phase", string(ph.name)).Err(err).Msg("deploy phase failed")
			return report, fmt.Errorf("deploy %s: %w", env.Name, err)
		}
		log.Info().Str("environment", env.Name).Str("phase", string(ph.name)).Int("hosts", len(ph.hosts)).Msg("deploy phase done")
	}
	return report, nil
}

func (p *Pipeline) environmentHosts(ctx context.Context, envID int64) ([]domain.Host, error) {
	fleet, err := p.Inventory.LoadFleet(ctx)
	if err != nil {
		return nil, err
	}
	var hosts []domain.Host
	for _, h := range fleet {
		if h.Server.EnvironmentID == envID {
			hosts = append(hosts, h)
		}
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Server.Name < hosts[j].Server.Name })
	return hosts, nil
}

func (p *Pipeline) sync(ctx context.Context, h domain.Host) error {
	addr := h.ConnectAddress()
	if addr == "" {
		return fmt.Errorf("no reachable address")
	}
	return p.Syncer.Sync(ctx, p.Source.Path(), addr, p.Policy.RemotePath, remote.SyncOptions{
		Mirror:   true,
		Excludes: p.Policy.Excludes,
	})
}

// stopWorkers stops the worker services and waits until each is down.
func (p *Pipeline) stopWorkers(ctx context.Context, h domain.Host) error {
	addr := h.ConnectAddress()
	if addr == "" {
		return fmt.Errorf("no reachable address")
	}
	for _, svc := range servicesIn(h, p.Policy.WorkerServices) {
		st, err := p.Services.Do(ctx, addr, svc, servicectl.Stop)
		if err != nil {
			return err
		}
		if st == servicectl.Down {
			continue
		}
		if _, err := p.Services.WaitFor(ctx, addr, svc, servicectl.Down, p.Policy.StopWait); err != nil {
			return err
		}
	}
	return nil
}

// control applies action to the host's services named in names and
// expects each to be running afterwards.
func (p *Pipeline) control(action servicectl.Action, names []string) func(context.Context, domain.Host) error {
	return func(ctx context.Context, h domain.Host) error {
		addr := h.ConnectAddress()
		if addr == "" {
			return fmt.Errorf("no reachable address")
		}
		for _, svc := range servicesIn(h, names) {
			st, err := p.Services.Do(ctx, addr, svc, action)
			if err != nil {
				return err
			}
			if st != servicectl.Running {
				return &StatusError{Host: h.Server.Name, Service: svc.ServiceName, Action: action, Got: st, Want: servicectl.Running}
			}
		}
		return nil
	}
}
