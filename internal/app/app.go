// Package app wires the fleet components from the user config, the policy
// file and the local database. Commands build one App per invocation.
package app

import (
	"context"
	"errors"
	"fmt"

	"nathanbeddoewebdev/fleet/internal/agent"
	"nathanbeddoewebdev/fleet/internal/cloud"
	"nathanbeddoewebdev/fleet/internal/config"
	"nathanbeddoewebdev/fleet/internal/configmgmt"
	"nathanbeddoewebdev/fleet/internal/database"
	"nathanbeddoewebdev/fleet/internal/deploy"
	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/firewall"
	"nathanbeddoewebdev/fleet/internal/inventory"
	"nathanbeddoewebdev/fleet/internal/journal"
	"nathanbeddoewebdev/fleet/internal/metrics"
	"nathanbeddoewebdev/fleet/internal/provision"
	"nathanbeddoewebdev/fleet/internal/remote"
	"nathanbeddoewebdev/fleet/internal/servicectl"
	"nathanbeddoewebdev/fleet/internal/services/auth"
)

// Factories for the outward-facing collaborators. Tests replace them with
// fakes through SetFactories.
var (
	newExecutor = func(cfg *config.Config) (remote.Executor, error) {
		keyPath, err := cfg.SSHKeyPath()
		if err != nil {
			return nil, err
		}
		return remote.NewSSHExecutorFromFile(keyPath, remote.SSHConfig{User: cfg.SSHUser})
	}
	newSyncer = func(cfg *config.Config) (remote.Syncer, error) {
		keyPath, err := cfg.SSHKeyPath()
		if err != nil {
			return nil, err
		}
		return &remote.RsyncSyncer{User: cfg.SSHUser, KeyPath: keyPath}, nil
	}
	newSource = func(p config.DeployPolicy) deploy.SourceTree {
		return deploy.NewGitSource(p.Source, p.Remote)
	}
	openCloud = func(p domain.Provider, store auth.Store) (cloud.ControlPlane, error) {
		return cloud.Open(p, store)
	}
	defaultStore = auth.DefaultStore
)

// Factories groups the overridable constructors.
type Factories struct {
	Executor func(*config.Config) (remote.Executor, error)
	Syncer   func(*config.Config) (remote.Syncer, error)
	Source   func(config.DeployPolicy) deploy.SourceTree
	Cloud    func(domain.Provider, auth.Store) (cloud.ControlPlane, error)
	Store    func() auth.Store
}

// SetFactories replaces the non-nil factories and returns a func that
// restores the previous set. Intended for testing.
func SetFactories(f Factories) (restore func()) {
	prevExec, prevSync, prevSource, prevCloud, prevStore := newExecutor, newSyncer, newSource, openCloud, defaultStore
	if f.Executor != nil {
		newExecutor = f.Executor
	}
	if f.Syncer != nil {
		newSyncer = f.Syncer
	}
	if f.Source != nil {
		newSource = f.Source
	}
	if f.Cloud != nil {
		openCloud = f.Cloud
	}
	if f.Store != nil {
		defaultStore = f.Store
	}
	return func() {
		newExecutor, newSyncer, newSource, openCloud, defaultStore = prevExec, prevSync, prevSource, prevCloud, prevStore
	}
}

// App holds the per-invocation state shared by commands.
type App struct {
	Config    *config.Config
	Policy    *config.Policy
	Inventory *inventory.SQLiteRepository
	Journal   *journal.SQLiteRepository
	Store     auth.Store
	Metrics   *metrics.Recorder

	exec remote.Executor
}

// Open loads the user config and policy and opens the database. The schema
// is migrated here, once per process.
func Open() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	policyPath, err := config.PolicyPath(cfg)
	if err != nil {
		return nil, err
	}
	policy, err := config.LoadPolicy(policyPath)
	if err != nil {
		return nil, err
	}

	dbPath, err := database.DefaultPath()
	if err != nil {
		return nil, err
	}
	inv, err := inventory.OpenAt(dbPath)
	if err != nil {
		return nil, err
	}
	jr, err := journal.OpenAt(dbPath)
	if err != nil {
		inv.Close()
		return nil, err
	}

	return &App{
		Config:    cfg,
		Policy:    policy,
		Inventory: inv,
		Journal:   jr,
		Store:     defaultStore(),
		Metrics:   metrics.New(cfg.MetricsFile),
	}, nil
}

// Close flushes metrics and closes the database handles.
func (a *App) Close() error {
	return errors.Join(a.Metrics.Flush(), a.Journal.Close(), a.Inventory.Close())
}

// Executor returns the remote executor, creating it on first use.
func (a *App) Executor() (remote.Executor, error) {
	if a.exec != nil {
		return a.exec, nil
	}
	exec, err := newExecutor(a.Config)
	if err != nil {
		return nil, err
	}
	a.exec = exec
	return exec, nil
}

// Provider resolves an inventory provider by name, falling back to the
// default-provider key.
func (a *App) Provider(ctx context.Context, name string) (*domain.Provider, error) {
	if name == "" {
		name = a.Config.DefaultProvider
	}
	if name == "" {
		return nil, fmt.Errorf("no provider specified: use --provider or set a default with 'fleet config set default-provider <name>'")
	}
	return a.Inventory.GetProviderByName(ctx, name)
}

// Cloud opens the control plane of the named provider.
func (a *App) Cloud(ctx context.Context, providerName string) (cloud.ControlPlane, *domain.Provider, error) {
	p, err := a.Provider(ctx, providerName)
	if err != nil {
		return nil, nil, err
	}
	cp, err := openCloud(*p, a.Store)
	if err != nil {
		return nil, nil, err
	}
	return cp, p, nil
}

// Services returns a service controller over the remote executor.
func (a *App) Services() (*servicectl.Controller, error) {
	exec, err := a.Executor()
	if err != nil {
		return nil, err
	}
	return servicectl.New(exec), nil
}

// Converger returns the fleet-wide firewall converger.
func (a *App) Converger() (*firewall.Converger, error) {
	exec, err := a.Executor()
	if err != nil {
		return nil, err
	}
	pol := a.Policy.Firewall
	return firewall.NewConverger(a.Inventory, firewall.NewApplier(exec, pol), pol), nil
}

// ConfigMgmt returns the configuration-management client.
func (a *App) ConfigMgmt() (*configmgmt.Manager, error) {
	exec, err := a.Executor()
	if err != nil {
		return nil, err
	}
	return configmgmt.New(exec, a.Policy.ConfigMgmt.AuthorityAddress), nil
}

// Fleet wires an orchestrator for the fleet-wide operations that never
// talk to a cloud account: whitelist, agent update and server update.
func (a *App) Fleet() (*provision.Orchestrator, error) {
	exec, err := a.Executor()
	if err != nil {
		return nil, err
	}
	conv, err := a.Converger()
	if err != nil {
		return nil, err
	}
	cm, err := a.ConfigMgmt()
	if err != nil {
		return nil, err
	}
	return &provision.Orchestrator{
		Inventory:  a.Inventory,
		Exec:       exec,
		Agent:      agent.NewInstaller(exec, *a.Policy),
		Firewall:   conv,
		ConfigMgmt: cm,
		Journal:    a.Journal,
		DataDir:    a.Policy.Compute.DataDir,
	}, nil
}

// Orchestrator wires a provisioning orchestrator for the named provider.
func (a *App) Orchestrator(ctx context.Context, providerName string) (*provision.Orchestrator, error) {
	cp, p, err := a.Cloud(ctx, providerName)
	if err != nil {
		return nil, err
	}
	o, err := a.Fleet()
	if err != nil {
		return nil, err
	}
	o.Cloud = cp
	o.Provider = *p
	return o, nil
}

// Pipeline wires the deployment pipeline.
func (a *App) Pipeline() (*deploy.Pipeline, error) {
	svc, err := a.Services()
	if err != nil {
		return nil, err
	}
	syncer, err := newSyncer(a.Config)
	if err != nil {
		return nil, err
	}
	return &deploy.Pipeline{
		Inventory: a.Inventory,
		Services:  svc,
		Syncer:    syncer,
		Source:    newSource(a.Policy.Deploy),
		Policy:    a.Policy.Deploy,
		Journal:   a.Journal,
		Metrics:   a.Metrics,
	}, nil
}

// Site wires the maintenance toggle.
func (a *App) Site() (*deploy.Site, error) {
	exec, err := a.Executor()
	if err != nil {
		return nil, err
	}
	return &deploy.Site{
		Inventory:   a.Inventory,
		Exec:        exec,
		Services:    servicectl.New(exec),
		Policy:      a.Policy.Site,
		Concurrency: a.Policy.Deploy.Concurrency,
	}, nil
}
