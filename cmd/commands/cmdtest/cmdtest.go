// Package cmdtest sets up an isolated config, database and fake remote
// side for command tests.
package cmdtest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/internal/app"
	"nathanbeddoewebdev/fleet/internal/cloud"
	"nathanbeddoewebdev/fleet/internal/cloud/cloudtest"
	"nathanbeddoewebdev/fleet/internal/config"
	"nathanbeddoewebdev/fleet/internal/database"
	"nathanbeddoewebdev/fleet/internal/deploy"
	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/inventory"
	"nathanbeddoewebdev/fleet/internal/remote"
	"nathanbeddoewebdev/fleet/internal/remote/remotetest"
	"nathanbeddoewebdev/fleet/internal/services/auth"
)

// Env is the fake world a command runs against.
type Env struct {
	Dir    string
	Exec   *remotetest.Executor
	Syncer *remotetest.Syncer
	Cloud  *cloudtest.ControlPlane
	Store  *auth.MockStore
	Source deploy.SourceTree
}

// Source is a SourceTree that is always ready.
type Source struct {
	Root string
	Err  error
}

func (s *Source) Prepare(context.Context, string) error { return s.Err }
func (s *Source) Path() string                         { return s.Root }

// Setup points config and database at a temp dir and installs fakes for
// every outward-facing collaborator.
func Setup(t *testing.T) *Env {
	t.Helper()
	dir := t.TempDir()
	config.SetPath(filepath.Join(dir, "config.json"))
	t.Cleanup(config.ResetPath)
	database.SetPath(filepath.Join(dir, "fleet.db"))
	t.Cleanup(database.ResetPath)

	env := &Env{
		Dir:    dir,
		Exec:   remotetest.NewExecutor(),
		Syncer: &remotetest.Syncer{},
		Cloud:  cloudtest.New("example.com", "example.internal"),
		Store:  auth.NewMockStore(),
		Source: &Source{Root: dir},
	}
	t.Cleanup(app.SetFactories(app.Factories{
		Executor: func(*config.Config) (remote.Executor, error) { return env.Exec, nil },
		Syncer:   func(*config.Config) (remote.Syncer, error) { return env.Syncer, nil },
		Source:   func(config.DeployPolicy) deploy.SourceTree { return env.Source },
		Cloud:    func(domain.Provider, auth.Store) (cloud.ControlPlane, error) { return env.Cloud, nil },
		Store:    func() auth.Store { return env.Store },
	}))
	return env
}

// Inventory opens the test database for direct seeding and inspection.
func Inventory(t *testing.T) *inventory.SQLiteRepository {
	t.Helper()
	inv, err := inventory.Open()
	if err != nil {
		t.Fatalf("inventory.Open: %v", err)
	}
	t.Cleanup(func() { _ = inv.Close() })
	return inv
}

// Policy is the fleet policy written by Seed. The config-management
// authority answers on 10.0.0.1.
const Policy = `configMgmt:
  authority: puppet.example.internal
  authorityAddress: 10.0.0.1
deploy:
  appServices: [web]
  workerServices: [worker]
  concurrency: 4
  stopWait: 1s
`

// WritePolicy writes a policy file and points the config at it, keeping
// the default provider.
func WritePolicy(t *testing.T, policy string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleet-policy.yaml")
	if err := os.WriteFile(path, []byte(policy), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.PolicyFile = path
	if err := cfg.Save(); err != nil {
		t.Fatalf("save config: %v", err)
	}
}

// Seed records provider "main", its two zones and environment "prod",
// makes "main" the default provider and writes Policy.
func Seed(t *testing.T) (*domain.Provider, *domain.Environment) {
	t.Helper()
	ctx := context.Background()
	inv := Inventory(t)

	p := &domain.Provider{Name: "main", Compute: "hetzner", DNS: "cloudflare"}
	if err := inv.CreateProvider(ctx, p); err != nil {
		t.Fatalf("CreateProvider: %v", err)
	}
	pub := &domain.Domain{Name: "example.com", ProviderID: p.ID, ProviderRecordID: "zone-1"}
	priv := &domain.Domain{Name: "example.internal", ProviderID: p.ID, ProviderRecordID: "zone-2"}
	for _, d := range []*domain.Domain{pub, priv} {
		if err := inv.CreateDomain(ctx, d); err != nil {
			t.Fatalf("CreateDomain: %v", err)
		}
	}
	env := &domain.Environment{Name: "prod", PublicDomainID: pub.ID, PrivateDomainID: priv.ID}
	if err := inv.CreateEnvironment(ctx, env); err != nil {
		t.Fatalf("CreateEnvironment: %v", err)
	}

	cfg := &config.Config{DefaultProvider: "main"}
	if err := cfg.Save(); err != nil {
		t.Fatalf("save config: %v", err)
	}
	WritePolicy(t, Policy)
	return p, env
}

// AddServer records an active server with one public and one private
// address and the named services attached, creating services as needed.
func AddServer(t *testing.T, name string, env *domain.Environment, p *domain.Provider, public, private string, services ...domain.Service) *domain.Server {
	t.Helper()
	ctx := context.Background()
	inv := Inventory(t)

	srv := &domain.Server{Name: name, EnvironmentID: env.ID, ProviderID: p.ID, ProviderRecordID: "rec-" + name,
		Image: "ubuntu-24.04", Size: "cx22", Status: domain.ServerActive}
	if err := inv.CreateServer(ctx, srv); err != nil {
		t.Fatalf("CreateServer: %v", err)
	}
	for _, a := range []domain.Address{
		{ServerID: srv.ID, IP: public, Family: domain.IPv4, Visibility: domain.Public},
		{ServerID: srv.ID, IP: private, Family: domain.IPv4, Visibility: domain.Private},
	} {
		if err := inv.CreateAddress(ctx, &a); err != nil {
			t.Fatalf("CreateAddress: %v", err)
		}
	}
	for _, svc := range services {
		existing, err := inv.GetServiceByName(ctx, svc.Name)
		if err != nil {
			existing = &svc
			if err := inv.CreateService(ctx, existing); err != nil {
				t.Fatalf("CreateService: %v", err)
			}
		}
		if err := inv.AttachService(ctx, srv.ID, existing.ID); err != nil {
			t.Fatalf("AttachService: %v", err)
		}
	}
	return srv
}

// Run executes cmd with args and returns stdout, stderr and the error.
func Run(t *testing.T, cmd *cobra.Command, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}
