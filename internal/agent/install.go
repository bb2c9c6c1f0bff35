package agent

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"nathanbeddoewebdev/fleet/internal/config"
	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/remote"
)

// Installer pushes the agent and its config to hosts.
type Installer struct {
	Exec      remote.Executor
	Policy    config.AgentPolicy
	Authority string
}

// NewInstaller builds an installer from the fleet policy.
func NewInstaller(exec remote.Executor, policy config.Policy) *Installer {
	policy = policy.WithDefaults()
	return &Installer{Exec: exec, Policy: policy.Agent, Authority: policy.ConfigMgmt.Authority}
}

// ConfigFor builds the agent config for host.
func (i *Installer) ConfigFor(host domain.Host, privateDomain string) Config {
	return Config{
		ServerID:      host.Server.ID,
		ServerName:    host.Server.Name,
		Environment:   host.Environment.Name,
		PrivateDomain: privateDomain,
		Authority:     i.Authority,
		ResolvConf:    i.Policy.ResolvConf,
		PuppetConf:    i.Policy.PuppetConf,
		ServerIDPath:  i.Policy.ServerIDPath,
	}
}

// BootstrapCommand is run on the host once the config is in place.
func (i *Installer) BootstrapCommand() string {
	return "fleet agent bootstrap --config " + remote.Quote(i.Policy.ConfigPath)
}

// Install runs the install command, uploads cfg and runs the bootstrap on
// addr. It stops at the first failing step.
func (i *Installer) Install(ctx context.Context, addr string, cfg Config) error {
	if _, err := remote.Check(ctx, i.Exec, addr, i.Policy.Install); err != nil {
		return fmt.Errorf("agent install on %s: %w", cfg.ServerName, err)
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	if err := i.Exec.Upload(ctx, addr, i.Policy.ConfigPath, data, 0o600); err != nil {
		return fmt.Errorf("agent config on %s: %w", cfg.ServerName, err)
	}

	if _, err := remote.Check(ctx, i.Exec, addr, i.BootstrapCommand()); err != nil {
		return fmt.Errorf("agent bootstrap on %s: %w", cfg.ServerName, err)
	}
	log.Info().Str("server", cfg.ServerName).Msg("agent installed")
	return nil
}
