package agent

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/internal/agent"
	"nathanbeddoewebdev/fleet/internal/config"
)

func BootstrapCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Join this host to its environment",
		Long: `Read the agent config pushed at provisioning time and rewrite the local
resolver search domain, the config-management server and environment,
and the server ID file. Safe to run repeatedly.

This runs on the server, not on the operator machine.`,
		Args:         cobra.NoArgs,
		RunE:         runBootstrap,
		SilenceUsage: true,
	}

	cmd.Flags().String("config", config.DefaultAgentConfigPath, "Path to the agent config")

	return cmd
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := agent.LoadConfig(path)
	if err != nil {
		return err
	}
	if err := agent.Bootstrap(*cfg); err != nil {
		return err
	}

	log.Info().Str("server", cfg.ServerName).Str("environment", cfg.Environment).Msg("agent bootstrapped")
	fmt.Fprintf(cmd.OutOrStdout(), "Bootstrapped %s (server %d) into %s.\n", cfg.ServerName, cfg.ServerID, cfg.Environment)
	return nil
}
