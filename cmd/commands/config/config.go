package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/internal/config"
)

// NewCommand returns the "config" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage fleet settings",
		Long: "View and modify persistent fleet settings.\n\n" +
			"Settings live in config.json under the user config directory, or\n" +
			"under $" + config.EnvDir + " when set. The fleet policy is policy.yaml\n" +
			"next to it unless policy-file is set.\n\n" +
			config.KeysHelp(),
	}

	cmd.AddCommand(SetCommand())
	cmd.AddCommand(GetCommand())
	cmd.AddCommand(PathCommand())

	return cmd
}

// PathCommand returns the "config path" command.
func PathCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "path",
		Short:        "Print where settings and policy are read from",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Path()
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			policy, err := config.PolicyPath(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "settings: %s\npolicy:   %s\n", settings, policy)
			return nil
		},
	}
}
