package config

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/internal/config"
)

// GetCommand returns the "config get" command.
func GetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Show configuration values",
		Long: "Show one configuration value, or every key when none is given.\n\n" +
			config.KeysHelp(),
		Args:         cobra.MaximumNArgs(1),
		RunE:         runGet,
		SilenceUsage: true,
	}

	return cmd
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE")
		for _, spec := range config.Keys {
			fmt.Fprintf(w, "%s\t%s\n", spec.Name, display(spec, cfg))
		}
		return w.Flush()
	}

	spec := config.Lookup(args[0])
	if spec == nil {
		return fmt.Errorf("unknown configuration key %q (valid: %s)", args[0], strings.Join(config.KeyNames(), ", "))
	}
	fmt.Fprintln(cmd.OutOrStdout(), display(*spec, cfg))
	return nil
}

func display(spec config.KeySpec, cfg *config.Config) string {
	if v := spec.Get(cfg); v != "" {
		return v
	}
	if spec.Default != "" {
		return "(not set, default " + spec.Default + ")"
	}
	return "(not set)"
}
