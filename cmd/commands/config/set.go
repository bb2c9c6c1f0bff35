package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/internal/config"
	"nathanbeddoewebdev/fleet/internal/inventory"
)

// SetCommand returns the "config set" command.
func SetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: "Set a persistent configuration value. An empty value clears the key.\n\n" +
			config.KeysHelp() +
			"\nExamples:\n" +
			"  fleet config set default-provider main\n" +
			"  fleet config set ssh-key ~/.ssh/fleet_ed25519\n" +
			"  fleet config set metrics-file \"\"",
		Args:         cobra.ExactArgs(2),
		RunE:         runSet,
		SilenceUsage: true,
	}

	return cmd
}

// validators run before a non-empty value is saved.
var validators = map[string]func(ctx context.Context, value string) error{
	"default-provider": validateProvider,
}

func runSet(cmd *cobra.Command, args []string) error {
	spec := config.Lookup(args[0])
	if spec == nil {
		return fmt.Errorf("unknown configuration key %q (valid: %s)", args[0], strings.Join(config.KeyNames(), ", "))
	}
	value := spec.Normalize(args[1])

	if validate, ok := validators[spec.Name]; ok && value != "" {
		if err := validate(cmd.Context(), value); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	spec.Set(cfg, value)
	if err := cfg.Save(); err != nil {
		return err
	}

	if value == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s cleared\n", spec.Name)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s set to %q\n", spec.Name, value)
	return nil
}

// validateProvider checks that the name is a provider in the inventory.
func validateProvider(ctx context.Context, name string) error {
	inv, err := inventory.Open()
	if err != nil {
		return err
	}
	defer inv.Close()

	if _, err := inv.GetProviderByName(ctx, name); err != nil {
		return fmt.Errorf("unknown provider %q: create it with 'fleet provider create'", name)
	}
	return nil
}
