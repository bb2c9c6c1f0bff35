package environment

import "github.com/spf13/cobra"

// NewCommand returns the "environment" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "environment",
		Aliases: []string{"env"},
		Short:   "Manage deployment environments",
		Long: `An environment groups servers under a public and a private domain and
names the source branch that is deployed to them.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(CreateCommand())
	cmd.AddCommand(ListCommand())

	return cmd
}
