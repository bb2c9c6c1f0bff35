package domain

import "github.com/spf13/cobra"

// NewCommand returns the "domain" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domain",
		Short: "Manage DNS zones known to the inventory",
		Long: `Domains are DNS zones held by a provider's DNS backend. Import a zone
before using it as an environment's public or private domain.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(ImportCommand())
	cmd.AddCommand(ListCommand())

	return cmd
}
