package provider

import "github.com/spf13/cobra"

// NewCommand returns the "provider" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage cloud accounts",
		Long: `A provider is one cloud account: the compute backend that runs servers
and the DNS backend that holds their zones. Tokens are stored per backend
with 'fleet auth login'.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(CreateCommand())
	cmd.AddCommand(ListCommand())

	return cmd
}
