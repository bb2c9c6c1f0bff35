package server

import "github.com/spf13/cobra"

// NewCommand returns the "server" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Provision, inspect and destroy fleet servers",
		Long: `Manage the servers recorded in the inventory.

Creating a server drives it from a cloud instance to an active host:
addresses and DNS records, optional storage, the fleet agent, the
firewall and configuration-management enrollment. Destroying it tears
all of that down again.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(CreateCommand())
	cmd.AddCommand(DestroyCommand())
	cmd.AddCommand(ListCommand())
	cmd.AddCommand(UnprovisionedCommand())
	cmd.AddCommand(AddressCommand())
	cmd.AddCommand(UpdateCommand())
	cmd.AddCommand(ServicesCommand())

	return cmd
}
