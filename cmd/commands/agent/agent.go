package agent

import "github.com/spf13/cobra"

// NewCommand returns the "agent" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Install and run the fleet agent",
		Long: `The fleet agent runs on every server. 'bootstrap' runs on the server
itself; 'update' reinstalls the agent across the fleet from the operator
machine.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(BootstrapCommand())
	cmd.AddCommand(UpdateCommand())

	return cmd
}
