package journal

import "github.com/spf13/cobra"

// NewCommand returns the "journal" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect orchestration runs step by step",
		Long: `Provisioning, destroy, deploy and fleet-wide runs record every step in
the journal. A run that stopped part way leaves its last step in "error",
or "running" if the process died.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(ListCommand())
	cmd.AddCommand(PruneCommand())

	return cmd
}
