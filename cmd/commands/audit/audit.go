// Package audit implements the commands over the per-command audit trail.
package audit

import "github.com/spf13/cobra"

// NewCommand returns the "audit" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show and prune the command audit trail",
		Long: `Every fleet command leaves one audit entry: the command line with secrets
redacted, the environment and resource it touched, its outcome and exit
code, and how long it ran. Entries live in the local fleet database.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(ListCommand())
	cmd.AddCommand(PruneCommand())

	return cmd
}
