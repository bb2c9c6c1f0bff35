package audit

import (
	"fmt"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/auditlog"
)

func PruneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old audit entries",
		Example: `  fleet audit prune --older-than 30d
  fleet audit prune --older-than 72h`,
		Args:         cobra.NoArgs,
		RunE:         runPrune,
		SilenceUsage: true,
	}
	cmdutil.AddOlderThanFlag(cmd)
	return cmd
}

func runPrune(cmd *cobra.Command, args []string) error {
	age, err := cmdutil.OlderThan(cmd)
	if err != nil {
		return err
	}
	repo, err := auditlog.Open()
	if err != nil {
		return err
	}
	defer repo.Close()

	n, err := repo.DeleteOlderThan(age)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d audit entries older than %s.\n", n, age)
	return nil
}
