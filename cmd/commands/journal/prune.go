package journal

import (
	"fmt"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/journal"
)

func PruneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished journal entries",
		Long: `Delete finished journal entries older than the given age. Steps still
marked running are kept: they are the trace of a run that died part way.`,
		Example:      "  fleet journal prune --older-than 90d",
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
	repo, err := journal.Open()
	if err != nil {
		return err
	}
	defer repo.Close()

	n, err := repo.DeleteOlderThan(age)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d finished journal steps older than %s.\n", n, age)
	return nil
}
