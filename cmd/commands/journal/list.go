package journal

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/journal"
	"nathanbeddoewebdev/fleet/internal/tui/styles"
)

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal entries",
		Long: `List recent journal entries, newest first, or every step of one run in
order.

Examples:
  fleet journal list
  fleet journal list --run 3f2c9a6e-...`,
		Args:         cobra.NoArgs,
		RunE:         runList,
		SilenceUsage: true,
	}

	cmd.Flags().String("run", "", "Show every step of this run")
	cmd.Flags().Int("limit", 25, "Number of entries to display")
	cmdutil.AddOutputFlag(cmd)

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	runID, _ := cmd.Flags().GetString("run")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}
	output, err := cmdutil.Output(cmd)
	if err != nil {
		return err
	}

	repo, err := journal.Open()
	if err != nil {
		return err
	}
	defer repo.Close()

	var entries []journal.Entry
	if runID != "" {
		entries, err = repo.ListRun(runID)
	} else {
		entries, err = repo.ListRecent(limit)
	}
	if err != nil {
		return err
	}

	if output == "json" {
		return cmdutil.PrintJSON(cmd, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No journal entries found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tRUN\tOPERATION\tTARGET\tSTEP\tSTATUS\tERROR")
	for _, e := range entries {
		errText := e.ErrorMessage
		if errText == "" {
			errText = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			shortID(e.RunID), e.Operation, e.Target, e.Step,
			styles.StatusIndicator(e.Status), errText)
	}
	return w.Flush()
}

// shortID trims a run ID for the table; --run takes the full ID from -o json.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
