package audit

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/auditlog"
	"nathanbeddoewebdev/fleet/internal/tui/styles"
)

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit entries, newest first",
		Example: `  fleet audit list
  fleet audit list --environment prod --limit 50
  fleet audit list --command "fleet server create" -o json
  fleet audit list --run 3f2c9a6e-...`,
		Args:         cobra.NoArgs,
		RunE:         runList,
		SilenceUsage: true,
	}

	cmd.Flags().Int("limit", 25, "Maximum entries to show")
	cmd.Flags().String("command", "", "Only entries for this command path")
	cmd.Flags().String("environment", "", "Only entries for this environment")
	cmd.Flags().String("run", "", "Only entries for this run ID")
	cmdutil.AddOutputFlag(cmd)

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	f := auditlog.Filter{}
	f.Limit, _ = cmd.Flags().GetInt("limit")
	f.Command, _ = cmd.Flags().GetString("command")
	f.Environment, _ = cmd.Flags().GetString("environment")
	f.RunID, _ = cmd.Flags().GetString("run")
	if f.Limit <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}
	output, err := cmdutil.Output(cmd)
	if err != nil {
		return err
	}

	repo, err := auditlog.Open()
	if err != nil {
		return err
	}
	defer repo.Close()

	entries, err := repo.List(f)
	if err != nil {
		return err
	}
	if output == "json" {
		return cmdutil.PrintJSON(cmd, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No audit entries found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tCOMMAND\tENV\tOUTCOME\tEXIT\tTOOK\tTARGET\tDETAIL")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Command,
			orDash(e.Environment),
			styles.StatusIndicator(string(e.Outcome)),
			e.ExitCode,
			took(e.DurationMs),
			target(e),
			orDash(e.Detail),
		)
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// took renders a duration at the precision an operator cares about.
func took(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", ms)
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}

// target renders "type/name#id" from whichever parts are set.
func target(e auditlog.Entry) string {
	var b strings.Builder
	b.WriteString(e.ResourceType)
	if e.ResourceName != "" {
		if b.Len() > 0 {
			b.WriteByte('/')
		}
		b.WriteString(e.ResourceName)
	}
	if e.ResourceID != "" {
		b.WriteString("#" + e.ResourceID)
	}
	return orDash(b.String())
}
