package agent

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/app"
	"nathanbeddoewebdev/fleet/internal/auditlog"
	"nathanbeddoewebdev/fleet/internal/provision"
	"nathanbeddoewebdev/fleet/internal/tui"
)

func UpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Reinstall the agent on every server",
		Long: `Reinstall the agent and push a fresh agent config to every server, at
most --limit at a time, then reconverge the firewall. The firewall step
is skipped when any reinstall failed.`,
		Args:         cobra.NoArgs,
		RunE:         runUpdate,
		SilenceUsage: true,
	}

	cmd.Flags().Int("limit", provision.DefaultAgentConcurrency, "Maximum servers updated at once")

	return cmd
}

func runUpdate(cmd *cobra.Command, args []string) (err error) {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}
	cmdutil.Annotate(cmd, auditlog.Metadata{ResourceType: "fleet"})

	a, err := app.Open()
	if err != nil {
		return err
	}
	defer a.Close()
	start := time.Now()
	defer func() { cmdutil.Observe(a, "agent-update", start, err) }()

	orch, err := a.Fleet()
	if err != nil {
		return err
	}
	err = tui.Spin(cmd.ErrOrStderr(), "Updating agents...", func() error {
		return orch.UpdateAgent(cmd.Context(), limit)
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Agent updated on every server and firewall reconverged.")
	return nil
}
