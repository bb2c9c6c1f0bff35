package server

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/app"
	"nathanbeddoewebdev/fleet/internal/auditlog"
)

func UpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Run configuration management across the fleet",
		Long: `Run the configuration-management client on the authority, then on every
server with at most --limit running at once. Every server is attempted and
the failures are reported together.`,
		Args:         cobra.NoArgs,
		RunE:         runUpdate,
		SilenceUsage: true,
	}

	cmd.Flags().Int("limit", 10, "Maximum servers updated at once")

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
	defer func() { cmdutil.Observe(a, "server-update", start, err) }()

	orch, err := a.Fleet()
	if err != nil {
		return err
	}
	if err := orch.UpdateConfig(cmd.Context(), limit); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Configuration applied across the fleet.")
	return nil
}
