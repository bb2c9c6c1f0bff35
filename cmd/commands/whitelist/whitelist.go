package whitelist

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/app"
	"nathanbeddoewebdev/fleet/internal/auditlog"
	"nathanbeddoewebdev/fleet/internal/tui"
)

// NewCommand returns the "whitelist" command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whitelist",
		Short: "Reconverge host firewalls across the fleet",
		Long: `Compile the firewall policy against the current inventory and apply the
resulting ruleset to every server. Every server is attempted; failures are
reported together at the end.

Provisioning and agent updates run this automatically. Run it by hand
after changing the policy file or a server's services.`,
		Args:         cobra.NoArgs,
		RunE:         runWhitelist,
		SilenceUsage: true,
	}
	return cmd
}

func runWhitelist(cmd *cobra.Command, args []string) (err error) {
	cmdutil.Annotate(cmd, auditlog.Metadata{ResourceType: "fleet"})

	a, err := app.Open()
	if err != nil {
		return err
	}
	defer a.Close()
	start := time.Now()
	defer func() { cmdutil.Observe(a, "whitelist", start, err) }()

	orch, err := a.Fleet()
	if err != nil {
		return err
	}
	var applied, hosts int
	err = tui.Spin(cmd.ErrOrStderr(), "Converging firewalls...", func() error {
		report, err := orch.Whitelist(cmd.Context())
		if report != nil {
			applied, hosts = report.Applied, report.Hosts
		}
		return err
	})
	fmt.Fprintf(cmd.OutOrStdout(), "Firewall applied on %d of %d servers.\n", applied, hosts)
	return err
}
