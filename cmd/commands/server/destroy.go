package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/app"
	"nathanbeddoewebdev/fleet/internal/auditlog"
	"nathanbeddoewebdev/fleet/internal/tui"
)

func DestroyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "destroy <name>",
		Short: "Destroy a server",
		Long: `Destroy a server: revoke its certificate, delete the cloud instance,
remove its DNS records and addresses, and drop it from the inventory.

A server with block volumes still attached is refused. Detach them first.

Examples:
  # Asks for confirmation
  fleet server destroy web-01 --environment prod

  # Non-interactive (scripting)
  fleet server destroy web-01 --environment prod --yes`,
		Args:         cobra.ExactArgs(1),
		RunE:         runDestroy,
		SilenceUsage: true,
	}

	cmd.Flags().String("environment", "", "Environment of the server (required)")
	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	_ = cmd.MarkFlagRequired("environment")

	return cmd
}

func runDestroy(cmd *cobra.Command, args []string) (err error) {
	name := args[0]
	envName, _ := cmd.Flags().GetString("environment")
	yes, _ := cmd.Flags().GetBool("yes")

	a, err := app.Open()
	if err != nil {
		return err
	}
	defer a.Close()
	start := time.Now()
	defer func() { cmdutil.Observe(a, "destroy", start, err) }()

	ctx := cmd.Context()
	env, err := a.Inventory.GetEnvironmentByName(ctx, envName)
	if err != nil {
		return err
	}
	srv, err := a.Inventory.GetServerByName(ctx, env.ID, name)
	if err != nil {
		return err
	}
	p, err := a.Inventory.GetProvider(ctx, srv.ProviderID)
	if err != nil {
		return err
	}
	cmdutil.Annotate(cmd, auditlog.Metadata{
		Environment:  env.Name,
		ResourceType: "server",
		ResourceID:   srv.ProviderRecordID,
		ResourceName: srv.Name,
	})

	err = tui.Confirm(
		fmt.Sprintf("Destroy server %q in %s?", srv.Name, env.Name),
		fmt.Sprintf("Instance %s on %s will be deleted along with its DNS records.", srv.ProviderRecordID, p.Name),
		yes,
	)
	if errors.Is(err, tui.ErrAborted) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Server destruction cancelled.")
		return &cmdutil.ExitError{Code: 1, Err: err}
	}
	if err != nil {
		return err
	}

	orch, err := a.Orchestrator(ctx, p.Name)
	if err != nil {
		return err
	}
	err = tui.Spin(cmd.ErrOrStderr(), fmt.Sprintf("Destroying %s...", srv.Name), func() error {
		return orch.Destroy(ctx, srv.ID)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Server %q destroyed.\n", srv.Name)
	return nil
}
