package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/app"
	"nathanbeddoewebdev/fleet/internal/auditlog"
	"nathanbeddoewebdev/fleet/internal/domain"
)

func ServicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "services",
		Short: "Manage which services a server runs",
		Long: `Attach services to a server or clear them. Service associations drive
deploy phases and firewall rules; run 'fleet whitelist' afterwards to
reconverge the firewall.`,
		SilenceUsage: true,
	}

	add := &cobra.Command{
		Use:   "add <server> <service>...",
		Short: "Attach services to a server",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServices(cmd, args[0], args[1:])
		},
		SilenceUsage: true,
	}
	clearCmd := &cobra.Command{
		Use:   "clear <server>",
		Short: "Detach every service from a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServices(cmd, args[0], nil)
		},
		SilenceUsage: true,
	}
	for _, c := range []*cobra.Command{add, clearCmd} {
		c.Flags().String("environment", "", "Environment of the server (required)")
		_ = c.MarkFlagRequired("environment")
	}

	cmd.AddCommand(add, clearCmd)
	return cmd
}

// runServices attaches names to the server, or clears its services when
// names is empty.
func runServices(cmd *cobra.Command, serverName string, names []string) (err error) {
	envName, _ := cmd.Flags().GetString("environment")

	a, err := app.Open()
	if err != nil {
		return err
	}
	defer a.Close()
	start := time.Now()
	defer func() { cmdutil.Observe(a, "server-services", start, err) }()

	ctx := cmd.Context()
	env, err := a.Inventory.GetEnvironmentByName(ctx, envName)
	if err != nil {
		return err
	}
	srv, err := a.Inventory.GetServerByName(ctx, env.ID, serverName)
	if err != nil {
		return err
	}
	cmdutil.Annotate(cmd, auditlog.Metadata{Environment: env.Name, ResourceType: "server",
		ResourceID: srv.ProviderRecordID, ResourceName: srv.Name})

	if len(names) == 0 {
		if err := a.Inventory.ClearServices(ctx, srv.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared services on %q.\n", srv.Name)
		return nil
	}

	// Resolve every name before attaching any.
	svcs := make([]*domain.Service, 0, len(names))
	for _, name := range names {
		svc, err := a.Inventory.GetServiceByName(ctx, name)
		if err != nil {
			return err
		}
		svcs = append(svcs, svc)
	}
	for _, svc := range svcs {
		if err := a.Inventory.AttachService(ctx, srv.ID, svc.ID); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Attached %s to %q.\n", strings.Join(names, ", "), srv.Name)
	return nil
}
