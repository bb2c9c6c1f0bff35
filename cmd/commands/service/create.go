package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/app"
	"nathanbeddoewebdev/fleet/internal/auditlog"
	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/naming"
)

func CreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Define a service",
		Long: `Define a service. The os-level name defaults to the friendly name.

Examples:
  fleet service create web --kind supervised --service-name app-web
  fleet service create proxy --kind init-script --service-name nginx --reload`,
		Args:         cobra.ExactArgs(1),
		RunE:         runCreate,
		SilenceUsage: true,
	}

	cmd.Flags().String("kind", string(domain.Supervised), "Process manager: supervised or init-script")
	cmd.Flags().String("service-name", "", "Name the process manager knows the service by")
	cmd.Flags().Bool("reload", false, "The service supports reload")

	return cmd
}

func parseKind(s string) (domain.ServiceKind, error) {
	switch k := domain.ServiceKind(strings.ToLower(strings.TrimSpace(s))); k {
	case domain.Supervised, domain.InitScript:
		return k, nil
	}
	return "", fmt.Errorf("unknown service kind %q (want %s or %s)", s, domain.Supervised, domain.InitScript)
}

func runCreate(cmd *cobra.Command, args []string) (err error) {
	name := args[0]
	if err := naming.Service(name); err != nil {
		return err
	}
	rawKind, _ := cmd.Flags().GetString("kind")
	kind, err := parseKind(rawKind)
	if err != nil {
		return err
	}
	serviceName, _ := cmd.Flags().GetString("service-name")
	if serviceName == "" {
		serviceName = name
	}
	reload, _ := cmd.Flags().GetBool("reload")
	cmdutil.Annotate(cmd, auditlog.Metadata{ResourceType: "service", ResourceName: name})

	a, err := app.Open()
	if err != nil {
		return err
	}
	defer a.Close()
	start := time.Now()
	defer func() { cmdutil.Observe(a, "service-create", start, err) }()

	svc := &domain.Service{Name: name, Kind: kind, DoesReload: reload, ServiceName: serviceName}
	if err := a.Inventory.CreateService(cmd.Context(), svc); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Service %q created (%s, %s).\n", svc.Name, svc.Kind, svc.ServiceName)
	return nil
}
