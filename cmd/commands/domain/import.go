package domain

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

func ImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <zone>",
		Short: "Import an existing DNS zone",
		Long: `Look a zone up on the provider's DNS backend and record it in the
inventory.

Examples:
  fleet domain import example.com
  fleet domain import example.internal --provider main`,
		Args:         cobra.ExactArgs(1),
		RunE:         runImport,
		SilenceUsage: true,
	}

	cmd.Flags().String("provider", "", "Provider that owns the zone (default: the default-provider key)")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) (err error) {
	zoneName := strings.TrimSuffix(naming.Key(args[0]), ".")
	if err := naming.Zone(zoneName); err != nil {
		return err
	}
	providerName, _ := cmd.Flags().GetString("provider")
	cmdutil.Annotate(cmd, auditlog.Metadata{ResourceType: "domain", ResourceName: zoneName})

	a, err := app.Open()
	if err != nil {
		return err
	}
	defer a.Close()
	start := time.Now()
	defer func() { cmdutil.Observe(a, "domain-import", start, err) }()

	cp, p, err := a.Cloud(cmd.Context(), providerName)
	if err != nil {
		return err
	}
	zone, err := cp.GetZoneByName(cmd.Context(), zoneName)
	if err != nil {
		return err
	}

	d := &domain.Domain{Name: zone.Name, ProviderID: p.ID, ProviderRecordID: zone.ID}
	if err := a.Inventory.CreateDomain(cmd.Context(), d); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Domain %q imported from %s (zone %s).\n", d.Name, p.Name, zone.ID)
	return nil
}
