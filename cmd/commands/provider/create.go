package provider

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/app"
	"nathanbeddoewebdev/fleet/internal/auditlog"
	"nathanbeddoewebdev/fleet/internal/dns"
	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/naming"
	"nathanbeddoewebdev/fleet/internal/providers"
)

func CreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Record a cloud account",
		Long: `Record a cloud account in the inventory.

Examples:
  fleet provider create main --compute hetzner --dns cloudflare`,
		Args:         cobra.ExactArgs(1),
		RunE:         runCreate,
		SilenceUsage: true,
	}

	cmd.Flags().String("compute", "hetzner", "Compute backend")
	cmd.Flags().String("dns", "cloudflare", "DNS backend")

	return cmd
}

func runCreate(cmd *cobra.Command, args []string) (err error) {
	name := naming.Key(args[0])
	compute, _ := cmd.Flags().GetString("compute")
	dnsKind, _ := cmd.Flags().GetString("dns")
	compute, dnsKind = naming.Key(compute), naming.Key(dnsKind)

	if name == "" {
		return fmt.Errorf("provider name must not be empty")
	}
	if !slices.Contains(providers.List(), compute) {
		return fmt.Errorf("unknown compute backend %q (available: %v)", compute, providers.List())
	}
	if !slices.Contains(dns.List(), dnsKind) {
		return fmt.Errorf("unknown DNS backend %q (available: %v)", dnsKind, dns.List())
	}
	cmdutil.Annotate(cmd, auditlog.Metadata{ResourceType: "provider", ResourceName: name})

	a, err := app.Open()
	if err != nil {
		return err
	}
	defer a.Close()
	start := time.Now()
	defer func() { cmdutil.Observe(a, "provider-create", start, err) }()

	p := &domain.Provider{Name: name, Compute: compute, DNS: dnsKind}
	if err := a.Inventory.CreateProvider(cmd.Context(), p); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Provider %q created (compute: %s, dns: %s).\n", p.Name, p.Compute, p.DNS)
	return nil
}
