package server

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/app"
	"nathanbeddoewebdev/fleet/internal/inventory"
)

func UnprovisionedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unprovisioned",
		Short: "List cloud instances missing from the inventory",
		Long: `List instances on the provider's cloud account that no inventory server
points at. These are usually leftovers of failed provisioning runs.

Examples:
  fleet server unprovisioned
  fleet server unprovisioned --provider main -o json`,
		Args:         cobra.NoArgs,
		RunE:         runUnprovisioned,
		SilenceUsage: true,
	}

	cmd.Flags().String("provider", "", "Provider to scan (default: the default-provider key)")
	cmdutil.AddOutputFlag(cmd)

	return cmd
}

func runUnprovisioned(cmd *cobra.Command, args []string) (err error) {
	providerName, _ := cmd.Flags().GetString("provider")
	output, err := cmdutil.Output(cmd)
	if err != nil {
		return err
	}

	a, err := app.Open()
	if err != nil {
		return err
	}
	defer a.Close()
	start := time.Now()
	defer func() { cmdutil.Observe(a, "unprovisioned", start, err) }()

	ctx := cmd.Context()
	orch, err := a.Orchestrator(ctx, providerName)
	if err != nil {
		return err
	}
	known, err := a.Inventory.ListServers(ctx, inventory.ServerFilter{ProviderID: orch.Provider.ID})
	if err != nil {
		return err
	}
	instances, err := orch.Unprovisioned(ctx, known)
	if err != nil {
		return err
	}

	if output == "json" {
		return cmdutil.PrintJSON(cmd, instances)
	}
	if len(instances) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Every instance is in the inventory.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSIZE\tLOCATION\tCREATED")
	for _, inst := range instances {
		created := "-"
		if !inst.CreatedAt.IsZero() {
			created = inst.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			inst.ID, inst.Name, inst.Status, orDash(inst.Size), orDash(inst.Location), created)
	}
	return w.Flush()
}
