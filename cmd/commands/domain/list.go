package domain

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/app"
)

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List imported domains",
		Args:         cobra.NoArgs,
		RunE:         runList,
		SilenceUsage: true,
	}
	cmdutil.AddOutputFlag(cmd)
	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	output, err := cmdutil.Output(cmd)
	if err != nil {
		return err
	}
	a, err := app.Open()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	domains, err := a.Inventory.ListDomains(ctx)
	if err != nil {
		return err
	}
	if output == "json" {
		return cmdutil.PrintJSON(cmd, domains)
	}
	if len(domains) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No domains imported.")
		return nil
	}

	providers, err := a.Inventory.ListProviders(ctx)
	if err != nil {
		return err
	}
	names := make(map[int64]string, len(providers))
	for _, p := range providers {
		names[p.ID] = p.Name
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPROVIDER\tZONE ID")
	for _, d := range domains {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, names[d.ProviderID], d.ProviderRecordID)
	}
	return w.Flush()
}
