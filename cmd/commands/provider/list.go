package provider

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
		Short:        "List cloud accounts",
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

	list, err := a.Inventory.ListProviders(cmd.Context())
	if err != nil {
		return err
	}
	if output == "json" {
		return cmdutil.PrintJSON(cmd, list)
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No providers recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCOMPUTE\tDNS\tDEFAULT")
	for _, p := range list {
		def := ""
		if p.Name == a.Config.DefaultProvider {
			def = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, p.Compute, p.DNS, def)
	}
	return w.Flush()
}
