package service

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
		Short:        "List service definitions",
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

	list, err := a.Inventory.ListServices(cmd.Context())
	if err != nil {
		return err
	}
	if output == "json" {
		return cmdutil.PrintJSON(cmd, list)
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No services defined.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tSERVICE NAME\tRELOAD")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", s.Name, s.Kind, s.ServiceName, s.DoesReload)
	}
	return w.Flush()
}
