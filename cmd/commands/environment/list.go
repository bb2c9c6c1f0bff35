package environment

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/app"
	"nathanbeddoewebdev/fleet/internal/inventory"
)

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List environments",
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
	envs, err := a.Inventory.ListEnvironments(ctx)
	if err != nil {
		return err
	}
	if output == "json" {
		return cmdutil.PrintJSON(cmd, envs)
	}
	if len(envs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No environments.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tBRANCH\tPUBLIC\tPRIVATE\tSERVERS")
	for _, e := range envs {
		pub, err := a.Inventory.GetDomain(ctx, e.PublicDomainID)
		if err != nil {
			return err
		}
		priv, err := a.Inventory.GetDomain(ctx, e.PrivateDomainID)
		if err != nil {
			return err
		}
		servers, err := a.Inventory.ListServers(ctx, inventory.ServerFilter{EnvironmentID: e.ID})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", e.Name, e.Branch, pub.Name, priv.Name, len(servers))
	}
	return w.Flush()
}
