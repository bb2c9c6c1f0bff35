package server

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/app"
	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/inventory"
	"nathanbeddoewebdev/fleet/internal/tui/styles"
)

func ListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List servers in the inventory",
		Long: `List servers recorded in the inventory.

Examples:
  fleet server list
  fleet server list --environment prod
  fleet server list -o json`,
		Args:         cobra.NoArgs,
		RunE:         runList,
		SilenceUsage: true,
	}

	cmd.Flags().String("environment", "", "Only list servers in this environment")
	cmdutil.AddOutputFlag(cmd)

	return cmd
}

// row is a server as shown by list.
type row struct {
	domain.Server
	Environment string `json:"environment"`
	PublicIPv4  string `json:"public_ipv4,omitempty"`
	PrivateIPv4 string `json:"private_ipv4,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	envName, _ := cmd.Flags().GetString("environment")
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
	var filter inventory.ServerFilter
	if envName != "" {
		env, err := a.Inventory.GetEnvironmentByName(ctx, envName)
		if err != nil {
			return err
		}
		filter.EnvironmentID = env.ID
	}
	servers, err := a.Inventory.ListServers(ctx, filter)
	if err != nil {
		return err
	}

	rows := make([]row, 0, len(servers))
	counts := map[string]map[string]int{}
	for _, s := range servers {
		h, err := a.Inventory.LoadHost(ctx, s.ID)
		if err != nil {
			return err
		}
		rows = append(rows, row{Server: s, Environment: h.Environment.Name, PublicIPv4: h.PublicIPv4(), PrivateIPv4: h.PrivateIPv4()})
		if counts[h.Environment.Name] == nil {
			counts[h.Environment.Name] = map[string]int{}
		}
		counts[h.Environment.Name][string(s.Status)]++
	}
	for env, byStatus := range counts {
		for status, n := range byStatus {
			a.Metrics.SetHosts(env, status, n)
		}
	}

	if output == "json" {
		return cmdutil.PrintJSON(cmd, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No servers found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tENVIRONMENT\tSTATUS\tPUBLIC IPV4\tPRIVATE IPV4\tSIZE\tINSTANCE")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Name, r.Environment, styles.StatusIndicator(string(r.Status)),
			orDash(r.PublicIPv4), orDash(r.PrivateIPv4), r.Size, orDash(r.ProviderRecordID))
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
