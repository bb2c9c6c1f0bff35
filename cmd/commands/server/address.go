package server

import (
	"fmt"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/internal/app"
	"nathanbeddoewebdev/fleet/internal/domain"
)

func AddressCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address <name>",
		Short: "Print a server's private IPv4 address",
		Long: `Print a server's private IPv4 address, for use in scripts.

Examples:
  ssh root@$(fleet server address web-01 --environment prod)`,
		Args:         cobra.ExactArgs(1),
		RunE:         runAddress,
		SilenceUsage: true,
	}

	cmd.Flags().String("environment", "", "Environment of the server (required)")
	_ = cmd.MarkFlagRequired("environment")

	return cmd
}

func runAddress(cmd *cobra.Command, args []string) error {
	envName, _ := cmd.Flags().GetString("environment")

	a, err := app.Open()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	env, err := a.Inventory.GetEnvironmentByName(ctx, envName)
	if err != nil {
		return err
	}
	srv, err := a.Inventory.GetServerByName(ctx, env.ID, args[0])
	if err != nil {
		return err
	}
	h, err := a.Inventory.LoadHost(ctx, srv.ID)
	if err != nil {
		return err
	}
	ip := h.PrivateIPv4()
	if ip == "" {
		return fmt.Errorf("server %q has no private IPv4 address: %w", srv.Name, domain.ErrNotFound)
	}
	fmt.Fprintln(cmd.OutOrStdout(), ip)
	return nil
}
