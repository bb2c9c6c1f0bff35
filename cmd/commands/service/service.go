package service

import (
	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/internal/servicectl"
)

// NewCommand returns the "service" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Define services and control them across the fleet",
		Long: `Services are the processes fleet hosts run, controlled through either a
supervisor ("supervised") or an init script ("init-script").

'fleet service status' exits with the worst status seen:
0 running, 1 down, 2 unknown.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(CreateCommand())
	cmd.AddCommand(ListCommand())
	cmd.AddCommand(ControlCommand(servicectl.Probe, "Probe a service on every host that runs it"))
	cmd.AddCommand(ControlCommand(servicectl.Start, "Start a service on every host that runs it"))
	cmd.AddCommand(ControlCommand(servicectl.Stop, "Stop a service on every host that runs it"))
	cmd.AddCommand(ControlCommand(servicectl.Restart, "Restart a service on every host that runs it"))
	cmd.AddCommand(ControlCommand(servicectl.Reload, "Reload a service, or restart it if it cannot reload"))

	return cmd
}
