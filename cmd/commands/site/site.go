package site

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/app"
	"nathanbeddoewebdev/fleet/internal/auditlog"
	"nathanbeddoewebdev/fleet/internal/tui"
)

// NewCommand returns the "site" parent command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site",
		Short: "Toggle an environment's maintenance page",
		Long: `Swap the proxy's enabled virtual hosts between the live sites and the
maintenance page on every proxy host of an environment, then restart the
proxy.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(toggleCommand(true))
	cmd.AddCommand(toggleCommand(false))

	return cmd
}

func toggleCommand(down bool) *cobra.Command {
	use, short := "up", "Bring the live sites back"
	if down {
		use, short = "down", "Put the environment into maintenance"
	}
	cmd := &cobra.Command{
		Use:   use + " <environment>",
		Short: short,
		Long: short + `.

Examples:
  fleet site ` + use + ` prod
  fleet site ` + use + ` prod --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToggle(cmd, args[0], down)
		},
		SilenceUsage: true,
	}
	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func runToggle(cmd *cobra.Command, envName string, down bool) (err error) {
	yes, _ := cmd.Flags().GetBool("yes")
	state := "up"
	if down {
		state = "down"
	}
	cmdutil.Annotate(cmd, auditlog.Metadata{Environment: envName, ResourceType: "site", ResourceName: envName})

	a, err := app.Open()
	if err != nil {
		return err
	}
	defer a.Close()
	start := time.Now()
	defer func() { cmdutil.Observe(a, "site-"+state, start, err) }()

	if down {
		err = tui.Confirm(fmt.Sprintf("Take %s down for maintenance?", envName),
			"Visitors will see the maintenance page until 'fleet site up'.", yes)
		if errors.Is(err, tui.ErrAborted) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Site toggle cancelled.")
			return &cmdutil.ExitError{Code: 1, Err: err}
		}
		if err != nil {
			return err
		}
	}

	site, err := a.Site()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	err = tui.Spin(cmd.ErrOrStderr(), fmt.Sprintf("Switching %s %s...", envName, state), func() error {
		if down {
			return site.Down(ctx, envName)
		}
		return site.Up(ctx, envName)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Site %s is %s.\n", envName, state)
	return nil
}
