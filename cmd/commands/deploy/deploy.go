package deploy

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/app"
	"nathanbeddoewebdev/fleet/internal/auditlog"
	"nathanbeddoewebdev/fleet/internal/deploy"
	"nathanbeddoewebdev/fleet/internal/tui"
	"nathanbeddoewebdev/fleet/internal/tui/styles"
)

// NewCommand returns the "deploy" command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy <environment>",
		Short: "Deploy the source tree to an environment",
		Long: `Deploy the local source tree to every server in an environment.

The checkout must be clean and on the environment's branch; it is
fast-forwarded to the remote branch first. Hosts are then driven through
barrier-separated phases:

  stop-workers, sync-app, restart-app, sync-workers, sync-other,
  start-workers, restart-other

A failing phase stops the deploy before the next one begins.

Examples:
  fleet deploy staging
  fleet deploy prod --yes -o json`,
		Args:         cobra.ExactArgs(1),
		RunE:         runDeploy,
		SilenceUsage: true,
	}

	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	cmdutil.AddOutputFlag(cmd)

	return cmd
}

func runDeploy(cmd *cobra.Command, args []string) (err error) {
	envName := args[0]
	yes, _ := cmd.Flags().GetBool("yes")
	output, err := cmdutil.Output(cmd)
	if err != nil {
		return err
	}
	cmdutil.Annotate(cmd, auditlog.Metadata{Environment: envName, ResourceType: "environment", ResourceName: envName})

	a, err := app.Open()
	if err != nil {
		return err
	}
	defer a.Close()
	start := time.Now()
	defer func() { cmdutil.Observe(a, "deploy", start, err) }()

	env, err := a.Inventory.GetEnvironmentByName(cmd.Context(), envName)
	if err != nil {
		return err
	}
	err = tui.Confirm(
		fmt.Sprintf("Deploy %s to %s?", env.Branch, env.Name),
		"Workers are stopped and app services restarted across the environment.",
		yes,
	)
	if errors.Is(err, tui.ErrAborted) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Deploy cancelled.")
		return &cmdutil.ExitError{Code: 1, Err: err}
	}
	if err != nil {
		return err
	}

	pipeline, err := a.Pipeline()
	if err != nil {
		return err
	}

	var report *deploy.Report
	err = tui.Spin(cmd.ErrOrStderr(), fmt.Sprintf("Deploying %s...", env.Name), func() error {
		var derr error
		report, derr = pipeline.Deploy(cmd.Context(), env.Name)
		return derr
	})
	if report != nil {
		cmdutil.Annotate(cmd, auditlog.Metadata{Environment: env.Name, RunID: report.RunID,
			ResourceType: "environment", ResourceName: env.Name})
		if perr := printReport(cmd, output, report); perr != nil {
			return errors.Join(err, perr)
		}
	}
	return err
}

func printReport(cmd *cobra.Command, output string, r *deploy.Report) error {
	if output == "json" {
		return cmdutil.PrintJSON(cmd, r)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deploy %s of %s (run %s)\n\n", r.Environment, r.Branch, r.RunID)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PHASE\tHOSTS\tRESULT")
	for _, p := range r.Phases {
		result := styles.StatusIndicator("success")
		if p.Error != "" {
			result = styles.StatusIndicator("error") + " " + p.Error
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", p.Phase, p.Hosts, result)
	}
	return w.Flush()
}
