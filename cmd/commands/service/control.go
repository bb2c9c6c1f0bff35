package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/app"
	"nathanbeddoewebdev/fleet/internal/auditlog"
	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/fanout"
	"nathanbeddoewebdev/fleet/internal/servicectl"
	"nathanbeddoewebdev/fleet/internal/tui/styles"
)

// result is one host's outcome.
type result struct {
	Server  string            `json:"server"`
	Address string            `json:"address"`
	Status  servicectl.Status `json:"status"`
	State   string            `json:"state"`
	Error   string            `json:"error,omitempty"`
}

// ControlCommand builds the subcommand for one action. Probe is exposed
// as "status".
func ControlCommand(action servicectl.Action, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(action) + " <service> [server]",
		Short: short,
		Long: short + `.

Without a server name every host in the environment that carries the
service is targeted.

Examples:
  fleet service ` + string(action) + ` web --environment prod
  fleet service ` + string(action) + ` web web-01 --environment prod`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runControl(cmd, args, action)
		},
		SilenceUsage: true,
	}

	cmd.Flags().String("environment", "", "Environment to act on (required)")
	_ = cmd.MarkFlagRequired("environment")
	cmdutil.AddOutputFlag(cmd)

	return cmd
}

// expected is the status an action should leave behind.
func expected(action servicectl.Action) (servicectl.Status, bool) {
	switch action {
	case servicectl.Start, servicectl.Restart, servicectl.Reload:
		return servicectl.Running, true
	case servicectl.Stop:
		return servicectl.Down, true
	}
	return 0, false
}

func runControl(cmd *cobra.Command, args []string, action servicectl.Action) (err error) {
	serviceName := args[0]
	var serverName string
	if len(args) == 2 {
		serverName = args[1]
	}
	envName, _ := cmd.Flags().GetString("environment")
	output, err := cmdutil.Output(cmd)
	if err != nil {
		return err
	}
	cmdutil.Annotate(cmd, auditlog.Metadata{Environment: envName, ResourceType: "service", ResourceName: serviceName})

	a, err := app.Open()
	if err != nil {
		return err
	}
	defer a.Close()
	start := time.Now()
	defer func() { cmdutil.Observe(a, "service-"+string(action), start, err) }()

	ctx := cmd.Context()
	svc, err := a.Inventory.GetServiceByName(ctx, serviceName)
	if err != nil {
		return err
	}
	if action == servicectl.Reload && !svc.DoesReload {
		action = servicectl.Restart
	}
	hosts, err := targets(ctx, a, envName, serverName, svc)
	if err != nil {
		return err
	}
	ctl, err := a.Services()
	if err != nil {
		return err
	}

	results := control(ctx, ctl, hosts, *svc, action, a.Policy.Deploy.Concurrency)
	if output == "json" {
		if err := cmdutil.PrintJSON(cmd, results); err != nil {
			return err
		}
	} else if err := printResults(cmd, results); err != nil {
		return err
	}

	worst := servicectl.Running
	for _, r := range results {
		worst = servicectl.Worst(worst, r.Status)
	}
	if want, ok := expected(action); ok {
		var mismatch error
		for _, r := range results {
			if r.Status == want {
				continue
			}
			err := fmt.Errorf("%s %s: %s is %s, want %s", action, svc.Name, r.Server, r.State, want)
			if r.Status == servicectl.Unknown {
				return &cmdutil.ExitError{Code: int(servicectl.Unknown), Err: err}
			}
			if mismatch == nil {
				mismatch = &cmdutil.ExitError{Code: int(servicectl.Down), Err: err}
			}
		}
		return mismatch
	}
	if worst != servicectl.Running {
		return &cmdutil.ExitError{Code: int(worst)}
	}
	return nil
}

// targets returns the environment's hosts that carry svc, narrowed to one
// server when serverName is set.
func targets(ctx context.Context, a *app.App, envName, serverName string, svc *domain.Service) ([]domain.Host, error) {
	env, err := a.Inventory.GetEnvironmentByName(ctx, envName)
	if err != nil {
		return nil, err
	}
	fleet, err := a.Inventory.LoadFleet(ctx)
	if err != nil {
		return nil, err
	}

	var out []domain.Host
	for _, h := range fleet {
		if h.Environment.ID != env.ID || (serverName != "" && h.Server.Name != serverName) {
			continue
		}
		for _, s := range h.Services {
			if s.ID == svc.ID {
				out = append(out, h)
				break
			}
		}
	}
	if len(out) == 0 {
		where := "environment " + env.Name
		if serverName != "" {
			where = "server " + serverName + " in " + where
		}
		return nil, &domain.ConstraintError{Reason: fmt.Sprintf("no host in %s runs service %q", where, svc.Name)}
	}
	return out, nil
}

func control(ctx context.Context, ctl *servicectl.Controller, hosts []domain.Host, svc domain.Service, action servicectl.Action, limit int) []result {
	var mu sync.Mutex
	results := make([]result, 0, len(hosts))

	tasks := make([]fanout.Task, 0, len(hosts))
	for _, h := range hosts {
		addr := h.ConnectAddress()
		tasks = append(tasks, fanout.Task{
			Name: h.Server.Name,
			Func: func(ctx context.Context) error {
				status, err := ctl.Do(ctx, addr, svc, action)
				r := result{Server: h.Server.Name, Address: addr, Status: status, State: status.String()}
				if err != nil {
					r.Status, r.State, r.Error = servicectl.Unknown, servicectl.Unknown.String(), err.Error()
				}
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
				return nil
			},
		})
	}
	_ = fanout.Run(ctx, "service "+string(action), limit, tasks)

	sort.Slice(results, func(i, j int) bool { return results[i].Server < results[j].Server })
	return results
}

func printResults(cmd *cobra.Command, results []result) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVER\tADDRESS\tSTATUS\tERROR")
	for _, r := range results {
		errText := r.Error
		if errText == "" {
			errText = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Server, r.Address, styles.StatusIndicator(r.State), errText)
	}
	return w.Flush()
}
