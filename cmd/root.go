package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/agent"
	"nathanbeddoewebdev/fleet/cmd/commands/audit"
	"nathanbeddoewebdev/fleet/cmd/commands/auth"
	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	cfgcmd "nathanbeddoewebdev/fleet/cmd/commands/config"
	"nathanbeddoewebdev/fleet/cmd/commands/deploy"
	domaincmd "nathanbeddoewebdev/fleet/cmd/commands/domain"
	"nathanbeddoewebdev/fleet/cmd/commands/environment"
	journalcmd "nathanbeddoewebdev/fleet/cmd/commands/journal"
	"nathanbeddoewebdev/fleet/cmd/commands/provider"
	"nathanbeddoewebdev/fleet/cmd/commands/server"
	"nathanbeddoewebdev/fleet/cmd/commands/service"
	"nathanbeddoewebdev/fleet/cmd/commands/site"
	"nathanbeddoewebdev/fleet/cmd/commands/whitelist"
	"nathanbeddoewebdev/fleet/internal/auditlog"
	"nathanbeddoewebdev/fleet/internal/config"
	"nathanbeddoewebdev/fleet/internal/dns"
	"nathanbeddoewebdev/fleet/internal/providers"
	"nathanbeddoewebdev/fleet/internal/tui"
)

// version is set at build time with -ldflags "-X nathanbeddoewebdev/fleet/cmd.version=...".
var version = "dev"

// logLevelEnv supplies the log level when --log-level is not given.
const logLevelEnv = "FLEET_LOG_LEVEL"

// rootCmd represents the base command when called without any subcommands.
func rootCmd() *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "fleet",
		Short: "Provision, secure and deploy to a fleet of servers",
		Long: `fleet keeps an inventory of servers across environments and drives
them through their lifecycle: provisioning on a cloud account, DNS records,
host firewalls, configuration management enrollment and code deploys.

Quick start:
  fleet auth login hetzner                     # Store your API tokens
  fleet auth login cloudflare
  fleet provider create main --compute hetzner --dns cloudflare
  fleet domain import example.com --provider main
  fleet environment create prod --public-domain example.com --private-domain example.internal
  fleet server create web-01 --environment prod --image ubuntu-24.04 --size cx22
  fleet deploy prod`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupLogging,
	}

	cmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")

	cmd.AddCommand(agent.NewCommand())
	cmd.AddCommand(audit.NewCommand())
	cmd.AddCommand(auth.NewCommand())
	cmd.AddCommand(cfgcmd.NewCommand())
	cmd.AddCommand(deploy.NewCommand())
	cmd.AddCommand(domaincmd.NewCommand())
	cmd.AddCommand(environment.NewCommand())
	cmd.AddCommand(journalcmd.NewCommand())
	cmd.AddCommand(provider.NewCommand())
	cmd.AddCommand(server.NewCommand())
	cmd.AddCommand(service.NewCommand())
	cmd.AddCommand(site.NewCommand())
	cmd.AddCommand(whitelist.NewCommand())

	return cmd
}

func setupLogging(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetString("log-level")
	if env := os.Getenv(logLevelEnv); env != "" && !cmd.Flags().Changed("log-level") {
		raw = env
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil || level == zerolog.NoLevel {
		return fmt.Errorf("invalid --log-level %q (want debug, info, warn or error)", raw)
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
	return nil
}

// registerBackends registers the compute and DNS backends. The policy's
// boot wait is read best-effort; a broken policy file is reported later by
// the command that needs it.
func registerBackends() {
	var bootWait time.Duration
	if cfg, err := config.Load(); err == nil {
		if path, err := config.PolicyPath(cfg); err == nil {
			if p, err := config.LoadPolicy(path); err == nil {
				bootWait = p.Compute.BootWait
			}
		}
	}
	providers.RegisterHetzner(bootWait)
	dns.RegisterCloudflare()
}

// recordAudit writes the audit entry for the command that ran. Failing to
// write it never changes the command's outcome.
func recordAudit(executed *cobra.Command, started time.Time, runErr error) {
	if executed == nil || executed == executed.Root() {
		return
	}
	repo, err := auditlog.Open()
	if err != nil {
		log.Debug().Err(err).Msg("audit log unavailable")
		return
	}
	defer repo.Close()

	inv := auditlog.Invocation{
		Command: executed.CommandPath(),
		Args:    os.Args[1:],
		Started: started,
		Err:     runErr,
		Aborted: errors.Is(runErr, tui.ErrAborted),
	}
	if runErr != nil {
		inv.ExitCode = exitCode(runErr)
	}
	entry := auditlog.Capture(executed.Context(), inv)
	if err := repo.Save(entry); err != nil {
		log.Debug().Err(err).Msg("failed to write audit entry")
	}
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	var exitErr *cmdutil.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	registerBackends()

	root := rootCmd()
	started := time.Now()
	executed, err := root.ExecuteC()
	recordAudit(executed, started, err)
	if err == nil {
		return
	}

	var exitErr *cmdutil.ExitError
	if !errors.As(err, &exitErr) || exitErr.Err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}
