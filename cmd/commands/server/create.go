package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/app"
	"nathanbeddoewebdev/fleet/internal/auditlog"
	"nathanbeddoewebdev/fleet/internal/naming"
	"nathanbeddoewebdev/fleet/internal/provision"
)

func CreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Provision a new server",
		Long: `Provision a new server in an environment.

Steps run in order and stop at the first failure. Nothing is rolled back:
the report printed on failure lists what was created so it can be cleaned
up or retried.

Examples:
  fleet server create web-01 --environment prod --image ubuntu-24.04 --size cx22

  fleet server create db-01 --environment prod \
    --image ubuntu-24.04 --size cx32 --location fsn1 \
    --ssh-key deploy --network 42 \
    --storage ssd:100 --service db

  fleet server create web-02 --environment prod --image ubuntu-24.04 --size cx22 -o json`,
		Args:         cobra.ExactArgs(1),
		RunE:         runCreate,
		SilenceUsage: true,
	}

	cmd.Flags().String("environment", "", "Environment the server belongs to (required)")
	cmd.Flags().String("provider", "", "Provider to create the server on (default: the default-provider key)")
	cmd.Flags().String("image", "", "Image name (required)")
	cmd.Flags().String("size", "", "Server size, e.g. cx22 (required)")
	cmd.Flags().String("location", "", "Location, e.g. fsn1")
	cmd.Flags().StringArray("ssh-key", nil, "SSH key name or ID (can be specified multiple times)")
	cmd.Flags().StringArray("network", nil, "Private network ID (can be specified multiple times)")
	cmd.Flags().String("storage", "", "Block volume as kind:size-in-GB, e.g. ssd:100")
	cmd.Flags().StringArray("service", nil, "Service to attach (can be specified multiple times)")
	cmdutil.AddOutputFlag(cmd)
	_ = cmd.MarkFlagRequired("environment")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("size")

	return cmd
}

// ParseStorage parses "kind:size". An empty string means no storage.
func ParseStorage(s string) (*provision.StorageSpec, error) {
	if s == "" {
		return nil, nil
	}
	kind, size, ok := strings.Cut(s, ":")
	if !ok || kind == "" {
		return nil, fmt.Errorf("invalid --storage %q: want kind:size", s)
	}
	gb, err := strconv.Atoi(size)
	if err != nil || gb <= 0 {
		return nil, fmt.Errorf("invalid --storage size %q: want a positive number of GB", size)
	}
	return &provision.StorageSpec{Kind: kind, SizeGB: gb}, nil
}

func runCreate(cmd *cobra.Command, args []string) (err error) {
	name := args[0]
	if err := naming.Server(name); err != nil {
		return err
	}
	envName, _ := cmd.Flags().GetString("environment")
	providerName, _ := cmd.Flags().GetString("provider")
	image, _ := cmd.Flags().GetString("image")
	size, _ := cmd.Flags().GetString("size")
	location, _ := cmd.Flags().GetString("location")
	sshKeys, _ := cmd.Flags().GetStringArray("ssh-key")
	networks, _ := cmd.Flags().GetStringArray("network")
	rawStorage, _ := cmd.Flags().GetString("storage")
	services, _ := cmd.Flags().GetStringArray("service")
	storage, err := ParseStorage(rawStorage)
	if err != nil {
		return err
	}
	output, err := cmdutil.Output(cmd)
	if err != nil {
		return err
	}

	a, err := app.Open()
	if err != nil {
		return err
	}
	defer a.Close()
	start := time.Now()
	defer func() { cmdutil.Observe(a, "provision", start, err) }()

	orch, err := a.Orchestrator(cmd.Context(), providerName)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Provisioning %q in %s...\n", name, envName)
	report, err := orch.Create(cmd.Context(), provision.Request{
		Name:        name,
		Environment: envName,
		Image:       image,
		Size:        size,
		Location:    location,
		SSHKeys:     sshKeys,
		Networks:    networks,
		Storage:     storage,
		Services:    services,
	})
	if report != nil {
		cmdutil.Annotate(cmd, auditlog.Metadata{
			Environment:  envName,
			RunID:        report.RunID,
			ResourceType: "server",
			ResourceID:   report.InstanceID,
			ResourceName: name,
		})
		if perr := printReport(cmd, output, report); perr != nil {
			return errors.Join(err, perr)
		}
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Server %q is active.\n", name)
	return nil
}

func printReport(cmd *cobra.Command, output string, r *provision.Report) error {
	if output == "json" {
		return cmdutil.PrintJSON(cmd, r)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  Run:\t%s\n", r.RunID)
	fmt.Fprintf(w, "  Last step:\t%s\n", r.Step)
	if r.ServerID != 0 {
		fmt.Fprintf(w, "  Server ID:\t%d\n", r.ServerID)
	}
	if r.InstanceID != "" {
		fmt.Fprintf(w, "  Instance ID:\t%s\n", r.InstanceID)
	}
	for _, addr := range r.Addresses {
		fmt.Fprintf(w, "  Address:\t%s (%s %s)\n", addr.IP, addr.Visibility, addr.Family)
	}
	if r.Volume != nil {
		fmt.Fprintf(w, "  Volume:\t%s (%d GB, %s)\n", r.Volume.ID, r.Volume.SizeGB, r.Volume.LinuxDevice)
	}
	if r.RootPassword != "" {
		fmt.Fprintf(w, "  Root password:\t%s\n", r.RootPassword)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if r.RootPassword != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "\nSave the root password now. It will not be shown again.")
	}
	return nil
}
