package environment

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/cmd/commands/cmdutil"
	"nathanbeddoewebdev/fleet/internal/app"
	"nathanbeddoewebdev/fleet/internal/auditlog"
	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/naming"
)

func CreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an environment",
		Long: `Create an environment over two imported domains. The deploy branch
defaults to the environment name.

Examples:
  fleet environment create prod --public-domain example.com --private-domain example.internal
  fleet environment create staging --public-domain example.net --private-domain staging.internal --branch develop`,
		Args:         cobra.ExactArgs(1),
		RunE:         runCreate,
		SilenceUsage: true,
	}

	cmd.Flags().String("public-domain", "", "Imported domain for public records (required)")
	cmd.Flags().String("private-domain", "", "Imported domain for private records (required)")
	cmd.Flags().String("branch", "", "Source branch deployed to this environment")
	_ = cmd.MarkFlagRequired("public-domain")
	_ = cmd.MarkFlagRequired("private-domain")

	return cmd
}

func runCreate(cmd *cobra.Command, args []string) (err error) {
	name := args[0]
	if err := naming.Environment(name); err != nil {
		return err
	}
	pubName, _ := cmd.Flags().GetString("public-domain")
	privName, _ := cmd.Flags().GetString("private-domain")
	branch, _ := cmd.Flags().GetString("branch")
	cmdutil.Annotate(cmd, auditlog.Metadata{Environment: name, ResourceType: "environment", ResourceName: name})

	a, err := app.Open()
	if err != nil {
		return err
	}
	defer a.Close()
	start := time.Now()
	defer func() { cmdutil.Observe(a, "environment-create", start, err) }()

	ctx := cmd.Context()
	pub, err := a.Inventory.GetDomainByName(ctx, naming.Key(pubName))
	if err != nil {
		return err
	}
	priv, err := a.Inventory.GetDomainByName(ctx, naming.Key(privName))
	if err != nil {
		return err
	}
	if pub.ID == priv.ID {
		return &domain.ConstraintError{Reason: "public and private domains must differ"}
	}

	env := &domain.Environment{Name: name, Branch: branch, PublicDomainID: pub.ID, PrivateDomainID: priv.ID}
	if err := a.Inventory.CreateEnvironment(ctx, env); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Environment %q created (public: %s, private: %s, branch: %s).\n",
		env.Name, pub.Name, priv.Name, env.Branch)
	return nil
}
