package auth

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/internal/dns"
	"nathanbeddoewebdev/fleet/internal/providers"
	"nathanbeddoewebdev/fleet/internal/services/auth"
)

func StatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [kind]",
		Short: "Show which backends have API tokens",
		Long: `Show which compute and DNS backends have API tokens, and where
each token comes from.

Examples:
  fleet auth status
  fleet auth status cloudflare`,
		Args:         cobra.MaximumNArgs(1),
		RunE:         runStatus,
		SilenceUsage: true,
	}

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	kinds := append(providers.List(), dns.List()...)
	if len(args) == 1 {
		kinds = []string{auth.NormalizeKind(args[0])}
	}
	if len(kinds) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No backends registered.")
		return nil
	}

	store := auth.WithEnv(storeFactory())
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tSTATUS\tSOURCE")
	for _, kind := range kinds {
		status, source := tokenState(store, kind)
		fmt.Fprintf(w, "%s\t%s\t%s\n", kind, status, source)
	}
	return w.Flush()
}

func tokenState(store auth.Store, kind string) (status, source string) {
	_, err := store.GetToken(kind)
	switch {
	case err == nil && auth.FromEnv(kind):
		return "logged in", "env"
	case err == nil:
		return "logged in", "keychain"
	case errors.Is(err, auth.ErrTokenNotFound):
		return "not logged in", "-"
	default:
		return "error: " + err.Error(), "-"
	}
}
