package auth

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/internal/services/auth"
)

func LogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout <kind>",
		Short: "Remove a stored API token",
		Long: `Remove the API token stored for a backend from the local keychain.

A token supplied through FLEET_TOKEN_<KIND> is not affected.

Examples:
  fleet auth logout cloudflare`,
		Args:         cobra.ExactArgs(1),
		RunE:         runLogout,
		SilenceUsage: true,
	}
}

func runLogout(cmd *cobra.Command, args []string) error {
	kind := auth.NormalizeKind(args[0])
	err := storeFactory().DeleteToken(kind)
	switch {
	case errors.Is(err, auth.ErrTokenNotFound):
		fmt.Fprintf(cmd.OutOrStdout(), "No stored token for %s\n", kind)
		return nil
	case err != nil:
		return fmt.Errorf("removing token for %s: %w", kind, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed token for %s\n", kind)
	if auth.FromEnv(kind) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Note: %s is still set in the environment\n", auth.EnvVar(kind))
	}
	return nil
}
