package auth

import (
	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage API tokens for cloud backends",
		Long: `Manage API tokens for the compute and DNS backends.

Tokens are stored in the system keychain under the backend kind
(e.g. hetzner, cloudflare). Setting FLEET_TOKEN_<KIND> in the
environment overrides the stored token for that backend.`,
	}

	cmd.AddCommand(LoginCommand())
	cmd.AddCommand(LogoutCommand())
	cmd.AddCommand(StatusCommand())

	return cmd
}
