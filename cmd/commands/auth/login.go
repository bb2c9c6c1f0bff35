package auth

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/spf13/cobra"

	"nathanbeddoewebdev/fleet/internal/services/auth"
)

// storeFactory is replaced in tests.
var storeFactory = auth.DefaultStore

func LoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <kind>",
		Short: "Store an API token for a backend",
		Long: `Store an API token for a compute or DNS backend in the local keychain.

Examples:
  fleet auth login hetzner
  fleet auth login cloudflare --token "$CF_API_TOKEN"`,
		Args:         cobra.ExactArgs(1),
		RunE:         runLogin,
		SilenceUsage: true,
	}

	cmd.Flags().String("token", "", "API token (optional, overrides prompt)")

	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	kind := auth.NormalizeKind(args[0])
	if kind == "" {
		return fmt.Errorf("backend kind is required")
	}

	token, _ := cmd.Flags().GetString("token")
	token = strings.TrimSpace(token)
	if token == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("no terminal to prompt on: pass --token")
		}
		fmt.Fprint(cmd.ErrOrStderr(), "Enter API token: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		token = strings.TrimSpace(string(raw))
	}
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	if err := storeFactory().SetToken(kind, token); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved token for %s\n", kind)
	return nil
}
