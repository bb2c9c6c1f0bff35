// Package auth resolves API tokens for the compute and DNS backends. Tokens
// are keyed by backend kind ("hetzner", "cloudflare"), so every Provider
// using the same kind shares one credential.
package auth

import (
	"errors"
	"os"
	"strings"

	"nathanbeddoewebdev/fleet/internal/naming"
)

// ServiceName is the keychain service fleet stores tokens under.
const ServiceName = "fleet"

var ErrTokenNotFound = errors.New("auth token not found")

type Store interface {
	SetToken(kind string, token string) error
	GetToken(kind string) (string, error)
	DeleteToken(kind string) error
}

// DefaultStore reads tokens from the environment first, then the OS
// keychain. Writes always go to the keychain.
func DefaultStore() Store {
	return WithEnv(NewKeyringStore(ServiceName))
}

// NormalizeKind normalizes a backend kind for consistent key lookup.
func NormalizeKind(kind string) string {
	return naming.Key(kind)
}

// EnvVar names the environment variable that overrides kind's stored
// token, e.g. FLEET_TOKEN_HETZNER.
func EnvVar(kind string) string {
	return "FLEET_TOKEN_" + strings.ToUpper(strings.ReplaceAll(NormalizeKind(kind), "-", "_"))
}

// FromEnv reports whether kind's token is currently set in the environment.
func FromEnv(kind string) bool {
	return os.Getenv(EnvVar(kind)) != ""
}

type envStore struct {
	Store
}

// WithEnv layers environment overrides over s for reads.
func WithEnv(s Store) Store {
	return envStore{Store: s}
}

func (e envStore) GetToken(kind string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvVar(kind))); v != "" {
		return v, nil
	}
	return e.Store.GetToken(kind)
}
