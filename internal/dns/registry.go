package dns

import (
	"nathanbeddoewebdev/fleet/internal/registry"
	"nathanbeddoewebdev/fleet/internal/services/auth"
)

// Factory builds a Zones backend given an auth store.
type Factory = registry.Factory[Zones]

var backends = registry.New[Zones]("dns")

// Register adds a DNS backend. It panics on duplicates.
func Register(kind string, factory Factory) { backends.Register(kind, factory) }

// Get constructs the backend for kind using store for credentials.
func Get(kind string, store auth.Store) (Zones, error) { return backends.Get(kind, store) }

func List() []string { return backends.Kinds() }

// Reset clears the registry. Tests only.
func Reset() { backends.Reset() }
