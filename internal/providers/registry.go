// Package providers holds the compute backends of the cloud control plane
// and a registry to look them up by kind.
package providers

import (
	"nathanbeddoewebdev/fleet/internal/registry"
	"nathanbeddoewebdev/fleet/internal/services/auth"
)

type Factory = registry.Factory[Compute]

var backends = registry.New[Compute]("providers")

// Register adds a compute backend. It panics on duplicates.
func Register(kind string, factory Factory) { backends.Register(kind, factory) }

func Get(kind string, store auth.Store) (Compute, error) { return backends.Get(kind, store) }

// List returns the registered kinds in sorted order.
func List() []string { return backends.Kinds() }

// Reset clears the registry. Tests only.
func Reset() { backends.Reset() }
