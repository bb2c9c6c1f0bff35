// Package registry maps backend kinds ("hetzner", "cloudflare") to the
// factories that build them from stored credentials.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"nathanbeddoewebdev/fleet/internal/naming"
	"nathanbeddoewebdev/fleet/internal/services/auth"
)

// ErrUnknownKind is returned by Get for a kind nobody registered.
var ErrUnknownKind = errors.New("unknown backend kind")

// Factory builds a T using store for credentials.
type Factory[T any] func(store auth.Store) (T, error)

// Registry is safe for concurrent use. The zero value is not usable; call New.
type Registry[T any] struct {
	name      string
	mu        sync.RWMutex
	factories map[string]Factory[T]
}

// New returns an empty registry whose errors and panics are prefixed with name.
func New[T any](name string) *Registry[T] {
	return &Registry[T]{name: name, factories: map[string]Factory[T]{}}
}

// Register adds factory under kind. It panics on an empty kind, a nil
// factory or a duplicate, since registration happens at startup.
func (r *Registry[T]) Register(kind string, factory Factory[T]) {
	key := naming.Key(kind)
	if key == "" {
		panic(r.name + ": empty provider kind")
	}
	if factory == nil {
		panic(r.name + ": nil factory")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[key]; exists {
		panic(fmt.Sprintf("%s: provider %q already registered", r.name, kind))
	}
	r.factories[key] = factory
}

// Get builds the backend for kind.
func (r *Registry[T]) Get(kind string, store auth.Store) (T, error) {
	r.mu.RLock()
	factory, ok := r.factories[naming.Key(kind)]
	r.mu.RUnlock()

	if !ok {
		var zero T
		return zero, fmt.Errorf("%s: %w %q", r.name, ErrUnknownKind, kind)
	}
	return factory(store)
}

// Has reports whether kind is registered.
func (r *Registry[T]) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[naming.Key(kind)]
	return ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry[T]) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Reset drops every registration. Tests only.
func (r *Registry[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = map[string]Factory[T]{}
}
