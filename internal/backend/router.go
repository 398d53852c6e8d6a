// Package backend holds the plumbing shared by the remote collaborators:
// named backend routing and pooled HTTP clients.
package backend

import (
	"fmt"
	"slices"
)

// Router maps engine names to backend implementations with a configurable
// fallback used when the requested engine is not registered.
type Router[T any] struct {
	backends map[string]T
	fallback string
}

// NewRouter creates a router with the given backends and fallback engine name.
func NewRouter[T any](backends map[string]T, fallback string) *Router[T] {
	return &Router[T]{backends: backends, fallback: fallback}
}

// Route returns the backend for engine, falling back to the default, along
// with the name of the engine that was actually chosen.
func (r *Router[T]) Route(engine string) (string, T, error) {
	if b, ok := r.backends[engine]; ok {
		return engine, b, nil
	}
	if b, ok := r.backends[r.fallback]; ok {
		return r.fallback, b, nil
	}
	var zero T
	return "", zero, fmt.Errorf("no backend for engine %q", engine)
}

// Has reports whether a backend is registered for engine.
func (r *Router[T]) Has(engine string) bool {
	_, ok := r.backends[engine]
	return ok
}

// Engines returns the registered engine names, sorted.
func (r *Router[T]) Engines() []string {
	names := make([]string, 0, len(r.backends))
	for k := range r.backends {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}
