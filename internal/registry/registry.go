// Package registry maps configured names to constructors.
package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Factory creates an instance of T from options C.
type Factory[T, C any] func(ctx context.Context, opts C) (T, error)

// Registry holds named factories for creating instances of T.
type Registry[T, C any] struct {
	mu        sync.RWMutex
	factories map[string]Factory[T, C]
	unknown   error
}

// New creates an empty registry. Create wraps unknown when a name is not
// registered.
func New[T, C any](unknown error) *Registry[T, C] {
	return &Registry[T, C]{
		factories: make(map[string]Factory[T, C]),
		unknown:   unknown,
	}
}

// Register adds a named factory, replacing any previous one.
func (r *Registry[T, C]) Register(name string, factory Factory[T, C]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create instantiates T using the named factory.
func (r *Registry[T, C]) Create(ctx context.Context, name string, opts C) (T, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		var zero T
		if r.unknown != nil {
			return zero, fmt.Errorf("%w: %q", r.unknown, name)
		}
		return zero, fmt.Errorf("unknown name %q", name)
	}
	return factory(ctx, opts)
}

// Has reports whether the named factory exists.
func (r *Registry[T, C]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// List returns all registered names, sorted.
func (r *Registry[T, C]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
