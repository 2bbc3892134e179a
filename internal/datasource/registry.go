package datasource

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps chamber codes to sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds s under its chamber code, replacing any previous entry.
func (r *Registry) Register(s Source) error {
	chamber := s.Chamber()
	if chamber == "" {
		return fmt.Errorf("source %q has no chamber code", s.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[chamber] = s
	return nil
}

// Get returns the source registered for chamber.
func (r *Registry) Get(chamber string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sources[chamber]
	if !ok {
		return nil, fmt.Errorf("%w: chamber %q", ErrSourceNotFound, chamber)
	}
	return s, nil
}

// List returns the registered chamber codes, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.sources))
	for c := range r.sources {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
