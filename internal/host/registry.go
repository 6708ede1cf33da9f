// Package host wires the simulated host runtime: a named-service registry and
// the two scheduling backends the dispatch layer may find in it.
package host

import "sync"

// Registry is the host-side service table behind the capability-query
// primitive. Hosts populate it during boot; afterwards it is effectively
// read-only.
type Registry struct {
	mu       sync.RWMutex
	services map[string]any
}

func NewRegistry() *Registry {
	return &Registry{services: map[string]any{}}
}

// Register installs (or replaces) a named service.
func (r *Registry) Register(name string, svc any) {
	if name == "" || svc == nil {
		return
	}
	r.mu.Lock()
	r.services[name] = svc
	r.mu.Unlock()
}

// Lookup implements sched.Locator. Absence is a normal answer.
func (r *Registry) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.services[name]
	return v, ok
}
