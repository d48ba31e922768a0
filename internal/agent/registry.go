package agent

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps agent roles to the capability that serves them.
// Built once at startup and injected; safe for concurrent lookups.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]Capability
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		caps: make(map[string]Capability),
	}
}

// Register adds or replaces the capability for role.
func (r *Registry) Register(role string, c Capability) error {
	if role == "" {
		return fmt.Errorf("agent role must not be empty")
	}
	if c == nil {
		return fmt.Errorf("nil capability for role %q", role)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[role] = c
	return nil
}

// Get returns the capability for role, or false if none is registered.
func (r *Registry) Get(role string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[role]
	return c, ok
}

// Roles lists registered roles in sorted order.
func (r *Registry) Roles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles := make([]string, 0, len(r.caps))
	for role := range r.caps {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}
