package model

import (
	"fmt"
	"sort"
)

// Registry maps model identifiers to prediction capabilities. Registration
// happens at initialization time only; after that the registry is read-only,
// so concurrent lookups from both ingress channels need no locking.
type Registry struct {
	entries map[string]Capability
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Capability)}
}

// Register adds a capability under the given identifier. It must only be
// called during startup, before the registry is shared across goroutines.
func (r *Registry) Register(id string, capability Capability) error {
	if id == "" {
		return fmt.Errorf("model: identifier is required")
	}
	if capability == nil {
		return fmt.Errorf("model: capability for %q is required", id)
	}
	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("model: %q is already registered", id)
	}
	r.entries[id] = capability
	return nil
}

// Lookup resolves an identifier to its capability.
func (r *Registry) Lookup(id string) (Capability, bool) {
	capability, ok := r.entries[id]
	return capability, ok
}

// IDs returns the registered model identifiers in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
