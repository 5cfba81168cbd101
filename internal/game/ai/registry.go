package ai

import (
	"fmt"
	"sort"
)

// Registry indexes Domains by ID. Planners are bound to one battle's scripts
// and dice, so the registry hands out domains and callers build planners.
//
// Invariant: each domain ID is registered at most once.
type Registry struct {
	domains map[string]*Domain
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{domains: make(map[string]*Domain)}
}

// Register stores domain.
//
// Precondition: domain must not be nil.
// Postcondition: returns error on domain ID collision.
func (r *Registry) Register(domain *Domain) error {
	if _, exists := r.domains[domain.ID]; exists {
		return fmt.Errorf("ai.Registry: domain %q already registered", domain.ID)
	}
	r.domains[domain.ID] = domain
	return nil
}

// Domain returns the domain registered as id, or false if not registered.
func (r *Registry) Domain(id string) (*Domain, bool) {
	d, ok := r.domains[id]
	return d, ok
}

// IDs returns every registered domain id in lexical order.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.domains))
	for id := range r.domains {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LoadRegistry loads every domain in dir into a new Registry.
//
// Postcondition: a missing dir yields an empty registry.
func LoadRegistry(dir string) (*Registry, error) {
	domains, err := LoadDomains(dir)
	if err != nil {
		return nil, err
	}
	reg := NewRegistry()
	for _, d := range domains {
		if err := reg.Register(d); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
