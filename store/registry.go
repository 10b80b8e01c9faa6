package store

import (
	"github.com/jacentio/docstore/schema"
)

// Registry holds the validated schema of every entity known to a process,
// keyed by container. Register during startup; lookups are read-only after.
type Registry struct {
	schemas     []*schema.Type
	byContainer map[string]*schema.Type
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		schemas:     []*schema.Type{},
		byContainer: make(map[string]*schema.Type),
	}
}

// Register validates s and adds it. Each container may be registered once.
func (r *Registry) Register(s *schema.Type) error {
	if err := schema.Validate(s); err != nil {
		return err
	}
	container := s.Container()
	if prev, ok := r.byContainer[container]; ok {
		return &ConfigurationError{
			Key:    "entity." + container,
			Reason: "already registered by " + prev.Name,
		}
	}
	r.schemas = append(r.schemas, s)
	r.byContainer[container] = s
	return nil
}

// Lookup returns the schema stored in container, or nil.
func (r *Registry) Lookup(container string) *schema.Type {
	return r.byContainer[container]
}

// Containers returns the registered container names in registration order.
func (r *Registry) Containers() []string {
	names := make([]string, len(r.schemas))
	for i, s := range r.schemas {
		names[i] = s.Container()
	}
	return names
}

// Schemas returns all registered schemas in registration order.
func (r *Registry) Schemas() []*schema.Type {
	return r.schemas
}

// Len returns the number of registered schemas.
func (r *Registry) Len() int {
	return len(r.schemas)
}
