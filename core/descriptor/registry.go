package descriptor

import (
	"fmt"
	"sort"
)

// Registry holds the loaded model descriptors by name. It is populated at
// startup, before any route binding happens, and read-only afterwards.
type Registry struct {
	models map[string]*Descriptor
}

// NewRegistry creates an empty model registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Descriptor)}
}

// Register adds a descriptor to the registry. Registering two models with
// the same name is a configuration error.
func (r *Registry) Register(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if _, ok := r.models[d.Name]; ok {
		return fmt.Errorf("model %s registered twice", d.Name)
	}
	r.models[d.Name] = d
	return nil
}

// Lookup returns the descriptor with the given name.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	d, ok := r.models[name]
	return d, ok
}

// Names returns all registered model names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handles returns the registry as a generic name-to-handle mapping, the shape
// the placeholder resolver consumes.
func (r *Registry) Handles() map[string]any {
	handles := make(map[string]any, len(r.models))
	for name, d := range r.models {
		handles[name] = d
	}
	return handles
}
