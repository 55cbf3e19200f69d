// internal/channel/registry.go
package channel

import "fmt"

// Registry maps channel tags to adapters. Registration is static: the
// process wiring registers every adapter at startup, and nothing is
// discovered at runtime.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(tag string, a Adapter) {
	r.adapters[tag] = a
}

func (r *Registry) Get(tag string) (Adapter, error) {
	a, ok := r.adapters[tag]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for channel %q", tag)
	}
	return a, nil
}
