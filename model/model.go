// Package model assembles models for serving: it resolves an architecture
// from the model configuration, validates the configured sparsity or
// quantization method against the running device, and builds each linear
// layer with an empty weight parameter for the loader to populate.
package model

import (
	"slices"

	"github.com/pdevine/tensor"

	"golang.org/x/exp/maps"

	"github.com/jmorganca/sparserve/ml/sparse"
)

// Model implements a specific model architecture, defining the forward pass
// over its assembled layers.
type Model interface {
	Forward(x *tensor.Dense) (*tensor.Dense, error)

	// Parameters enumerates the model's weight parameters by name for the
	// weight loader.
	Parameters() map[string]*sparse.Parameter
}

// Architecture ties a config.json architecture name to its constructor.
type Architecture struct {
	// New builds the model with empty weight parameters.
	New func(c *Config, opts Options) (Model, error)

	// SupportsLoRA reports whether the architecture accepts LoRA adapters.
	SupportsLoRA bool
}

// Registry maps architecture names to implementations. It is constructed at
// startup and passed to New; there is no process-wide registration.
type Registry struct {
	archs map[string]Architecture
}

func NewRegistry() *Registry {
	return &Registry{archs: make(map[string]Architecture)}
}

// Register adds an architecture. Registering a name twice panics.
func (r *Registry) Register(name string, arch Architecture) {
	if _, ok := r.archs[name]; ok {
		panic("model: architecture already registered")
	}

	r.archs[name] = arch
}

// Load returns the architecture registered under name.
func (r *Registry) Load(name string) (Architecture, bool) {
	arch, ok := r.archs[name]
	return arch, ok
}

// Supported returns the registered architecture names, sorted.
func (r *Registry) Supported() []string {
	names := maps.Keys(r.archs)
	slices.Sort(names)
	return names
}
