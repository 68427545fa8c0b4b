package llm

import (
	"sort"

	"github.com/efebarandurmaz/llmfactory/internal/config"
)

// CompletionConstructor builds a structured-completion client from provider settings.
type CompletionConstructor func(settings config.ProviderSettings) (Completer, error)

// EmbeddingConstructor builds an embedding client from provider settings.
type EmbeddingConstructor func(settings config.ProviderSettings) (Embedder, error)

// Registry maps provider names to client constructors. It is populated once
// at startup and only read afterwards, so it carries no lock.
type Registry[C any] struct {
	kind         Kind
	constructors map[string]C
}

// NewRegistry creates an empty registry for the given namespace.
func NewRegistry[C any](kind Kind) *Registry[C] {
	return &Registry[C]{
		kind:         kind,
		constructors: make(map[string]C),
	}
}

// Kind returns the namespace this registry serves.
func (r *Registry[C]) Kind() Kind { return r.kind }

// Register adds a constructor under name. A later registration for the same
// name replaces the earlier one.
func (r *Registry[C]) Register(name string, ctor C) {
	r.constructors[name] = ctor
}

// Resolve returns the constructor registered under name.
func (r *Registry[C]) Resolve(name string) (C, error) {
	ctor, ok := r.constructors[name]
	if !ok {
		var zero C
		return zero, &NotRegisteredError{Kind: r.kind, Name: name, Registered: r.Names()}
	}
	return ctor, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry[C]) Names() []string {
	out := make([]string, 0, len(r.constructors))
	for k := range r.constructors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
