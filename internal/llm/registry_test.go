package llm

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/efebarandurmaz/llmfactory/internal/config"
)

type namedEmbedder string

func (n namedEmbedder) Embed(context.Context, string, string) ([]float64, error) { return nil, nil }

func embedderCtor(name string) EmbeddingConstructor {
	return func(config.ProviderSettings) (Embedder, error) { return namedEmbedder(name), nil }
}

func TestNewRegistry_Empty(t *testing.T) {
	r := NewRegistry[EmbeddingConstructor](KindEmbedding)
	if r.Kind() != KindEmbedding {
		t.Fatalf("kind = %q", r.Kind())
	}
	if len(r.Names()) != 0 {
		t.Fatalf("expected empty registry, got %v", r.Names())
	}
}

func TestRegistry_ResolveReturnsRegisteredConstructor(t *testing.T) {
	r := NewRegistry[EmbeddingConstructor](KindEmbedding)
	r.Register("openai", embedderCtor("first"))

	ctor, err := r.Resolve("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e, _ := ctor(nil)
	if e != namedEmbedder("first") {
		t.Fatalf("resolved constructor built %v", e)
	}
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	r := NewRegistry[EmbeddingConstructor](KindEmbedding)
	r.Register("openai", embedderCtor("first"))
	r.Register("openai", embedderCtor("second"))

	ctor, err := r.Resolve("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e, _ := ctor(nil)
	if e != namedEmbedder("second") {
		t.Fatalf("expected the later constructor, got %v", e)
	}
	if got := r.Names(); !reflect.DeepEqual(got, []string{"openai"}) {
		t.Fatalf("names = %v", got)
	}
}

func TestRegistry_ResolveUnregistered(t *testing.T) {
	r := NewRegistry[CompletionConstructor](KindCompletion)
	r.Register("openai", nil)

	_, err := r.Resolve("cohere")
	var nr *NotRegisteredError
	if !errors.As(err, &nr) {
		t.Fatalf("expected *NotRegisteredError, got %T", err)
	}
	if nr.Name != "cohere" || nr.Kind != KindCompletion {
		t.Fatalf("unexpected error fields: %+v", nr)
	}
	if !reflect.DeepEqual(nr.Registered, []string{"openai"}) {
		t.Fatalf("registered = %v", nr.Registered)
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := NewRegistry[CompletionConstructor](KindCompletion)
	for _, n := range []string{"openai", "bedrock", "llama", "anthropic"} {
		r.Register(n, nil)
	}
	want := []string{"anthropic", "bedrock", "llama", "openai"}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
}
