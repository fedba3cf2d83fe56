// Package embedding defines the embedding-provider contract used by the
// vector-capable servers. Providers self-register through init so binaries
// select one by name at startup.
package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/oceanbase/mcp-oceanbase/pkg/config"
)

// Vector represents a single embedding vector.
type Vector []float32

// Embedder produces embedding vectors from text inputs.
//
// Implementations should be deterministic for the same input unless options
// specify non-deterministic behavior. All network or I/O operations must
// honor ctx.
type Embedder interface {
	// Name returns a short provider name (e.g., "openai", "fake").
	Name() string
	// Embed returns one vector per input string, in order.
	Embed(ctx context.Context, inputs []string, opts map[string]any) ([]Vector, error)
}

// Factory constructs an Embedder from a provider-specific configuration map.
// Recognized keys are api_key, model and dimension.
type Factory func(ctx context.Context, cfg map[string]any) (Embedder, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers an Embedder factory under a provider name.
func Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("embedding: empty provider name")
	}
	if f == nil {
		return fmt.Errorf("embedding: nil factory for %q", name)
	}
	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := factories[name]; exists {
		return fmt.Errorf("embedding: provider %q already registered", name)
	}
	factories[name] = f
	return nil
}

// Resolve retrieves a registered factory by name.
func Resolve(name string) (Factory, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Open resolves and builds the named provider in one step.
func Open(ctx context.Context, name string, cfg map[string]any) (Embedder, error) {
	f, ok := Resolve(name)
	if !ok {
		return nil, fmt.Errorf("embedding: unknown provider %q", name)
	}
	return f(ctx, cfg)
}

// FromConfig builds the provider selected by the environment configuration,
// routing the matching API key through as cfg.api_key.
func FromConfig(ctx context.Context, cfg config.Embedding) (Embedder, error) {
	m := map[string]any{"model": cfg.Model}
	switch cfg.Provider {
	case "openai":
		m["api_key"] = cfg.OpenAIKey
	case "gemini":
		m["api_key"] = cfg.GeminiKey
	}
	return Open(ctx, cfg.Provider, m)
}

// Range calls fn for each registered provider name and factory.
func Range(fn func(name string, f Factory)) {
	regMu.RLock()
	defer regMu.RUnlock()
	for n, f := range factories {
		fn(n, f)
	}
}
