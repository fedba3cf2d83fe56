// Package tool defines the tool contract shared by every server variant:
// a schema-described descriptor, a registry fixed at startup, and the
// dispatcher that turns a named call into exactly one normalized result.
package tool

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// Descriptor declares the static interface of a tool. Schemas are
// advertised verbatim to MCP clients in tools/list.
type Descriptor struct {
	Name         string             `json:"name"`
	Description  string             `json:"description,omitempty"`
	InputSchema  *jsonschema.Schema `json:"input_schema,omitempty"`
	OutputSchema *jsonschema.Schema `json:"output_schema,omitempty"`
}

// Tool is a callable unit with schema-validated input.
type Tool interface {
	// Describe returns the public descriptor.
	Describe() Descriptor
	// Invoke executes the tool. The args conform to InputSchema by the
	// time the dispatcher calls this.
	Invoke(ctx context.Context, args map[string]any) (map[string]any, error)
}

// Func adapts a plain function into a Tool.
type Func struct {
	Desc Descriptor
	Fn   func(ctx context.Context, args map[string]any) (map[string]any, error)
}

func (f Func) Describe() Descriptor { return f.Desc }

func (f Func) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	return f.Fn(ctx, args)
}
