package tool

import (
	"github.com/google/jsonschema-go/jsonschema"
)

// Schema builders used by the backend packages to declare tool inputs.
// Extra properties are tolerated on purpose: MCP clients routinely send
// metadata keys alongside the declared arguments.

// Object builds an object schema with the given properties; required
// lists the mandatory property names.
func Object(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

// String builds a string property schema.
func String(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

// StringEnum builds a string property restricted to the given values.
func StringEnum(desc string, values ...string) *jsonschema.Schema {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return &jsonschema.Schema{Type: "string", Description: desc, Enum: enum}
}

// Integer builds an integer property schema.
func Integer(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: desc}
}

// Number builds a number property schema.
func Number(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "number", Description: desc}
}

// Boolean builds a boolean property schema.
func Boolean(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: desc}
}

// Array builds an array property schema with the given item schema.
func Array(desc string, items *jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Description: desc, Items: items}
}

// Map builds an object property schema with free-form keys.
func Map(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Description: desc}
}
