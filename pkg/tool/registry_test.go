package tool

import (
	"context"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
)

func sumTool() Tool {
	return Func{
		Desc: Descriptor{
			Name: "sum",
			InputSchema: Object(map[string]*jsonschema.Schema{
				"a": Number(""),
				"b": Number(""),
			}, "a", "b"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			a, _ := args["a"].(float64)
			b, _ := args["b"].(float64)
			return map[string]any{"sum": a + b}, nil
		},
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(sumTool()); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(sumTool()); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if _, ok := reg.Resolve("sum"); !ok {
		t.Fatal("tool not resolved")
	}
	if _, ok := reg.Resolve("Sum"); ok {
		t.Fatal("lookup must be exact-name, got fuzzy match")
	}
	if err := reg.Register(nil); err == nil {
		t.Fatal("expected nil tool error")
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zz", "aa", "mm"} {
		reg.MustRegister(Func{
			Desc: Descriptor{Name: name},
			Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
				return map[string]any{}, nil
			},
		})
	}
	names := reg.Names()
	want := []string{"aa", "mm", "zz"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names=%v want %v", names, want)
		}
	}
}
