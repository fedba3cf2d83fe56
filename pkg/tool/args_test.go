package tool

import (
	"reflect"
	"testing"
)

func TestNumericArgCoercion(t *testing.T) {
	args := map[string]any{
		"limit":  float64(5), // what encoding/json produces
		"offset": 3,
		"score":  0.25,
	}
	if v, ok := IntArg(args, "limit"); !ok || v != 5 {
		t.Fatalf("limit = %d, %v", v, ok)
	}
	if v, ok := IntArg(args, "offset"); !ok || v != 3 {
		t.Fatalf("offset = %d, %v", v, ok)
	}
	if v, ok := FloatArg(args, "score"); !ok || v != 0.25 {
		t.Fatalf("score = %v, %v", v, ok)
	}
	if _, ok := IntArg(args, "missing"); ok {
		t.Fatal("missing key should not resolve")
	}
	if v := IntOr(args, "missing", 10); v != 10 {
		t.Fatalf("IntOr fallback = %d", v)
	}
}

func TestStringSliceArg(t *testing.T) {
	args := map[string]any{
		"ids":   []any{"a", "b"},
		"one":   "solo",
		"mixed": []any{"a", 1},
	}
	if got, ok := StringSliceArg(args, "ids"); !ok || !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("ids = %v, %v", got, ok)
	}
	if got, ok := StringSliceArg(args, "one"); !ok || !reflect.DeepEqual(got, []string{"solo"}) {
		t.Fatalf("one = %v, %v", got, ok)
	}
	if _, ok := StringSliceArg(args, "mixed"); ok {
		t.Fatal("mixed-type slice should not resolve")
	}
}

func TestStringAndBoolOr(t *testing.T) {
	args := map[string]any{"mode": "fast", "force": true}
	if v := StringOr(args, "mode", "slow"); v != "fast" {
		t.Fatalf("mode = %q", v)
	}
	if v := StringOr(args, "absent", "slow"); v != "slow" {
		t.Fatalf("absent = %q", v)
	}
	if v := BoolOr(args, "force", false); !v {
		t.Fatal("force should be true")
	}
	if v := BoolOr(args, "absent", true); !v {
		t.Fatal("absent bool fallback should be true")
	}
}
