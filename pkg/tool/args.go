package tool

import "encoding/json"

// Argument extraction helpers. Arguments arrive as map[string]any decoded
// from JSON, so numbers are float64 unless a backend re-decoded them with
// json.Number.

// StringArg returns args[key] as a string.
func StringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok
}

// StringOr returns args[key] as a string, or fallback when absent.
func StringOr(args map[string]any, key, fallback string) string {
	if v, ok := StringArg(args, key); ok {
		return v
	}
	return fallback
}

// IntArg returns args[key] as an int, accepting the numeric types JSON
// decoding can produce.
func IntArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// IntOr returns args[key] as an int, or fallback when absent or non-numeric.
func IntOr(args map[string]any, key string, fallback int) int {
	if v, ok := IntArg(args, key); ok {
		return v
	}
	return fallback
}

// FloatArg returns args[key] as a float64.
func FloatArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// BoolArg returns args[key] as a bool.
func BoolArg(args map[string]any, key string) (bool, bool) {
	v, ok := args[key].(bool)
	return v, ok
}

// BoolOr returns args[key] as a bool, or fallback when absent.
func BoolOr(args map[string]any, key string, fallback bool) bool {
	if v, ok := BoolArg(args, key); ok {
		return v
	}
	return fallback
}

// SliceArg returns args[key] as a []any.
func SliceArg(args map[string]any, key string) ([]any, bool) {
	v, ok := args[key].([]any)
	return v, ok
}

// StringSliceArg returns args[key] as a []string. A bare string is wrapped
// in a one-element slice; a []any must hold only strings.
func StringSliceArg(args map[string]any, key string) ([]string, bool) {
	switch v := args[key].(type) {
	case string:
		return []string{v}, true
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// MapArg returns args[key] as a map[string]any.
func MapArg(args map[string]any, key string) (map[string]any, bool) {
	v, ok := args[key].(map[string]any)
	return v, ok
}
