package seekdb

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	_ "github.com/oceanbase/mcp-oceanbase/pkg/adapters/embedding/fake"
	"github.com/oceanbase/mcp-oceanbase/pkg/config"
	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
)

// newTestBackend opens a backend against a closed local port with the fake
// embedder. The pool dials lazily, so construction succeeds offline and
// argument validation can be exercised without a database.
func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(context.Background(), config.SeekDB{
		Host:      "127.0.0.1",
		Port:      1,
		User:      "root",
		Database:  "test",
		Embedding: config.Embedding{Provider: "fake"},
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func callTool(t *testing.T, b *Backend, name string, args map[string]any) (map[string]any, error) {
	t.Helper()
	for _, tl := range b.Tools() {
		if tl.Describe().Name == name {
			return tl.Invoke(context.Background(), args)
		}
	}
	t.Fatalf("tool %q not in catalog", name)
	return nil, nil
}

func TestCatalogNames(t *testing.T) {
	b := newTestBackend(t)
	want := []string{
		"add_data_to_collection",
		"ai_complete",
		"ai_prompt",
		"ai_rerank",
		"create_ai_model",
		"create_ai_model_endpoint",
		"create_collection",
		"create_semantic_index",
		"delete_collection",
		"delete_documents",
		"drop_ai_model",
		"drop_ai_model_endpoint",
		"execute_sql",
		"full_text_search",
		"get_current_time",
		"hybrid_search",
		"list_collections",
		"peek_collection",
		"query_collection",
		"semantic_search",
		"semantic_vector_search",
		"update_collection",
	}
	var got []string
	for _, tl := range b.Tools() {
		got = append(got, tl.Describe().Name)
	}
	sort.Strings(got)
	if len(got) != len(want) {
		t.Fatalf("catalog size = %d, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("catalog[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExecuteSQLRejectsEmpty(t *testing.T) {
	b := newTestBackend(t)
	_, err := callTool(t, b, "execute_sql", map[string]any{"sql": "   "})
	if !errmodel.IsKind(err, errmodel.KindInvalidArguments) {
		t.Fatalf("err = %v, want invalid_arguments", err)
	}
}

func TestExecuteSQLEmbedsFailureInEnvelope(t *testing.T) {
	b := newTestBackend(t)
	out, err := callTool(t, b, "execute_sql", map[string]any{"sql": "SELECT 1"})
	if err != nil {
		t.Fatalf("tool error = %v, want envelope", err)
	}
	if ok, _ := out["success"].(bool); ok {
		t.Fatal("success = true against unreachable database")
	}
	msg, _ := out["error"].(string)
	if !strings.HasPrefix(msg, "[Error]: ") {
		t.Fatalf("error = %q, want [Error]: prefix", msg)
	}
	if out["sql"] != "SELECT 1" {
		t.Fatalf("sql = %v", out["sql"])
	}
}

func TestCurrentTimeFallsBackToHostClock(t *testing.T) {
	b := newTestBackend(t)
	fixed := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	b.clock = func() time.Time { return fixed }

	out, err := callTool(t, b, "get_current_time", nil)
	if err != nil {
		t.Fatalf("get_current_time: %v", err)
	}
	if out["current_time"] != "2025-06-01 12:30:00" {
		t.Fatalf("current_time = %v", out["current_time"])
	}
}

func TestCheckIdentifier(t *testing.T) {
	if _, err := checkIdentifier("orders_2024", "Table name"); err != nil {
		t.Fatalf("valid name rejected: %v", err)
	}
	if _, err := checkIdentifier(strings.Repeat("a", 64), "Table name"); err != nil {
		t.Fatalf("64-char name rejected: %v", err)
	}

	cases := []struct {
		name string
		want string
	}{
		{"", "cannot be empty"},
		{"  ", "cannot be empty"},
		{strings.Repeat("a", 65), "length cannot exceed 64 characters"},
		{"bad-name", "contains invalid characters"},
		{"1table", "contains invalid characters"},
		{"a;DROP TABLE t", "contains invalid characters"},
	}
	for _, tc := range cases {
		_, err := checkIdentifier(tc.name, "Table name")
		if !errmodel.IsKind(err, errmodel.KindInvalidArguments) {
			t.Fatalf("checkIdentifier(%q) err = %v, want invalid_arguments", tc.name, err)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("checkIdentifier(%q) = %q, want %q", tc.name, err.Error(), tc.want)
		}
	}
}

func TestEscapeString(t *testing.T) {
	if got := escapeString("O'Brien's"); got != "O''Brien''s" {
		t.Fatalf("escapeString = %q", got)
	}
	if got := escapeString("plain"); got != "plain" {
		t.Fatalf("escapeString = %q", got)
	}
}

func TestVectorLiterals(t *testing.T) {
	if got := vectorLiteral([]float32{0.5, -1, 0.25}); got != "[0.5,-1,0.25]" {
		t.Fatalf("vectorLiteral = %q", got)
	}
	if got := floatsLiteral([]float64{0.1, 2, -3.5}); got != "[0.1,2,-3.5]" {
		t.Fatalf("floatsLiteral = %q", got)
	}
}
