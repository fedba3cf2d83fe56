package powermem

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	_ "github.com/oceanbase/mcp-oceanbase/pkg/adapters/embedding/fake"
	"github.com/oceanbase/mcp-oceanbase/pkg/config"
	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
)

func testConfig(t *testing.T) config.PowerMem {
	t.Helper()
	return config.PowerMem{
		DBPath:    filepath.Join(t.TempDir(), "memories.db"),
		Embedding: config.Embedding{Provider: "fake"},
	}
}

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(context.Background(), testConfig(t), zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func callTool(t *testing.T, b *Backend, name string, args map[string]any) (map[string]any, error) {
	t.Helper()
	for _, tl := range b.Tools() {
		if tl.Describe().Name == name {
			return tl.Invoke(context.Background(), args)
		}
	}
	t.Fatalf("tool %q not registered", name)
	return nil, nil
}

func mustCall(t *testing.T, b *Backend, name string, args map[string]any) map[string]any {
	t.Helper()
	out, err := callTool(t, b, name, args)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return out
}

func addOne(t *testing.T, b *Backend, content, userID string) int64 {
	t.Helper()
	out := mustCall(t, b, "add_memory", map[string]any{
		"messages": content,
		"user_id":  userID,
	})
	results, ok := out["results"].([]map[string]any)
	if !ok || len(results) != 1 {
		t.Fatalf("add_memory results = %#v, want one entry", out["results"])
	}
	if results[0]["event"] != "ADD" {
		t.Errorf("event = %v, want ADD", results[0]["event"])
	}
	id, ok := results[0]["id"].(int64)
	if !ok {
		t.Fatalf("id = %#v, want int64", results[0]["id"])
	}
	return id
}

func TestCatalogNames(t *testing.T) {
	b := newTestBackend(t)
	want := []string{
		"add_memory",
		"delete_all_memories",
		"delete_memory",
		"get_memory_by_id",
		"list_memories",
		"search_memories",
		"update_memory",
	}
	got := make(map[string]bool)
	for _, tl := range b.Tools() {
		got[tl.Describe().Name] = true
	}
	if len(got) != len(want) {
		t.Fatalf("tool count = %d, want %d", len(got), len(want))
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("missing tool %q", name)
		}
	}
}

func TestAddAndSearchScoped(t *testing.T) {
	b := newTestBackend(t)
	hikingID := addOne(t, b, "I love hiking in the mountains", "alice")
	addOne(t, b, "My favorite food is sushi", "alice")
	addOne(t, b, "I prefer city walks", "bob")

	out := mustCall(t, b, "search_memories", map[string]any{
		"query":   "I love hiking in the mountains",
		"user_id": "alice",
	})
	results, ok := out["results"].([]map[string]any)
	if !ok || len(results) == 0 {
		t.Fatalf("results = %#v, want non-empty", out["results"])
	}
	for _, r := range results {
		if r["user_id"] != "alice" {
			t.Errorf("result leaked scope: %#v", r)
		}
	}
	top := results[0]
	if top["id"] != hikingID {
		t.Errorf("top id = %v, want %d", top["id"], hikingID)
	}
	score, ok := top["score"].(float32)
	if !ok || score < 0.99 {
		t.Errorf("top score = %v, want ~1 for identical text", top["score"])
	}
}

func TestSearchHonorsThreshold(t *testing.T) {
	b := newTestBackend(t)
	addOne(t, b, "the ocean is deep", "alice")

	out := mustCall(t, b, "search_memories", map[string]any{
		"query":     "something entirely unrelated to water",
		"user_id":   "alice",
		"threshold": 0.99,
	})
	if results := out["results"].([]map[string]any); len(results) != 0 {
		t.Errorf("results = %#v, want none above threshold", results)
	}
}

func TestAddMemoryRequiresScope(t *testing.T) {
	b := newTestBackend(t)
	_, err := callTool(t, b, "add_memory", map[string]any{"messages": "orphan"})
	if !errmodel.IsKind(err, errmodel.KindInvalidArguments) {
		t.Fatalf("err = %v, want invalid-arguments", err)
	}
	if msg := errmodel.From(err).Message; !strings.Contains(msg, "at least one of user_id, agent_id, or run_id") {
		t.Errorf("message = %q", msg)
	}
}

func TestParseMessages(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    []string
		wantErr string
	}{
		{name: "string", in: "hello", want: []string{"hello"}},
		{name: "object", in: map[string]any{"role": "user", "content": "hi"}, want: []string{"hi"}},
		{
			name: "list",
			in: []any{
				map[string]any{"role": "user", "content": "one"},
				map[string]any{"role": "assistant", "content": "two"},
			},
			want: []string{"one", "two"},
		},
		{name: "empty string", in: "", wantErr: "messages cannot be empty"},
		{name: "empty list", in: []any{}, wantErr: "messages cannot be empty"},
		{name: "object without content", in: map[string]any{"role": "user"}, wantErr: "content field"},
		{name: "wrong type", in: 42, wantErr: "must be a string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMessages(tt.in)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseMessages: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAddMemoryMessageList(t *testing.T) {
	b := newTestBackend(t)
	out := mustCall(t, b, "add_memory", map[string]any{
		"messages": []any{
			map[string]any{"role": "user", "content": "first fact"},
			map[string]any{"role": "user", "content": "second fact"},
		},
		"user_id":  "alice",
		"metadata": map[string]any{"source": "chat"},
	})
	results := out["results"].([]map[string]any)
	if len(results) != 2 {
		t.Fatalf("results = %d entries, want 2", len(results))
	}
	if results[0]["memory"] != "first fact" || results[1]["memory"] != "second fact" {
		t.Errorf("contents = %v, %v", results[0]["memory"], results[1]["memory"])
	}

	got := mustCall(t, b, "get_memory_by_id", map[string]any{"memory_id": results[0]["id"]})
	meta, ok := got["metadata"].(map[string]any)
	if !ok || meta["source"] != "chat" {
		t.Errorf("metadata = %#v, want source=chat", got["metadata"])
	}
}

func TestGetMemoryByIDNotFound(t *testing.T) {
	b := newTestBackend(t)
	_, err := callTool(t, b, "get_memory_by_id", map[string]any{"memory_id": 999})
	if !errmodel.IsKind(err, errmodel.KindInvalidArguments) {
		t.Fatalf("err = %v, want invalid-arguments", err)
	}
	if msg := errmodel.From(err).Message; msg != "Memory 999 not found" {
		t.Errorf("message = %q", msg)
	}
}

func TestGetMemoryScopeGuard(t *testing.T) {
	b := newTestBackend(t)
	id := addOne(t, b, "private note", "alice")

	if _, err := callTool(t, b, "get_memory_by_id", map[string]any{"memory_id": id, "user_id": "bob"}); err == nil {
		t.Error("expected not-found for foreign scope")
	}
	got := mustCall(t, b, "get_memory_by_id", map[string]any{"memory_id": id, "user_id": "alice"})
	if got["memory"] != "private note" {
		t.Errorf("memory = %v", got["memory"])
	}
}

func TestUpdateMemoryReEmbeds(t *testing.T) {
	b := newTestBackend(t)
	id := addOne(t, b, "old content", "alice")

	out := mustCall(t, b, "update_memory", map[string]any{
		"memory_id": id,
		"content":   "entirely new topic",
		"metadata":  map[string]any{"rev": float64(2)},
	})
	if out["memory"] != "entirely new topic" {
		t.Errorf("memory = %v", out["memory"])
	}
	if out["event"] != "UPDATE" {
		t.Errorf("event = %v, want UPDATE", out["event"])
	}

	search := mustCall(t, b, "search_memories", map[string]any{
		"query":   "entirely new topic",
		"user_id": "alice",
	})
	results := search["results"].([]map[string]any)
	if len(results) == 0 || results[0]["id"] != id {
		t.Fatalf("updated memory not found by new content: %#v", results)
	}
	if score := results[0]["score"].(float32); score < 0.99 {
		t.Errorf("score = %v, want ~1 after re-embed", score)
	}
}

func TestUpdateMemoryRequiresPayload(t *testing.T) {
	b := newTestBackend(t)
	id := addOne(t, b, "something", "alice")
	_, err := callTool(t, b, "update_memory", map[string]any{"memory_id": id})
	if err == nil || !strings.Contains(err.Error(), "at least one of content or metadata") {
		t.Fatalf("err = %v", err)
	}
}

func TestDeleteMemory(t *testing.T) {
	b := newTestBackend(t)
	id := addOne(t, b, "disposable", "alice")

	out := mustCall(t, b, "delete_memory", map[string]any{"memory_id": id})
	if out["success"] != true {
		t.Fatalf("success = %v, want true", out["success"])
	}

	if _, err := callTool(t, b, "get_memory_by_id", map[string]any{"memory_id": id}); err == nil {
		t.Error("memory still readable after delete")
	}
	search := mustCall(t, b, "search_memories", map[string]any{"query": "disposable", "user_id": "alice"})
	if results := search["results"].([]map[string]any); len(results) != 0 {
		t.Errorf("deleted memory still indexed: %#v", results)
	}

	again := mustCall(t, b, "delete_memory", map[string]any{"memory_id": id})
	if again["success"] != false {
		t.Errorf("second delete success = %v, want false", again["success"])
	}
}

func TestDeleteAllMemoriesScoped(t *testing.T) {
	b := newTestBackend(t)
	addOne(t, b, "alice one", "alice")
	addOne(t, b, "alice two", "alice")
	addOne(t, b, "bob one", "bob")

	out := mustCall(t, b, "delete_all_memories", map[string]any{"user_id": "alice"})
	if out["success"] != true {
		t.Errorf("success = %v", out["success"])
	}
	if deleted, ok := out["deleted"].(int64); !ok || deleted != 2 {
		t.Errorf("deleted = %#v, want 2", out["deleted"])
	}

	alice := mustCall(t, b, "list_memories", map[string]any{"user_id": "alice"})
	if results := alice["results"].([]map[string]any); len(results) != 0 {
		t.Errorf("alice still has %d memories", len(results))
	}
	bob := mustCall(t, b, "list_memories", map[string]any{"user_id": "bob"})
	if results := bob["results"].([]map[string]any); len(results) != 1 {
		t.Errorf("bob memories = %d, want 1", len(results))
	}
}

func TestDeleteAllMemoriesRequiresScope(t *testing.T) {
	b := newTestBackend(t)
	_, err := callTool(t, b, "delete_all_memories", map[string]any{})
	if err == nil || !strings.Contains(err.Error(), "at least one of user_id, agent_id, or run_id") {
		t.Fatalf("err = %v", err)
	}
}

func TestListMemoriesNewestFirst(t *testing.T) {
	b := newTestBackend(t)
	first := addOne(t, b, "first", "alice")
	second := addOne(t, b, "second", "alice")
	third := addOne(t, b, "third", "alice")

	out := mustCall(t, b, "list_memories", map[string]any{"user_id": "alice"})
	results := out["results"].([]map[string]any)
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	for i, want := range []int64{third, second, first} {
		if results[i]["id"] != want {
			t.Errorf("results[%d].id = %v, want %d", i, results[i]["id"], want)
		}
	}

	page := mustCall(t, b, "list_memories", map[string]any{"user_id": "alice", "limit": 1, "offset": 1})
	paged := page["results"].([]map[string]any)
	if len(paged) != 1 || paged[0]["id"] != second {
		t.Errorf("paged = %#v, want only id %d", paged, second)
	}
}

func TestIndexRebuildsOnReopen(t *testing.T) {
	cfg := testConfig(t)
	b, err := New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id := addOne(t, b, "durable fact", "alice")
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { reopened.Close() })

	out := mustCall(t, reopened, "search_memories", map[string]any{
		"query":   "durable fact",
		"user_id": "alice",
	})
	results := out["results"].([]map[string]any)
	if len(results) == 0 || results[0]["id"] != id {
		t.Fatalf("rebuilt index missing memory: %#v", results)
	}
}
