package seekdb

import (
	"strings"
	"testing"

	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
)

func TestRerankOrder(t *testing.T) {
	docs := []string{"apple", "banana", "fruit"}
	raw := `[{"index":2,"relevance_score":0.9},{"index":0,"relevance_score":0.4},{"index":9,"relevance_score":0.1}]`
	got, ok := rerankOrder(raw, docs)
	if !ok {
		t.Fatal("rerankOrder rejected valid JSON")
	}
	// Index 9 is out of range and silently dropped.
	if len(got) != 2 || got[0] != "fruit" || got[1] != "apple" {
		t.Fatalf("reranked = %v", got)
	}

	if _, ok := rerankOrder("not json", docs); ok {
		t.Fatal("rerankOrder accepted invalid JSON")
	}
	if _, ok := rerankOrder("", docs); ok {
		t.Fatal("rerankOrder accepted empty result")
	}
}

func TestQuotedList(t *testing.T) {
	if got := quotedList([]string{"a", "it's"}); got != "'a', 'it''s'" {
		t.Fatalf("quotedList = %q", got)
	}
}

func TestCreateAIModelRejectsUnknownType(t *testing.T) {
	b := newTestBackend(t)
	_, err := callTool(t, b, "create_ai_model", map[string]any{
		"model_name":          "ob_embed",
		"model_type":          "sparse",
		"provider_model_name": "BAAI/bge-m3",
	})
	if !errmodel.IsKind(err, errmodel.KindInvalidArguments) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "model_type must be one of dense_embedding, completion, rerank") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestAICompleteValidation(t *testing.T) {
	b := newTestBackend(t)

	_, err := callTool(t, b, "ai_complete", map[string]any{
		"model_name": "bad-model", "prompt": "hi",
	})
	if !errmodel.IsKind(err, errmodel.KindInvalidArguments) {
		t.Fatalf("bad model err = %v", err)
	}

	_, err = callTool(t, b, "ai_complete", map[string]any{
		"model_name": "ob_complete", "prompt": "",
	})
	if !errmodel.IsKind(err, errmodel.KindInvalidArguments) {
		t.Fatalf("empty prompt err = %v", err)
	}
}

func TestAICompleteOfflineKeepsEnvelope(t *testing.T) {
	b := newTestBackend(t)
	out, err := callTool(t, b, "ai_complete", map[string]any{
		"model_name": "ob_complete", "prompt": "Translate 'hello'",
	})
	if err != nil {
		t.Fatalf("tool error = %v, want envelope", err)
	}
	if ok, _ := out["success"].(bool); ok {
		t.Fatal("success = true against unreachable database")
	}
	if out["response"] != nil {
		t.Fatalf("response = %v", out["response"])
	}
	msg, _ := out["error"].(string)
	if !strings.HasPrefix(msg, "[Error]: ") {
		t.Fatalf("error = %q", msg)
	}
}

func TestCreateSemanticIndexValidation(t *testing.T) {
	b := newTestBackend(t)

	_, err := callTool(t, b, "create_semantic_index", map[string]any{
		"table_name": "items", "column_name": "doc", "index_name": "idx", "model_name": "ob_embed",
		"distance": "hamming",
	})
	if !errmodel.IsKind(err, errmodel.KindInvalidArguments) {
		t.Fatalf("bad distance err = %v", err)
	}
	if !strings.Contains(err.Error(), "distance must be one of l2, inner_product, cosine") {
		t.Fatalf("message = %q", err.Error())
	}

	_, err = callTool(t, b, "create_semantic_index", map[string]any{
		"table_name": "items", "column_name": "doc", "index_name": "idx", "model_name": "ob_embed",
		"sync_mode": "batch",
	})
	if !errmodel.IsKind(err, errmodel.KindInvalidArguments) {
		t.Fatalf("bad sync_mode err = %v", err)
	}
}

func TestCreateSemanticIndexReportsCheckFailure(t *testing.T) {
	b := newTestBackend(t)
	out, err := callTool(t, b, "create_semantic_index", map[string]any{
		"table_name": "items", "column_name": "doc", "index_name": "idx", "model_name": "ob_embed",
	})
	if err != nil {
		t.Fatalf("tool error = %v, want envelope", err)
	}
	if ok, _ := out["success"].(bool); ok {
		t.Fatal("success = true against unreachable database")
	}
	msg, _ := out["error"].(string)
	if !strings.HasPrefix(msg, "Failed to check model existence: ") {
		t.Fatalf("error = %q", msg)
	}
}

func TestAIRerankValidation(t *testing.T) {
	b := newTestBackend(t)
	_, err := callTool(t, b, "ai_rerank", map[string]any{
		"model_name": "ob_rerank", "query": "apple", "documents": []any{},
	})
	if !errmodel.IsKind(err, errmodel.KindInvalidArguments) {
		t.Fatalf("err = %v", err)
	}
}

func TestSemanticVectorSearchValidation(t *testing.T) {
	b := newTestBackend(t)
	_, err := callTool(t, b, "semantic_vector_search", map[string]any{
		"table_name": "items", "column_name": "doc", "query_vector": []any{"x"},
	})
	if !errmodel.IsKind(err, errmodel.KindInvalidArguments) {
		t.Fatalf("err = %v", err)
	}
	_, err = callTool(t, b, "semantic_vector_search", map[string]any{
		"table_name": "items", "column_name": "doc", "query_vector": []any{},
	})
	if !errmodel.IsKind(err, errmodel.KindInvalidArguments) {
		t.Fatalf("empty vector err = %v", err)
	}
}
