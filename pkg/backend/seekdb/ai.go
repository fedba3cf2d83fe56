package seekdb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
	"github.com/oceanbase/mcp-oceanbase/pkg/tool"
)

func (b *Backend) aiTools() []tool.Tool {
	return []tool.Tool{
		b.createAIModelTool(),
		b.createAIModelEndpointTool(),
		b.dropAIModelTool(),
		b.dropAIModelEndpointTool(),
		b.aiCompleteTool(),
		b.aiRerankTool(),
		b.aiPromptTool(),
		b.createSemanticIndexTool(),
		b.semanticSearchTool(),
		b.semanticVectorSearchTool(),
	}
}

func (b *Backend) createAIModelTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "create_ai_model",
			Description: "Register an AI model via DBMS_AI_SERVICE.CREATE_AI_MODEL for use with AI_EMBED, AI_COMPLETE and AI_RERANK. Pair it with create_ai_model_endpoint.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"model_name":          tool.String("Name identifying the model inside the database, e.g. ob_embed"),
				"model_type":          tool.StringEnum("Kind of model", "dense_embedding", "completion", "rerank"),
				"provider_model_name": tool.String("Model name at the provider, e.g. BAAI/bge-m3"),
			}, "model_name", "model_type", "provider_model_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			model, err := requireIdentifier(args, "model_name", "Model name")
			if err != nil {
				return nil, err
			}
			modelType, _ := tool.StringArg(args, "model_type")
			switch modelType {
			case "dense_embedding", "completion", "rerank":
			default:
				return nil, errmodel.InvalidArguments("model_type", "model_type must be one of dense_embedding, completion, rerank")
			}
			providerModel, _ := tool.StringArg(args, "provider_model_name")
			if providerModel == "" {
				return nil, errmodel.InvalidArguments("provider_model_name", "provider_model_name cannot be empty")
			}

			cfg, _ := json.Marshal(struct {
				Type      string `json:"type"`
				ModelName string `json:"model_name"`
			}{modelType, providerModel})
			query := fmt.Sprintf("CALL DBMS_AI_SERVICE.CREATE_AI_MODEL('%s', '%s')", model, escapeString(string(cfg)))

			env := b.runSQL(ctx, query)
			out := map[string]any{"model_name": model, "success": env["success"], "error": env["error"]}
			if envelopeOK(env) {
				out["message"] = fmt.Sprintf("AI model '%s' created successfully with type=%s, provider_model=%s", model, modelType, providerModel)
			}
			return out, nil
		},
	}
}

func (b *Backend) createAIModelEndpointTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "create_ai_model_endpoint",
			Description: "Register the provider endpoint for an AI model via DBMS_AI_SERVICE.CREATE_AI_MODEL_ENDPOINT.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"endpoint_name": tool.String("Name for the endpoint, e.g. ob_embed_endpoint"),
				"ai_model_name": tool.String("Registered model this endpoint serves"),
				"url":           tool.String("Provider API URL, e.g. https://api.siliconflow.cn/v1/embeddings"),
				"access_key":    tool.String("Provider API key"),
				"provider":      tool.String("Provider name, default siliconflow"),
			}, "endpoint_name", "ai_model_name", "url", "access_key"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			endpoint, err := requireIdentifier(args, "endpoint_name", "Endpoint name")
			if err != nil {
				return nil, err
			}
			model, err := requireIdentifier(args, "ai_model_name", "Model name")
			if err != nil {
				return nil, err
			}
			url, _ := tool.StringArg(args, "url")
			if url == "" {
				return nil, errmodel.InvalidArguments("url", "url cannot be empty")
			}
			accessKey, _ := tool.StringArg(args, "access_key")
			if accessKey == "" {
				return nil, errmodel.InvalidArguments("access_key", "access_key cannot be empty")
			}
			provider := tool.StringOr(args, "provider", "siliconflow")

			cfg, _ := json.Marshal(struct {
				AIModelName string `json:"ai_model_name"`
				URL         string `json:"url"`
				AccessKey   string `json:"access_key"`
				Provider    string `json:"provider"`
			}{model, url, accessKey, provider})
			query := fmt.Sprintf("CALL DBMS_AI_SERVICE.CREATE_AI_MODEL_ENDPOINT('%s', '%s')", endpoint, escapeString(string(cfg)))

			env := b.runSQL(ctx, query)
			out := map[string]any{"endpoint_name": endpoint, "success": env["success"], "error": env["error"]}
			if envelopeOK(env) {
				out["message"] = fmt.Sprintf("AI model endpoint '%s' created successfully for model '%s'", endpoint, model)
			}
			return out, nil
		},
	}
}

func (b *Backend) dropAIModelTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "drop_ai_model",
			Description: "Drop a registered AI model. Drop its endpoints first with drop_ai_model_endpoint.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"model_name": tool.String("Model to drop"),
			}, "model_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			model, err := requireIdentifier(args, "model_name", "Model name")
			if err != nil {
				return nil, err
			}
			env := b.runSQL(ctx, fmt.Sprintf("CALL DBMS_AI_SERVICE.DROP_AI_MODEL('%s')", model))
			out := map[string]any{"model_name": model, "success": env["success"], "error": env["error"]}
			if envelopeOK(env) {
				out["message"] = fmt.Sprintf("AI model '%s' dropped successfully", model)
			}
			return out, nil
		},
	}
}

func (b *Backend) dropAIModelEndpointTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "drop_ai_model_endpoint",
			Description: "Drop a registered AI model endpoint.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"endpoint_name": tool.String("Endpoint to drop"),
			}, "endpoint_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			endpoint, err := requireIdentifier(args, "endpoint_name", "Endpoint name")
			if err != nil {
				return nil, err
			}
			env := b.runSQL(ctx, fmt.Sprintf("CALL DBMS_AI_SERVICE.DROP_AI_MODEL_ENDPOINT('%s')", endpoint))
			out := map[string]any{"endpoint_name": endpoint, "success": env["success"], "error": env["error"]}
			if envelopeOK(env) {
				out["message"] = fmt.Sprintf("AI model endpoint '%s' dropped successfully", endpoint)
			}
			return out, nil
		},
	}
}

func (b *Backend) aiCompleteTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "ai_complete",
			Description: "Generate text with a registered completion model via AI_COMPLETE. The prompt may carry {0}, {1} placeholders filled from template_args through AI_PROMPT.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"model_name":    tool.String("Registered completion model, e.g. ob_complete"),
				"prompt":        tool.String("Prompt text, optionally with {0}, {1} placeholders"),
				"template_args": tool.Array("Values for the prompt placeholders", tool.String("Placeholder value")),
			}, "model_name", "prompt"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			model, err := requireIdentifier(args, "model_name", "Model name")
			if err != nil {
				return nil, err
			}
			prompt, _ := tool.StringArg(args, "prompt")
			if prompt == "" {
				return nil, errmodel.InvalidArguments("prompt", "prompt cannot be empty")
			}
			templateArgs, _ := tool.StringSliceArg(args, "template_args")

			var query string
			if len(templateArgs) > 0 {
				query = fmt.Sprintf("SELECT AI_COMPLETE('%s', AI_PROMPT('%s', %s)) AS response",
					model, escapeString(prompt), quotedList(templateArgs))
			} else {
				query = fmt.Sprintf("SELECT AI_COMPLETE('%s', '%s') AS response", model, escapeString(prompt))
			}

			env := b.runSQL(ctx, query)
			out := map[string]any{"model_name": model, "success": env["success"], "response": nil, "error": env["error"]}
			if envelopeOK(env) {
				if cell, ok := firstCell(env); ok {
					out["response"] = cell
				}
				out["message"] = "AI completion successful"
			}
			return out, nil
		},
	}
}

func (b *Backend) aiRerankTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "ai_rerank",
			Description: "Rerank documents by relevance to a query with a registered rerank model via AI_RERANK. Returns the provider's scored list plus the documents in reranked order.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"model_name": tool.String("Registered rerank model, e.g. ob_rerank"),
				"query":      tool.String("Query text to rank against"),
				"documents":  tool.Array("Documents to rank", tool.String("Document text")),
			}, "model_name", "query", "documents"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			model, err := requireIdentifier(args, "model_name", "Model name")
			if err != nil {
				return nil, err
			}
			query, _ := tool.StringArg(args, "query")
			if query == "" {
				return nil, errmodel.InvalidArguments("query", "query cannot be empty")
			}
			documents, _ := tool.StringSliceArg(args, "documents")
			if len(documents) == 0 {
				return nil, errmodel.InvalidArguments("documents", "documents cannot be empty")
			}

			encoded, _ := json.Marshal(documents)
			stmt := fmt.Sprintf("SELECT AI_RERANK('%s', '%s', '%s') AS rerank_result",
				model, escapeString(query), escapeString(string(encoded)))

			env := b.runSQL(ctx, stmt)
			out := map[string]any{"model_name": model, "success": env["success"], "data": nil, "error": env["error"]}
			if envelopeOK(env) {
				if raw, ok := firstCell(env); ok {
					out["data"] = raw
					if reranked, parsed := rerankOrder(raw, documents); parsed {
						out["reranked_documents"] = reranked
					} else {
						b.logger.Warn("rerank result is not valid JSON, skipping document mapping")
					}
				}
				out["message"] = "Documents successfully reranked by relevance"
			}
			return out, nil
		},
	}
}

// rerankOrder maps the provider's index list back onto the input documents.
func rerankOrder(raw string, documents []string) ([]string, bool) {
	if raw == "" {
		return nil, false
	}
	var items []struct {
		Index *int `json:"index"`
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, false
	}
	reranked := make([]string, 0, len(items))
	for _, item := range items {
		if item.Index != nil && *item.Index >= 0 && *item.Index < len(documents) {
			reranked = append(reranked, documents[*item.Index])
		}
	}
	return reranked, true
}

func (b *Backend) aiPromptTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "ai_prompt",
			Description: "Construct a prompt via AI_PROMPT, pairing a template containing {0}, {1} placeholders with its argument values.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"template": tool.String("Prompt template with {0}, {1} placeholders"),
				"args":     tool.Array("Values for the placeholders", tool.String("Placeholder value")),
			}, "template"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			template, _ := tool.StringArg(args, "template")
			if template == "" {
				return nil, errmodel.InvalidArguments("template", "template cannot be empty")
			}
			values, _ := tool.StringSliceArg(args, "args")

			var query string
			if len(values) > 0 {
				query = fmt.Sprintf("SELECT AI_PROMPT('%s', %s) AS prompt_result", escapeString(template), quotedList(values))
			} else {
				query = fmt.Sprintf("SELECT AI_PROMPT('%s') AS prompt_result", escapeString(template))
			}

			env := b.runSQL(ctx, query)
			out := map[string]any{"success": env["success"], "data": nil, "error": env["error"]}
			if envelopeOK(env) {
				if cell, ok := firstCell(env); ok {
					out["data"] = cell
				}
				out["message"] = "AI prompt constructed successfully"
			}
			return out, nil
		},
	}
}

func (b *Backend) createSemanticIndexTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "create_semantic_index",
			Description: "Create a hybrid vector index on a VARCHAR column: the database embeds the text itself using a registered model, so search needs only raw text.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"table_name":  tool.String("Existing table to index"),
				"column_name": tool.String("VARCHAR column to index"),
				"index_name":  tool.String("Name for the index"),
				"model_name":  tool.String("Registered embedding model, e.g. ob_embed"),
				"dimension":   tool.Integer("Embedding dimension, default 1024"),
				"distance":    tool.StringEnum("Distance metric, default l2", "l2", "inner_product", "cosine"),
				"sync_mode":   tool.StringEnum("Embedding mode, default immediate", "immediate", "async"),
			}, "table_name", "column_name", "index_name", "model_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			table, err := requireIdentifier(args, "table_name", "Table name")
			if err != nil {
				return nil, err
			}
			column, err := requireIdentifier(args, "column_name", "Column name")
			if err != nil {
				return nil, err
			}
			index, err := requireIdentifier(args, "index_name", "Index name")
			if err != nil {
				return nil, err
			}
			model, err := requireIdentifier(args, "model_name", "Model name")
			if err != nil {
				return nil, err
			}
			dimension := tool.IntOr(args, "dimension", 1024)
			if dimension < 1 {
				return nil, errmodel.InvalidArguments("dimension", "dimension must be a positive integer")
			}
			distance := tool.StringOr(args, "distance", "l2")
			switch distance {
			case "l2", "inner_product", "cosine":
			default:
				return nil, errmodel.InvalidArguments("distance", "distance must be one of l2, inner_product, cosine")
			}
			syncMode := tool.StringOr(args, "sync_mode", "immediate")
			switch syncMode {
			case "immediate", "async":
			default:
				return nil, errmodel.InvalidArguments("sync_mode", "sync_mode must be one of immediate, async")
			}

			out := map[string]any{"table_name": table, "index_name": index, "success": false, "error": nil}

			check := b.runSQL(ctx, fmt.Sprintf(
				"SELECT count(*) FROM oceanbase.DBA_OB_AI_MODEL_ENDPOINTS WHERE ai_model_name='%s'", model))
			if !envelopeOK(check) {
				out["error"] = fmt.Sprintf("Failed to check model existence: %v", check["error"])
				return out, nil
			}
			count, _ := firstCell(check)
			if asInt(count) == 0 {
				out["error"] = fmt.Sprintf(
					"Model '%s' does not exist. Please create the model first using create_ai_model and create_ai_model_endpoint tools.", model)
				return out, nil
			}

			ddl := fmt.Sprintf(
				"CREATE VECTOR INDEX %s ON %s (%s) WITH (distance=%s, lib=vsag, type=hnsw, model=%s, dim=%d, sync_mode=%s)",
				index, table, column, distance, model, dimension, syncMode)

			env := b.runSQL(ctx, ddl)
			out["success"] = env["success"]
			out["error"] = env["error"]
			if envelopeOK(env) {
				out["message"] = fmt.Sprintf("Semantic index '%s' created successfully on %s.%s", index, table, column)
			}
			return out, nil
		},
	}
}

func (b *Backend) semanticSearchTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "semantic_search",
			Description: "Search a semantically indexed column by meaning: the database embeds the query text and orders rows by semantic_distance.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"table_name":     tool.String("Table to search"),
				"column_name":    tool.String("Column with the semantic index"),
				"query_text":     tool.String("Text to find similar content for"),
				"limit":          tool.Integer("Maximum number of results, default 10"),
				"select_columns": tool.Array("Columns to select instead of *", tool.String("Column name")),
			}, "table_name", "column_name", "query_text"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			table, column, cols, limit, err := semanticArgs(args)
			if err != nil {
				return nil, err
			}
			queryText, _ := tool.StringArg(args, "query_text")
			if queryText == "" {
				return nil, errmodel.InvalidArguments("query_text", "query_text cannot be empty")
			}

			query := fmt.Sprintf("SELECT %s FROM %s ORDER BY semantic_distance(%s, '%s') APPROXIMATE LIMIT %d",
				cols, table, column, escapeString(queryText), limit)

			env := b.runSQL(ctx, query)
			out := map[string]any{"table_name": table, "success": env["success"], "data": env["data"], "error": env["error"]}
			if envelopeOK(env) {
				out["message"] = fmt.Sprintf("Semantic search returned %d result(s)", rowCount(env))
			}
			return out, nil
		},
	}
}

func (b *Backend) semanticVectorSearchTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "semantic_vector_search",
			Description: "Search a semantically indexed column with a pre-computed vector, ordering rows by semantic_vector_distance.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"table_name":     tool.String("Table to search"),
				"column_name":    tool.String("Column with the semantic index"),
				"query_vector":   tool.Array("Query vector matching the index dimension", tool.Number("Vector component")),
				"limit":          tool.Integer("Maximum number of results, default 10"),
				"select_columns": tool.Array("Columns to select instead of *", tool.String("Column name")),
			}, "table_name", "column_name", "query_vector"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			table, column, cols, limit, err := semanticArgs(args)
			if err != nil {
				return nil, err
			}
			vector, ok, err := floatVector(args, "query_vector")
			if err != nil {
				return nil, err
			}
			if !ok || len(vector) == 0 {
				return nil, errmodel.InvalidArguments("query_vector", "query_vector cannot be empty")
			}

			query := fmt.Sprintf("SELECT %s FROM %s ORDER BY semantic_vector_distance(%s, '%s') APPROXIMATE LIMIT %d",
				cols, table, column, floatsLiteral(vector), limit)

			env := b.runSQL(ctx, query)
			out := map[string]any{"table_name": table, "success": env["success"], "data": env["data"], "error": env["error"]}
			if envelopeOK(env) {
				out["message"] = fmt.Sprintf("Semantic vector search returned %d result(s)", rowCount(env))
			}
			return out, nil
		},
	}
}

// semanticArgs validates the arguments shared by the two semantic search
// tools.
func semanticArgs(args map[string]any) (table, column, cols string, limit int, err error) {
	table, err = requireIdentifier(args, "table_name", "Table name")
	if err != nil {
		return "", "", "", 0, err
	}
	column, err = requireIdentifier(args, "column_name", "Column name")
	if err != nil {
		return "", "", "", 0, err
	}
	cols = "*"
	selectCols, ok := tool.StringSliceArg(args, "select_columns")
	if ok && len(selectCols) > 0 {
		if err := checkIdentifiers(selectCols, "Column name"); err != nil {
			return "", "", "", 0, err
		}
		cols = strings.Join(selectCols, ", ")
	}
	limit = tool.IntOr(args, "limit", 10)
	if limit < 1 {
		limit = 1
	}
	return table, column, cols, limit, nil
}

// quotedList renders strings as a comma-separated list of quoted SQL
// literals.
func quotedList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + escapeString(v) + "'"
	}
	return strings.Join(quoted, ", ")
}

func floatVector(args map[string]any, key string) ([]float64, bool, error) {
	raw, ok := tool.SliceArg(args, key)
	if !ok {
		return nil, false, nil
	}
	vec := make([]float64, 0, len(raw))
	for i, cell := range raw {
		f, ok := asFloatValue(cell)
		if !ok {
			return nil, true, errmodel.InvalidArguments(key, fmt.Sprintf("%s[%d] must be a number", key, i))
		}
		vec = append(vec, f)
	}
	return vec, true, nil
}

func rowCount(env map[string]any) int {
	if rows, ok := env["data"].([][]string); ok {
		return len(rows)
	}
	return 0
}
