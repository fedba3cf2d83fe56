// Package powermem is a local long-term memory store served as MCP tools.
// Records live in a sqlite file; similarity search runs against an
// in-memory cosine index rebuilt from the file at startup and kept in step
// with every write.
package powermem

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"
	"go.uber.org/zap"

	"github.com/oceanbase/mcp-oceanbase/pkg/adapters/embedding"
	"github.com/oceanbase/mcp-oceanbase/pkg/adapters/vectorstore"
	"github.com/oceanbase/mcp-oceanbase/pkg/adapters/vectorstore/memory"
	"github.com/oceanbase/mcp-oceanbase/pkg/config"
	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
	"github.com/oceanbase/mcp-oceanbase/pkg/tool"
)

const indexNamespace = "memories"

// Backend wires the sqlite record store, the embedding provider and the
// vector index behind the memory tool catalog.
type Backend struct {
	store    *recordStore
	index    vectorstore.VectorStore
	embedder embedding.Embedder
	logger   *zap.Logger
}

// New opens the sqlite file, builds the embedding provider and rebuilds the
// vector index from the stored records.
func New(ctx context.Context, cfg config.PowerMem, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store, err := openStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	embedder, err := embedding.FromConfig(ctx, cfg.Embedding)
	if err != nil {
		store.Close()
		return nil, err
	}
	b := &Backend{
		store:    store,
		index:    memory.New(),
		embedder: embedder,
		logger:   logger.Named("powermem"),
	}
	if err := b.rebuildIndex(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) Close() error { return b.store.Close() }

func (b *Backend) rebuildIndex(ctx context.Context) error {
	records, err := b.store.all(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	contents := make([]string, len(records))
	for i, r := range records {
		contents[i] = r.Content
	}
	vecs, err := b.embedder.Embed(ctx, contents, nil)
	if err != nil {
		return errmodel.Execution("rebuild memory index: "+err.Error(), map[string]any{"provider": b.embedder.Name()})
	}
	items := make([]vectorstore.Item, len(records))
	for i, r := range records {
		items[i] = indexItem(r, vecs[i])
	}
	if err := b.index.Upsert(ctx, items); err != nil {
		return errmodel.Execution("rebuild memory index: "+err.Error(), nil)
	}
	b.logger.Info("vector index rebuilt", zap.Int("memories", len(records)))
	return nil
}

func indexItem(r record, vec embedding.Vector) vectorstore.Item {
	return vectorstore.Item{
		ID:        strconv.FormatInt(r.ID, 10),
		Namespace: indexNamespace,
		Vector:    vectorstore.Vector(vec),
		Metadata: map[string]any{
			"user_id":  r.UserID,
			"agent_id": r.AgentID,
			"run_id":   r.RunID,
		},
	}
}

// Tools returns the seven memory tools.
func (b *Backend) Tools() []tool.Tool {
	return []tool.Tool{
		b.addMemoryTool(),
		b.searchMemoriesTool(),
		b.getMemoryTool(),
		b.updateMemoryTool(),
		b.deleteMemoryTool(),
		b.deleteAllMemoriesTool(),
		b.listMemoriesTool(),
	}
}

func scopeFrom(args map[string]any) scope {
	return scope{
		userID:  tool.StringOr(args, "user_id", ""),
		agentID: tool.StringOr(args, "agent_id", ""),
		runID:   tool.StringOr(args, "run_id", ""),
	}
}

func scopeSchema(props map[string]*jsonschema.Schema) map[string]*jsonschema.Schema {
	props["user_id"] = tool.String("User identifier")
	props["agent_id"] = tool.String("Agent identifier")
	props["run_id"] = tool.String("Run or session identifier")
	return props
}

// parseMessages accepts the three wire shapes for memory content: a plain
// string, a {role, content} object, or a list of such objects.
func parseMessages(v any) ([]string, error) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil, errmodel.InvalidArguments("messages", "messages cannot be empty")
		}
		return []string{t}, nil
	case map[string]any:
		content, _ := t["content"].(string)
		if content == "" {
			return nil, errmodel.InvalidArguments("messages", "message object must carry a non-empty content field")
		}
		return []string{content}, nil
	case []any:
		if len(t) == 0 {
			return nil, errmodel.InvalidArguments("messages", "messages cannot be empty")
		}
		out := make([]string, 0, len(t))
		for _, e := range t {
			parsed, err := parseMessages(e)
			if err != nil {
				return nil, err
			}
			out = append(out, parsed...)
		}
		return out, nil
	default:
		return nil, errmodel.InvalidArguments("messages", "messages must be a string, a message object, or a list of message objects")
	}
}

func recordMap(r record) map[string]any {
	m := map[string]any{
		"id":         r.ID,
		"memory":     r.Content,
		"created_at": r.CreatedAt,
		"updated_at": r.UpdatedAt,
	}
	if r.UserID != "" {
		m["user_id"] = r.UserID
	}
	if r.AgentID != "" {
		m["agent_id"] = r.AgentID
	}
	if r.RunID != "" {
		m["run_id"] = r.RunID
	}
	if r.Metadata != nil {
		m["metadata"] = r.Metadata
	}
	return m
}

func (b *Backend) addMemoryTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "add_memory",
			Description: "Store new memories. Content may be a string, a {role, content} object, or a list of such objects; each message becomes one memory scoped to the given identifiers.",
			InputSchema: tool.Object(scopeSchema(map[string]*jsonschema.Schema{
				"messages": {Description: "Memory content: string, message object, or message list"},
				"metadata": tool.Map("Metadata stored with each memory"),
				"infer":    tool.Boolean("Accepted for compatibility; content is stored as given"),
			}), "messages"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			contents, err := parseMessages(args["messages"])
			if err != nil {
				return nil, err
			}
			sc := scopeFrom(args)
			if sc.empty() {
				return nil, errmodel.InvalidArguments("user_id", "at least one of user_id, agent_id, or run_id must be provided")
			}
			metadata, _ := tool.MapArg(args, "metadata")

			vecs, err := b.embedder.Embed(ctx, contents, nil)
			if err != nil {
				return nil, errmodel.Execution("embed memory: "+err.Error(), map[string]any{"provider": b.embedder.Name()})
			}

			results := make([]map[string]any, 0, len(contents))
			items := make([]vectorstore.Item, 0, len(contents))
			for i, content := range contents {
				r, err := b.store.insert(ctx, sc, content, metadata)
				if err != nil {
					return nil, err
				}
				items = append(items, indexItem(r, vecs[i]))
				results = append(results, map[string]any{
					"id":     r.ID,
					"memory": r.Content,
					"event":  "ADD",
				})
			}
			if err := b.index.Upsert(ctx, items); err != nil {
				return nil, errmodel.Execution("index memory: "+err.Error(), nil)
			}
			return map[string]any{"results": results}, nil
		},
	}
}

func (b *Backend) searchMemoriesTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "search_memories",
			Description: "Search stored memories by semantic similarity within the given scope. Results carry a cosine similarity score, higher is closer.",
			InputSchema: tool.Object(scopeSchema(map[string]*jsonschema.Schema{
				"query":     tool.String("Search query text"),
				"limit":     tool.Integer("Maximum number of results, default 10"),
				"threshold": tool.Number("Minimum similarity score in 0..1"),
			}), "query"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			query, _ := tool.StringArg(args, "query")
			if query == "" {
				return nil, errmodel.InvalidArguments("query", "query cannot be empty")
			}
			limit := tool.IntOr(args, "limit", 10)
			if limit < 1 {
				limit = 1
			}
			threshold, hasThreshold := tool.FloatArg(args, "threshold")

			vecs, err := b.embedder.Embed(ctx, []string{query}, nil)
			if err != nil {
				return nil, errmodel.Execution("embed query: "+err.Error(), map[string]any{"provider": b.embedder.Name()})
			}
			matches, err := b.index.Query(ctx, vectorstore.Vector(vecs[0]), limit, vectorstore.Filter{
				Namespace: indexNamespace,
				Equals:    scopeEquals(scopeFrom(args)),
			})
			if err != nil {
				return nil, errmodel.Execution("search memory index: "+err.Error(), nil)
			}

			results := make([]map[string]any, 0, len(matches))
			for _, m := range matches {
				if hasThreshold && float64(m.Score) < threshold {
					continue
				}
				id, err := strconv.ParseInt(m.Item.ID, 10, 64)
				if err != nil {
					continue
				}
				r, ok, err := b.store.get(ctx, id, scope{})
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
				entry := recordMap(r)
				entry["score"] = m.Score
				results = append(results, entry)
			}
			return map[string]any{"results": results}, nil
		},
	}
}

// scopeEquals renders the scope as an index metadata filter.
func scopeEquals(sc scope) map[string]any {
	eq := make(map[string]any)
	if sc.userID != "" {
		eq["user_id"] = sc.userID
	}
	if sc.agentID != "" {
		eq["agent_id"] = sc.agentID
	}
	if sc.runID != "" {
		eq["run_id"] = sc.runID
	}
	return eq
}

func (b *Backend) getMemoryTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "get_memory_by_id",
			Description: "Fetch one memory by its numeric id.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"memory_id": tool.Integer("Memory id"),
				"user_id":   tool.String("Restrict to this user"),
				"agent_id":  tool.String("Restrict to this agent"),
			}, "memory_id"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			id, ok := tool.IntArg(args, "memory_id")
			if !ok {
				return nil, errmodel.InvalidArguments("memory_id", "memory_id must be an integer")
			}
			r, found, err := b.store.get(ctx, int64(id), scopeFrom(args))
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, errmodel.InvalidArguments("memory_id", fmt.Sprintf("Memory %d not found", id))
			}
			return recordMap(r), nil
		},
	}
}

func (b *Backend) updateMemoryTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "update_memory",
			Description: "Update a memory's content and/or metadata. New content is re-embedded so search stays accurate.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"memory_id": tool.Integer("Memory id"),
				"content":   tool.String("Replacement content"),
				"metadata":  tool.Map("Replacement metadata"),
				"user_id":   tool.String("Restrict to this user"),
				"agent_id":  tool.String("Restrict to this agent"),
			}, "memory_id"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			id, ok := tool.IntArg(args, "memory_id")
			if !ok {
				return nil, errmodel.InvalidArguments("memory_id", "memory_id must be an integer")
			}
			content, hasContent := tool.StringArg(args, "content")
			metadata, hasMeta := tool.MapArg(args, "metadata")
			if !hasContent && !hasMeta {
				return nil, errmodel.InvalidArguments("content", "at least one of content or metadata must be provided")
			}

			sc := scopeFrom(args)
			if _, found, err := b.store.get(ctx, int64(id), sc); err != nil {
				return nil, err
			} else if !found {
				return nil, errmodel.InvalidArguments("memory_id", fmt.Sprintf("Memory %d not found", id))
			}

			var newContent *string
			if hasContent {
				newContent = &content
			}
			if err := b.store.update(ctx, int64(id), newContent, metadata); err != nil {
				return nil, err
			}
			r, _, err := b.store.get(ctx, int64(id), scope{})
			if err != nil {
				return nil, err
			}
			if hasContent {
				vecs, err := b.embedder.Embed(ctx, []string{content}, nil)
				if err != nil {
					return nil, errmodel.Execution("embed memory: "+err.Error(), map[string]any{"provider": b.embedder.Name()})
				}
				if err := b.index.Upsert(ctx, []vectorstore.Item{indexItem(r, vecs[0])}); err != nil {
					return nil, errmodel.Execution("index memory: "+err.Error(), nil)
				}
			}
			out := recordMap(r)
			out["event"] = "UPDATE"
			return out, nil
		},
	}
}

func (b *Backend) deleteMemoryTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "delete_memory",
			Description: "Delete one memory by id. success is false when no matching memory exists.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"memory_id": tool.Integer("Memory id"),
				"user_id":   tool.String("Restrict to this user"),
				"agent_id":  tool.String("Restrict to this agent"),
			}, "memory_id"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			id, ok := tool.IntArg(args, "memory_id")
			if !ok {
				return nil, errmodel.InvalidArguments("memory_id", "memory_id must be an integer")
			}
			deleted, err := b.store.delete(ctx, int64(id), scopeFrom(args))
			if err != nil {
				return nil, err
			}
			if deleted {
				if err := b.index.Delete(ctx, strconv.Itoa(id)); err != nil {
					return nil, errmodel.Execution("unindex memory: "+err.Error(), nil)
				}
			}
			return map[string]any{"success": deleted, "memory_id": id}, nil
		},
	}
}

func (b *Backend) deleteAllMemoriesTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "delete_all_memories",
			Description: "Delete every memory in the given scope. At least one scope identifier is required so a bare call cannot wipe the store.",
			InputSchema: tool.Object(scopeSchema(map[string]*jsonschema.Schema{})),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			sc := scopeFrom(args)
			if sc.empty() {
				return nil, errmodel.InvalidArguments("user_id", "at least one of user_id, agent_id, or run_id must be provided")
			}
			ids, err := b.store.ids(ctx, sc)
			if err != nil {
				return nil, err
			}
			n, err := b.store.deleteAll(ctx, sc)
			if err != nil {
				return nil, err
			}
			if len(ids) > 0 {
				strIDs := make([]string, len(ids))
				for i, id := range ids {
					strIDs[i] = strconv.FormatInt(id, 10)
				}
				if err := b.index.Delete(ctx, strIDs...); err != nil {
					return nil, errmodel.Execution("unindex memories: "+err.Error(), nil)
				}
			}
			return map[string]any{"success": true, "deleted": n}, nil
		},
	}
}

func (b *Backend) listMemoriesTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "list_memories",
			Description: "List memories in the given scope, newest first.",
			InputSchema: tool.Object(scopeSchema(map[string]*jsonschema.Schema{
				"limit":  tool.Integer("Maximum number of results, default 100"),
				"offset": tool.Integer("Number of results to skip, default 0"),
			})),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			limit := tool.IntOr(args, "limit", 100)
			if limit < 1 {
				limit = 1
			}
			offset := tool.IntOr(args, "offset", 0)
			if offset < 0 {
				offset = 0
			}
			records, err := b.store.list(ctx, scopeFrom(args), limit, offset)
			if err != nil {
				return nil, err
			}
			results := make([]map[string]any, 0, len(records))
			for _, r := range records {
				results = append(results, recordMap(r))
			}
			return map[string]any{"results": results}, nil
		},
	}
}
