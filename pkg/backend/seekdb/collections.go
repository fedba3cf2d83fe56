package seekdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
	"github.com/oceanbase/mcp-oceanbase/pkg/tool"
)

// Collections are plain tables: one documents table per collection plus a
// registry table recording each collection's vector layout.
const (
	registryTable    = "_collections"
	defaultDimension = 384
	vectorIndexName  = "vector_idx"
)

type collectionInfo struct {
	name      string
	dimension int
	distance  string
}

func (b *Backend) collectionTools() []tool.Tool {
	return []tool.Tool{
		b.createCollectionTool(),
		b.listCollectionsTool(),
		b.peekCollectionTool(),
		b.addDataTool(),
		b.updateCollectionTool(),
		b.deleteDocumentsTool(),
		b.queryCollectionTool(),
		b.deleteCollectionTool(),
	}
}

func (b *Backend) ensureRegistry(ctx context.Context) error {
	_, err := b.client.Exec(ctx, "CREATE TABLE IF NOT EXISTS "+registryTable+
		" (name VARCHAR(64) PRIMARY KEY, dimension INT NOT NULL, distance VARCHAR(16) NOT NULL, created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)")
	return err
}

func (b *Backend) getCollection(ctx context.Context, name string) (collectionInfo, error) {
	if err := b.ensureRegistry(ctx); err != nil {
		return collectionInfo{}, err
	}
	res, err := b.client.Query(ctx, "SELECT dimension, distance FROM "+registryTable+" WHERE name = ?", name)
	if err != nil {
		return collectionInfo{}, err
	}
	if len(res.Rows) == 0 {
		return collectionInfo{}, errmodel.Execution(
			fmt.Sprintf("collection '%s' does not exist", name),
			map[string]any{"collection": name},
		)
	}
	return collectionInfo{
		name:      name,
		dimension: asInt(res.Rows[0][0]),
		distance:  fmt.Sprint(res.Rows[0][1]),
	}, nil
}

// distanceExpr renders the ordering expression for one metric. Inner
// product similarity is negated so ascending order still means closest
// first.
func distanceExpr(metric, column, vec string) string {
	switch metric {
	case "cosine":
		return fmt.Sprintf("cosine_distance(%s, '%s')", column, vec)
	case "ip":
		return fmt.Sprintf("negative_inner_product(%s, '%s')", column, vec)
	default:
		return fmt.Sprintf("l2_distance(%s, '%s')", column, vec)
	}
}

// indexDistance maps the catalog metric names onto the index DDL spelling.
func indexDistance(metric string) string {
	if metric == "ip" {
		return "inner_product"
	}
	return metric
}

func (b *Backend) createCollectionTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "create_collection",
			Description: "Create a collection for vector data: a documents table with an HNSW vector index, recorded in the collection registry.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"collection_name": tool.String("Collection name, a unique identifier of at most 64 characters"),
				"dimension":       tool.Integer("Dimension of the stored vectors, default 384"),
				"distance":        tool.StringEnum("Distance metric for similarity search, default l2", "l2", "cosine", "ip"),
			}, "collection_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "collection_name", "Collection name")
			if err != nil {
				return nil, err
			}
			dimension := tool.IntOr(args, "dimension", defaultDimension)
			if dimension < 1 {
				return nil, errmodel.InvalidArguments("dimension", "dimension must be a positive integer")
			}
			distance := tool.StringOr(args, "distance", "l2")
			switch distance {
			case "l2", "cosine", "ip":
			default:
				return nil, errmodel.InvalidArguments("distance", "distance must be one of l2, cosine, ip")
			}

			if err := b.ensureRegistry(ctx); err != nil {
				return nil, err
			}
			existing, err := b.client.Query(ctx, "SELECT name FROM "+registryTable+" WHERE name = ?", name)
			if err != nil {
				return nil, err
			}
			if len(existing.Rows) > 0 {
				return nil, errmodel.Execution(
					fmt.Sprintf("collection '%s' already exists", name),
					map[string]any{"collection": name},
				)
			}

			createTable := fmt.Sprintf(
				"CREATE TABLE %s (id VARCHAR(64) PRIMARY KEY, document LONGTEXT, metadata JSON, embedding VECTOR(%d))",
				name, dimension,
			)
			if _, err := b.client.Exec(ctx, createTable); err != nil {
				return nil, err
			}
			createIndex := fmt.Sprintf(
				"CREATE VECTOR INDEX %s ON %s (embedding) WITH (distance=%s, type=hnsw, lib=vsag)",
				vectorIndexName, name, indexDistance(distance),
			)
			if _, err := b.client.Exec(ctx, createIndex); err != nil {
				return nil, err
			}
			if _, err := b.client.Exec(ctx,
				"INSERT INTO "+registryTable+" (name, dimension, distance) VALUES (?, ?, ?)",
				name, dimension, distance,
			); err != nil {
				return nil, err
			}
			return map[string]any{
				"collection_name": name,
				"success":         true,
				"message":         fmt.Sprintf("Collection '%s' created successfully with dimension=%d, distance=%s", name, dimension, distance),
			}, nil
		},
	}
}

func (b *Backend) listCollectionsTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "list_collections",
			Description: "List all collections with their count.",
			InputSchema: tool.Object(nil),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			if err := b.ensureRegistry(ctx); err != nil {
				return nil, err
			}
			res, err := b.client.Query(ctx, "SELECT name FROM "+registryTable+" ORDER BY name")
			if err != nil {
				return nil, err
			}
			names := make([]string, 0, len(res.Rows))
			for _, row := range res.Rows {
				names = append(names, fmt.Sprint(row[0]))
			}
			return map[string]any{
				"success":     true,
				"collections": names,
				"count":       len(names),
				"message":     fmt.Sprintf("Found %d collection(s)", len(names)),
			}, nil
		},
	}
}

func (b *Backend) peekCollectionTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "peek_collection",
			Description: "Return a small sample of documents from a collection for quick inspection.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"collection_name": tool.String("Collection to peek into"),
				"limit":           tool.Integer("Maximum number of documents to return, default 3"),
			}, "collection_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "collection_name", "Collection name")
			if err != nil {
				return nil, err
			}
			if _, err := b.getCollection(ctx, name); err != nil {
				return nil, err
			}
			limit := tool.IntOr(args, "limit", 3)
			if limit < 1 {
				limit = 1
			}
			res, err := b.client.Query(ctx,
				fmt.Sprintf("SELECT id, document, metadata, embedding FROM %s LIMIT %d", name, limit))
			if err != nil {
				return nil, err
			}
			ids := make([]string, 0, len(res.Rows))
			documents := make([]any, 0, len(res.Rows))
			metadatas := make([]any, 0, len(res.Rows))
			embeddings := make([]any, 0, len(res.Rows))
			for _, row := range res.Rows {
				ids = append(ids, fmt.Sprint(row[0]))
				documents = append(documents, row[1])
				metadatas = append(metadatas, parseJSONCell(row[2]))
				embeddings = append(embeddings, row[3])
			}
			return map[string]any{
				"collection_name": name,
				"success":         true,
				"data": map[string]any{
					"ids":        ids,
					"documents":  documents,
					"metadatas":  metadatas,
					"embeddings": embeddings,
				},
				"message": fmt.Sprintf("Peeked %d document(s) from collection '%s'", len(ids), name),
			}, nil
		},
	}
}

func (b *Backend) addDataTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "add_data_to_collection",
			Description: "Add documents to a collection. Document text is embedded with the configured provider; metadata entries pair with ids by position.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"collection_name": tool.String("Collection to add data to"),
				"ids":             tool.Array("Unique ids for the items", tool.String("Item id")),
				"documents":       tool.Array("Text documents, one per id", tool.String("Document text")),
				"metadatas":       tool.Array("Metadata objects, one per id", tool.Map("Metadata for one item")),
			}, "collection_name", "ids"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "collection_name", "Collection name")
			if err != nil {
				return nil, err
			}
			ids, _ := tool.StringSliceArg(args, "ids")
			if len(ids) == 0 {
				return nil, errmodel.InvalidArguments("ids", "ids cannot be empty")
			}
			documents, hasDocs := tool.StringSliceArg(args, "documents")
			if hasDocs && len(documents) != len(ids) {
				return nil, errmodel.InvalidArguments("documents", "documents length must match ids length")
			}
			metadatas, hasMetas, err := mapSlice(args, "metadatas")
			if err != nil {
				return nil, err
			}
			if hasMetas && len(metadatas) != len(ids) {
				return nil, errmodel.InvalidArguments("metadatas", "metadatas length must match ids length")
			}

			info, err := b.getCollection(ctx, name)
			if err != nil {
				return nil, err
			}
			var vectors []string
			if hasDocs {
				vectors, err = b.embedDocuments(ctx, documents, info)
				if err != nil {
					return nil, err
				}
			}

			for i, id := range ids {
				var document, metadata, vec any
				if hasDocs {
					document = documents[i]
					vec = vectors[i]
				}
				if hasMetas && metadatas[i] != nil {
					enc, err := json.Marshal(metadatas[i])
					if err != nil {
						return nil, errmodel.InvalidArguments("metadatas", "metadatas must be JSON-encodable: "+err.Error())
					}
					metadata = string(enc)
				}
				if _, err := b.client.Exec(ctx,
					fmt.Sprintf("INSERT INTO %s (id, document, metadata, embedding) VALUES (?, ?, ?, ?)", name),
					id, document, metadata, vec,
				); err != nil {
					return nil, err
				}
			}
			return map[string]any{
				"collection_name": name,
				"success":         true,
				"ids":             ids,
				"message":         fmt.Sprintf("Successfully added %d item(s) to collection '%s'", len(ids), name),
			}, nil
		},
	}
}

func (b *Backend) updateCollectionTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "update_collection",
			Description: "Update existing documents in a collection by id. New document text is re-embedded.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"collection_name": tool.String("Collection to update"),
				"ids":             tool.Array("Ids of the items to update", tool.String("Item id")),
				"documents":       tool.Array("Replacement documents, one per id", tool.String("Document text")),
				"metadatas":       tool.Array("Replacement metadata objects, one per id", tool.Map("Metadata for one item")),
			}, "collection_name", "ids"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "collection_name", "Collection name")
			if err != nil {
				return nil, err
			}
			ids, _ := tool.StringSliceArg(args, "ids")
			if len(ids) == 0 {
				return nil, errmodel.InvalidArguments("ids", "ids cannot be empty")
			}
			documents, hasDocs := tool.StringSliceArg(args, "documents")
			metadatas, hasMetas, err := mapSlice(args, "metadatas")
			if err != nil {
				return nil, err
			}
			if !hasDocs && !hasMetas {
				return nil, errmodel.InvalidArguments("documents", "at least one of documents or metadatas must be provided")
			}
			if hasDocs && len(documents) != len(ids) {
				return nil, errmodel.InvalidArguments("documents", "documents length must match ids length")
			}
			if hasMetas && len(metadatas) != len(ids) {
				return nil, errmodel.InvalidArguments("metadatas", "metadatas length must match ids length")
			}

			info, err := b.getCollection(ctx, name)
			if err != nil {
				return nil, err
			}
			var vectors []string
			if hasDocs {
				vectors, err = b.embedDocuments(ctx, documents, info)
				if err != nil {
					return nil, err
				}
			}

			for i, id := range ids {
				var sets []string
				var params []any
				if hasDocs {
					sets = append(sets, "document = ?", "embedding = ?")
					params = append(params, documents[i], vectors[i])
				}
				if hasMetas {
					enc, err := json.Marshal(metadatas[i])
					if err != nil {
						return nil, errmodel.InvalidArguments("metadatas", "metadatas must be JSON-encodable: "+err.Error())
					}
					sets = append(sets, "metadata = ?")
					params = append(params, string(enc))
				}
				params = append(params, id)
				if _, err := b.client.Exec(ctx,
					fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", name, strings.Join(sets, ", ")),
					params...,
				); err != nil {
					return nil, err
				}
			}
			return map[string]any{
				"collection_name": name,
				"success":         true,
				"ids":             ids,
				"message":         fmt.Sprintf("Successfully updated %d item(s) in collection '%s'", len(ids), name),
			}, nil
		},
	}
}

func (b *Backend) deleteDocumentsTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "delete_documents",
			Description: "Delete documents from a collection by ids, metadata filter ($eq $ne $gt $gte $lt $lte $in $nin) or document content filter ($contains).",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"collection_name": tool.String("Collection to delete from"),
				"ids":             tool.Array("Document ids to delete", tool.String("Item id")),
				"where":           tool.Map("Metadata filter, e.g. {\"category\": {\"$eq\": \"obsolete\"}}"),
				"where_document":  tool.Map("Document content filter, e.g. {\"$contains\": \"deprecated\"}"),
			}, "collection_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "collection_name", "Collection name")
			if err != nil {
				return nil, err
			}
			ids, hasIDs := tool.StringSliceArg(args, "ids")
			where, _ := tool.MapArg(args, "where")
			whereDoc, _ := tool.MapArg(args, "where_document")
			if (!hasIDs || len(ids) == 0) && len(where) == 0 && len(whereDoc) == 0 {
				return nil, errmodel.InvalidArguments("ids", "At least one of ids, where, or where_document must be provided")
			}
			if _, err := b.getCollection(ctx, name); err != nil {
				return nil, err
			}

			var conds []string
			var params []any
			if hasIDs && len(ids) > 0 {
				conds = append(conds, "id IN ("+placeholders(len(ids))+")")
				for _, id := range ids {
					params = append(params, id)
				}
			}
			cond, condArgs, err := metadataFilter(where)
			if err != nil {
				return nil, err
			}
			if cond != "" {
				conds = append(conds, cond)
				params = append(params, condArgs...)
			}
			cond, condArgs, err = documentFilter(whereDoc)
			if err != nil {
				return nil, err
			}
			if cond != "" {
				conds = append(conds, cond)
				params = append(params, condArgs...)
			}

			if _, err := b.client.Exec(ctx,
				fmt.Sprintf("DELETE FROM %s WHERE %s", name, strings.Join(conds, " AND ")),
				params...,
			); err != nil {
				return nil, err
			}
			out := map[string]any{
				"collection_name": name,
				"success":         true,
				"message":         fmt.Sprintf("Successfully deleted documents from collection '%s'", name),
			}
			if hasIDs && len(ids) > 0 {
				out["deleted_ids"] = ids
			}
			return out, nil
		},
	}
}

func (b *Backend) queryCollectionTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "query_collection",
			Description: "Vector similarity search over a collection by query text (embedded automatically) or pre-computed vectors, with optional metadata and document filters.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"collection_name":  tool.String("Collection to query"),
				"query_texts":      tool.Array("Text queries to embed and search with", tool.String("Query text")),
				"query_embeddings": tool.Array("Pre-computed query vectors", tool.Array("One query vector", tool.Number("Vector component"))),
				"n_results":        tool.Integer("Number of results per query, default 10"),
				"where":            tool.Map("Metadata filter"),
				"where_document":   tool.Map("Document content filter"),
				"include":          tool.Array("Fields to include: documents, metadatas, embeddings, distances", tool.String("Field name")),
			}, "collection_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "collection_name", "Collection name")
			if err != nil {
				return nil, err
			}
			nResults := tool.IntOr(args, "n_results", 10)
			if nResults < 1 {
				nResults = 1
			}
			include, err := includeSet(args, []string{"documents", "metadatas", "distances"})
			if err != nil {
				return nil, err
			}
			texts, _ := tool.StringSliceArg(args, "query_texts")
			matrix, _, err := floatMatrix(args, "query_embeddings")
			if err != nil {
				return nil, err
			}
			if len(texts) == 0 && len(matrix) == 0 {
				return nil, errmodel.InvalidArguments("query_texts", "either query_texts or query_embeddings must be provided")
			}

			info, err := b.getCollection(ctx, name)
			if err != nil {
				return nil, err
			}
			vectors, err := b.resolveQueryVectors(ctx, texts, matrix, info)
			if err != nil {
				return nil, err
			}

			filter, filterArgs, err := collectionFilter(args)
			if err != nil {
				return nil, err
			}

			allIDs := make([][]string, 0, len(vectors))
			allDistances := make([][]float64, 0, len(vectors))
			allDocuments := make([][]any, 0, len(vectors))
			allMetadatas := make([][]any, 0, len(vectors))
			allEmbeddings := make([][]any, 0, len(vectors))
			for _, vec := range vectors {
				dist := distanceExpr(info.distance, "embedding", vec)
				cols := "id, document, metadata, " + dist + " AS distance"
				if include["embeddings"] {
					cols = "id, document, metadata, embedding, " + dist + " AS distance"
				}
				query := fmt.Sprintf("SELECT %s FROM %s", cols, name)
				if filter != "" {
					query += " WHERE " + filter
				}
				query += fmt.Sprintf(" ORDER BY %s APPROXIMATE LIMIT %d", dist, nResults)

				res, err := b.client.Query(ctx, query, filterArgs...)
				if err != nil {
					return nil, err
				}
				ids := make([]string, 0, len(res.Rows))
				distances := make([]float64, 0, len(res.Rows))
				documents := make([]any, 0, len(res.Rows))
				metadatas := make([]any, 0, len(res.Rows))
				embeddings := make([]any, 0, len(res.Rows))
				for _, row := range res.Rows {
					ids = append(ids, fmt.Sprint(row[0]))
					documents = append(documents, row[1])
					metadatas = append(metadatas, parseJSONCell(row[2]))
					if include["embeddings"] {
						embeddings = append(embeddings, row[3])
					}
					distances = append(distances, asFloat(row[len(row)-1]))
				}
				allIDs = append(allIDs, ids)
				allDistances = append(allDistances, distances)
				allDocuments = append(allDocuments, documents)
				allMetadatas = append(allMetadatas, metadatas)
				allEmbeddings = append(allEmbeddings, embeddings)
			}

			data := map[string]any{"ids": allIDs}
			if include["distances"] {
				data["distances"] = allDistances
			}
			if include["documents"] {
				data["documents"] = allDocuments
			}
			if include["metadatas"] {
				data["metadatas"] = allMetadatas
			}
			if include["embeddings"] {
				data["embeddings"] = allEmbeddings
			}
			count := 0
			if len(allIDs) > 0 {
				count = len(allIDs[0])
			}
			return map[string]any{
				"collection_name": name,
				"success":         true,
				"data":            data,
				"message":         fmt.Sprintf("Query returned %d result(s)", count),
			}, nil
		},
	}
}

func (b *Backend) deleteCollectionTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "delete_collection",
			Description: "Delete a collection and all its data. This cannot be undone.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"collection_name": tool.String("Collection to delete"),
			}, "collection_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "collection_name", "Collection name")
			if err != nil {
				return nil, err
			}
			if _, err := b.getCollection(ctx, name); err != nil {
				return nil, err
			}
			if _, err := b.client.Exec(ctx, "DROP TABLE "+name); err != nil {
				return nil, err
			}
			if _, err := b.client.Exec(ctx, "DELETE FROM "+registryTable+" WHERE name = ?", name); err != nil {
				return nil, err
			}
			return map[string]any{
				"collection_name": name,
				"success":         true,
				"message":         fmt.Sprintf("Collection '%s' deleted successfully", name),
			}, nil
		},
	}
}

// embedDocuments runs the provider and renders each vector as a literal,
// checking the dimension against the collection layout.
func (b *Backend) embedDocuments(ctx context.Context, documents []string, info collectionInfo) ([]string, error) {
	vecs, err := b.embedder.Embed(ctx, documents, nil)
	if err != nil {
		return nil, errmodel.Execution("embed documents: "+err.Error(), map[string]any{"provider": b.embedder.Name()})
	}
	out := make([]string, len(vecs))
	for i, v := range vecs {
		if len(v) != info.dimension {
			return nil, errmodel.Execution(
				fmt.Sprintf("embedding dimension %d does not match collection dimension %d", len(v), info.dimension),
				map[string]any{"collection": info.name, "provider": b.embedder.Name()},
			)
		}
		out[i] = vectorLiteral(v)
	}
	return out, nil
}

// resolveQueryVectors turns query texts or pre-computed embeddings into
// vector literals; texts win when both are present.
func (b *Backend) resolveQueryVectors(ctx context.Context, texts []string, matrix [][]float64, info collectionInfo) ([]string, error) {
	if len(texts) > 0 {
		return b.embedDocuments(ctx, texts, info)
	}
	out := make([]string, len(matrix))
	for i, vec := range matrix {
		out[i] = floatsLiteral(vec)
	}
	return out, nil
}

// collectionFilter combines the where and where_document arguments into one
// conjunction.
func collectionFilter(args map[string]any) (string, []any, error) {
	where, _ := tool.MapArg(args, "where")
	whereDoc, _ := tool.MapArg(args, "where_document")

	var conds []string
	var params []any
	cond, condArgs, err := metadataFilter(where)
	if err != nil {
		return "", nil, err
	}
	if cond != "" {
		conds = append(conds, cond)
		params = append(params, condArgs...)
	}
	cond, condArgs, err = documentFilter(whereDoc)
	if err != nil {
		return "", nil, err
	}
	if cond != "" {
		conds = append(conds, cond)
		params = append(params, condArgs...)
	}
	return strings.Join(conds, " AND "), params, nil
}

var metadataOps = map[string]string{
	"$eq": "=", "$ne": "!=", "$gt": ">", "$gte": ">=", "$lt": "<", "$lte": "<=",
}

// metadataFilter renders a chroma-style metadata filter as SQL over the
// JSON metadata column. A bare value means equality. Keys iterate in sorted
// order so the generated SQL is deterministic.
func metadataFilter(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}
	keys := sortedKeys(where)
	var conds []string
	var params []any
	for _, key := range keys {
		if !identRe.MatchString(key) {
			return "", nil, errmodel.InvalidArguments("where", fmt.Sprintf("metadata field %q contains invalid characters", key))
		}
		path := "JSON_UNQUOTE(JSON_EXTRACT(metadata, '$." + key + "'))"
		switch v := where[key].(type) {
		case map[string]any:
			for _, op := range sortedKeys(v) {
				val := v[op]
				switch op {
				case "$in", "$nin":
					list, ok := val.([]any)
					if !ok || len(list) == 0 {
						return "", nil, errmodel.InvalidArguments("where", fmt.Sprintf("%s operand must be a non-empty array", op))
					}
					not := ""
					if op == "$nin" {
						not = "NOT "
					}
					conds = append(conds, fmt.Sprintf("%s %sIN (%s)", path, not, placeholders(len(list))))
					params = append(params, list...)
				default:
					sqlOp, ok := metadataOps[op]
					if !ok {
						return "", nil, errmodel.InvalidArguments("where", fmt.Sprintf("unsupported metadata operator %q", op))
					}
					conds = append(conds, path+" "+sqlOp+" ?")
					params = append(params, val)
				}
			}
		default:
			conds = append(conds, path+" = ?")
			params = append(params, v)
		}
	}
	return strings.Join(conds, " AND "), params, nil
}

// documentFilter renders the document content filter; only $contains and
// $not_contains are supported.
func documentFilter(whereDoc map[string]any) (string, []any, error) {
	if len(whereDoc) == 0 {
		return "", nil, nil
	}
	var conds []string
	var params []any
	for _, op := range sortedKeys(whereDoc) {
		s, ok := whereDoc[op].(string)
		if !ok {
			return "", nil, errmodel.InvalidArguments("where_document", fmt.Sprintf("%s operand must be a string", op))
		}
		switch op {
		case "$contains":
			conds = append(conds, "document LIKE ?")
		case "$not_contains":
			conds = append(conds, "document NOT LIKE ?")
		default:
			return "", nil, errmodel.InvalidArguments("where_document", fmt.Sprintf("unsupported document operator %q", op))
		}
		params = append(params, "%"+s+"%")
	}
	return strings.Join(conds, " AND "), params, nil
}

// includeSet validates the include argument against the known fields,
// falling back to def when absent.
func includeSet(args map[string]any, def []string) (map[string]bool, error) {
	fields, ok := tool.StringSliceArg(args, "include")
	if !ok || len(fields) == 0 {
		fields = def
	}
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		switch f {
		case "documents", "metadatas", "embeddings", "distances":
			out[f] = true
		default:
			return nil, errmodel.InvalidArguments("include", fmt.Sprintf("unknown include field %q", f))
		}
	}
	return out, nil
}

func mapSlice(args map[string]any, key string) ([]map[string]any, bool, error) {
	raw, ok := tool.SliceArg(args, key)
	if !ok {
		return nil, false, nil
	}
	out := make([]map[string]any, 0, len(raw))
	for i, e := range raw {
		if e == nil {
			out = append(out, nil)
			continue
		}
		m, ok := e.(map[string]any)
		if !ok {
			return nil, true, errmodel.InvalidArguments(key, fmt.Sprintf("%s[%d] must be an object", key, i))
		}
		out = append(out, m)
	}
	return out, true, nil
}

func floatMatrix(args map[string]any, key string) ([][]float64, bool, error) {
	raw, ok := tool.SliceArg(args, key)
	if !ok {
		return nil, false, nil
	}
	out := make([][]float64, 0, len(raw))
	for i, e := range raw {
		row, ok := e.([]any)
		if !ok {
			return nil, true, errmodel.InvalidArguments(key, fmt.Sprintf("%s[%d] must be an array of numbers", key, i))
		}
		vec := make([]float64, 0, len(row))
		for _, cell := range row {
			f, ok := asFloatValue(cell)
			if !ok {
				return nil, true, errmodel.InvalidArguments(key, fmt.Sprintf("%s[%d] must be an array of numbers", key, i))
			}
			vec = append(vec, f)
		}
		out = append(out, vec)
	}
	return out, true, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseJSONCell(v any) any {
	s, ok := v.(string)
	if !ok || s == "" {
		return v
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return s
	}
	return out
}

func asInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	if f, ok := asFloatValue(v); ok {
		return f
	}
	return 0
}

func asFloatValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
