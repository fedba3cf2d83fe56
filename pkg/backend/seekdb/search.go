package seekdb

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
	"github.com/oceanbase/mcp-oceanbase/pkg/tool"
)

// rrfK is the standard Reciprocal Rank Fusion constant.
const rrfK = 60

func (b *Backend) searchTools() []tool.Tool {
	return []tool.Tool{
		b.fullTextSearchTool(),
		b.hybridSearchTool(),
	}
}

// buildFullTextSQL renders a MATCH...AGAINST query. The score column uses
// the plain form without a mode so boolean queries still rank by relevance.
func buildFullTextSQL(table, column, expr, mode string, extra []string, limit int, returnScore bool) string {
	escaped := escapeString(expr)
	match := "MATCH (" + column + ")"

	cols := "*"
	if len(extra) > 0 {
		cols = strings.Join(extra, ", ")
	}
	if returnScore {
		cols += ", " + match + " AGAINST ('" + escaped + "') AS score"
	}

	against := " AGAINST ('" + escaped + "')"
	if mode == "boolean" {
		against = " AGAINST ('" + escaped + "' IN BOOLEAN MODE)"
	}

	query := "SELECT " + cols + " FROM " + table + " WHERE " + match + against
	if returnScore {
		query += " ORDER BY score DESC"
	}
	return query + fmt.Sprintf(" LIMIT %d", limit)
}

func (b *Backend) fullTextSearchTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "full_text_search",
			Description: "Full-text search on a table via MATCH...AGAINST. The column must carry a FULLTEXT INDEX; boolean mode supports +required and -excluded words.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"table_name":         tool.String("Table to search"),
				"column_name":        tool.String("Column with the FULLTEXT INDEX"),
				"search_expr":        tool.String("Search expression, e.g. '+london -westminster' in boolean mode"),
				"mode":               tool.StringEnum("Search mode, default boolean", "boolean", "natural"),
				"return_score":       tool.Boolean("Include the BM25 relevance score and order by it, default false"),
				"limit":              tool.Integer("Maximum number of results, default 10"),
				"additional_columns": tool.Array("Columns to select instead of *", tool.String("Column name")),
			}, "table_name", "column_name", "search_expr"),
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
			expr, _ := tool.StringArg(args, "search_expr")
			if strings.TrimSpace(expr) == "" {
				return nil, errmodel.InvalidArguments("search_expr", "search_expr cannot be empty")
			}
			mode := strings.ToLower(tool.StringOr(args, "mode", "boolean"))
			returnScore := tool.BoolOr(args, "return_score", false)
			limit := tool.IntOr(args, "limit", 10)
			if limit < 1 {
				limit = 1
			}
			extra, hasExtra := tool.StringSliceArg(args, "additional_columns")
			if hasExtra {
				if err := checkIdentifiers(extra, "Column name"); err != nil {
					return nil, err
				}
			}

			query := buildFullTextSQL(table, column, expr, mode, extra, limit, returnScore)
			env := b.runSQL(ctx, query)
			out := map[string]any{
				"table_name": table,
				"success":    env["success"],
				"sql":        query,
				"data":       env["data"],
				"error":      env["error"],
			}
			if envelopeOK(env) {
				n := 0
				if rows, ok := env["data"].([][]string); ok {
					n = len(rows)
				}
				out["message"] = fmt.Sprintf("Full-text search returned %d result(s)", n)
			}
			return out, nil
		},
	}
}

func (b *Backend) hybridSearchTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "hybrid_search",
			Description: "Hybrid search over a collection: a keyword leg and a vector similarity leg fused with Reciprocal Rank Fusion.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"collection_name":         tool.String("Collection to search"),
				"fulltext_search_keyword": tool.String("Keyword matched against document content"),
				"fulltext_where":          tool.Map("Metadata filter for the keyword leg"),
				"fulltext_n_results":      tool.Integer("Candidates from the keyword leg, default 10"),
				"knn_query_texts":         tool.Array("Text queries for the vector leg", tool.String("Query text")),
				"knn_where":               tool.Map("Metadata filter for the vector leg"),
				"knn_n_results":           tool.Integer("Candidates from the vector leg, default 10"),
				"n_results":               tool.Integer("Final results after fusion, default 5"),
				"include":                 tool.Array("Fields to include: documents, metadatas", tool.String("Field name")),
			}, "collection_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "collection_name", "Collection name")
			if err != nil {
				return nil, err
			}
			keyword := tool.StringOr(args, "fulltext_search_keyword", "")
			knnTexts, _ := tool.StringSliceArg(args, "knn_query_texts")
			if keyword == "" && len(knnTexts) == 0 {
				return nil, errmodel.InvalidArguments("fulltext_search_keyword",
					"at least one of fulltext_search_keyword or knn_query_texts must be provided")
			}
			fulltextN := tool.IntOr(args, "fulltext_n_results", 10)
			knnN := tool.IntOr(args, "knn_n_results", 10)
			nResults := tool.IntOr(args, "n_results", 5)
			if nResults < 1 {
				nResults = 1
			}
			include, err := includeSet(args, []string{"documents"})
			if err != nil {
				return nil, err
			}

			info, err := b.getCollection(ctx, name)
			if err != nil {
				return nil, err
			}

			var legs [][]string
			if keyword != "" {
				fulltextWhere, _ := tool.MapArg(args, "fulltext_where")
				ids, err := b.fulltextLeg(ctx, info, keyword, fulltextWhere, fulltextN)
				if err != nil {
					return nil, err
				}
				legs = append(legs, ids)
			}
			if len(knnTexts) > 0 {
				knnWhere, _ := tool.MapArg(args, "knn_where")
				ids, err := b.knnLeg(ctx, info, knnTexts, knnWhere, knnN)
				if err != nil {
					return nil, err
				}
				legs = append(legs, ids)
			}

			fused := rrfFuse(legs, rrfK, nResults)
			documents, metadatas, err := b.fetchByID(ctx, name, fused)
			if err != nil {
				return nil, err
			}

			data := map[string]any{
				"ids":       [][]string{fused},
				"documents": []any{},
				"metadatas": []any{},
			}
			if include["documents"] {
				data["documents"] = [][]any{documents}
			}
			if include["metadatas"] {
				data["metadatas"] = [][]any{metadatas}
			}
			return map[string]any{
				"collection_name": name,
				"success":         true,
				"data":            data,
				"message":         fmt.Sprintf("Hybrid search returned %d result(s)", len(fused)),
			}, nil
		},
	}
}

// fulltextLeg returns candidate ids whose document contains the keyword,
// ordered by id so the leg's ranking is stable.
func (b *Backend) fulltextLeg(ctx context.Context, info collectionInfo, keyword string, where map[string]any, limit int) ([]string, error) {
	if limit < 1 {
		limit = 1
	}
	conds := []string{"document LIKE ?"}
	params := []any{"%" + keyword + "%"}
	cond, condArgs, err := metadataFilter(where)
	if err != nil {
		return nil, err
	}
	if cond != "" {
		conds = append(conds, cond)
		params = append(params, condArgs...)
	}
	query := fmt.Sprintf("SELECT id FROM %s WHERE %s ORDER BY id LIMIT %d",
		info.name, strings.Join(conds, " AND "), limit)
	res, err := b.client.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	return idColumn(res.Rows), nil
}

// knnLeg ranks candidates by vector distance. Only the first query text
// drives the leg; additional texts would need one fusion input each.
func (b *Backend) knnLeg(ctx context.Context, info collectionInfo, texts []string, where map[string]any, limit int) ([]string, error) {
	if limit < 1 {
		limit = 1
	}
	vectors, err := b.embedDocuments(ctx, texts[:1], info)
	if err != nil {
		return nil, err
	}
	dist := distanceExpr(info.distance, "embedding", vectors[0])
	query := fmt.Sprintf("SELECT id FROM %s", info.name)
	cond, condArgs, err := metadataFilter(where)
	if err != nil {
		return nil, err
	}
	if cond != "" {
		query += " WHERE " + cond
	}
	query += fmt.Sprintf(" ORDER BY %s APPROXIMATE LIMIT %d", dist, limit)
	res, err := b.client.Query(ctx, query, condArgs...)
	if err != nil {
		return nil, err
	}
	return idColumn(res.Rows), nil
}

// fetchByID loads documents and metadata for the fused ids, preserving the
// fused order.
func (b *Backend) fetchByID(ctx context.Context, table string, ids []string) ([]any, []any, error) {
	documents := make([]any, len(ids))
	metadatas := make([]any, len(ids))
	if len(ids) == 0 {
		return documents, metadatas, nil
	}
	params := make([]any, len(ids))
	for i, id := range ids {
		params[i] = id
	}
	res, err := b.client.Query(ctx,
		fmt.Sprintf("SELECT id, document, metadata FROM %s WHERE id IN (%s)", table, placeholders(len(ids))),
		params...)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string][]any, len(res.Rows))
	for _, row := range res.Rows {
		byID[fmt.Sprint(row[0])] = row
	}
	for i, id := range ids {
		if row, ok := byID[id]; ok {
			documents[i] = row[1]
			metadatas[i] = parseJSONCell(row[2])
		}
	}
	return documents, metadatas, nil
}

// rrfFuse merges ranked id lists with Reciprocal Rank Fusion: each id
// scores the sum of 1/(k+rank) over the lists it appears in, using 1-based
// ranks. Ties break by id so the result is deterministic.
func rrfFuse(lists [][]string, k, limit int) []string {
	scores := make(map[string]float64)
	for _, list := range lists {
		for rank, id := range list {
			scores[id] += 1.0 / float64(k+rank+1)
		}
	}
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

func idColumn(rows [][]any) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, fmt.Sprint(row[0]))
	}
	return ids
}
