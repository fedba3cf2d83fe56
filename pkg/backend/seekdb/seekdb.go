// Package seekdb exposes a vector-enabled OceanBase (seekdb) instance as
// MCP tools: raw SQL, chroma-style collections over plain tables, full-text
// and hybrid search, and the DBMS_AI_SERVICE model surface.
package seekdb

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"go.uber.org/zap"

	"github.com/oceanbase/mcp-oceanbase/pkg/adapters/embedding"
	"github.com/oceanbase/mcp-oceanbase/pkg/backend/obsql"
	"github.com/oceanbase/mcp-oceanbase/pkg/config"
	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
	"github.com/oceanbase/mcp-oceanbase/pkg/tool"
)

const timeLayout = "2006-01-02 15:04:05"

// identRe matches the names this package interpolates into SQL unquoted:
// tables, columns, indexes, collections and AI model names.
var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Backend serves the seekdb catalog over the shared SQL core plus an
// embedding provider for collection text.
type Backend struct {
	client   *obsql.Client
	embedder embedding.Embedder
	logger   *zap.Logger
	clock    func() time.Time
}

// New opens the connection pool and embedding provider. The database is
// dialed lazily on first use.
func New(ctx context.Context, cfg config.SeekDB, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := obsql.Open("seekdb", obsql.Params{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Database: cfg.Database,
	}, logger)
	if err != nil {
		return nil, err
	}
	embedder, err := embedding.FromConfig(ctx, cfg.Embedding)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &Backend{
		client:   client,
		embedder: embedder,
		logger:   logger.Named("seekdb"),
		clock:    time.Now,
	}, nil
}

func (b *Backend) Close() error { return b.client.Close() }

// Tools returns the full seekdb catalog.
func (b *Backend) Tools() []tool.Tool {
	tools := []tool.Tool{
		b.executeSQLTool(),
		b.currentTimeTool(),
	}
	tools = append(tools, b.collectionTools()...)
	tools = append(tools, b.searchTools()...)
	tools = append(tools, b.aiTools()...)
	return tools
}

// runSQL executes one raw statement and reports the outcome in the shared
// envelope: {"sql", "success", "data", "error"}. Execution failures are
// embedded as error text rather than returned, so the raw-SQL tools always
// hand the model something it can read.
func (b *Backend) runSQL(ctx context.Context, query string) map[string]any {
	result := map[string]any{"sql": query, "success": false, "data": nil, "error": nil}
	if obsql.ReturnsRows(query) {
		qr, err := b.client.Query(ctx, query)
		if err != nil {
			result["error"] = "[Error]: " + err.Error()
			b.logger.Error("sql failed", zap.String("sql", query), zap.Error(err))
			return result
		}
		data := make([][]string, 0, len(qr.Rows))
		for _, row := range qr.Rows {
			cells := make([]string, len(row))
			for i, cell := range row {
				cells[i] = renderCell(cell)
			}
			data = append(data, cells)
		}
		result["data"] = data
		result["success"] = true
		return result
	}
	if _, err := b.client.Exec(ctx, query); err != nil {
		result["error"] = "[Error]: " + err.Error()
		b.logger.Error("sql failed", zap.String("sql", query), zap.Error(err))
		return result
	}
	result["success"] = true
	return result
}

func renderCell(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}

// envelopeOK reports whether a runSQL envelope carries a successful result.
func envelopeOK(env map[string]any) bool {
	ok, _ := env["success"].(bool)
	return ok
}

// firstCell pulls data[0][0] out of a runSQL envelope.
func firstCell(env map[string]any) (string, bool) {
	data, ok := env["data"].([][]string)
	if !ok || len(data) == 0 || len(data[0]) == 0 {
		return "", false
	}
	return data[0][0], true
}

func (b *Backend) executeSQLTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "execute_sql",
			Description: "Execute a SQL statement on seekdb. Returns the statement, a success flag, string-rendered rows and any error text.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"sql": tool.String("The SQL statement to execute"),
			}, "sql"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			query, ok := tool.StringArg(args, "sql")
			if !ok || strings.TrimSpace(query) == "" {
				return nil, errmodel.InvalidArguments("sql", "sql cannot be empty")
			}
			return b.runSQL(ctx, query), nil
		},
	}
}

func (b *Backend) currentTimeTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "get_current_time",
			Description: "Get the current time from seekdb, falling back to the host clock when the database is unreachable.",
			InputSchema: tool.Object(nil),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			res, err := b.client.Query(ctx, "SELECT NOW()")
			if err == nil && len(res.Rows) == 1 && len(res.Rows[0]) == 1 {
				return map[string]any{"current_time": fmt.Sprint(res.Rows[0][0])}, nil
			}
			b.logger.Warn("falling back to host clock", zap.Error(err))
			return map[string]any{"current_time": b.clock().Format(timeLayout)}, nil
		},
	}
}

// requireIdentifier validates an unquoted SQL name argument: letters,
// digits, underscore, at most 64 characters.
func requireIdentifier(args map[string]any, key, field string) (string, error) {
	v, _ := tool.StringArg(args, key)
	return checkIdentifier(v, field)
}

func checkIdentifier(v, field string) (string, error) {
	if strings.TrimSpace(v) == "" {
		return "", errmodel.InvalidArguments(field, fmt.Sprintf("%s cannot be empty", field))
	}
	if len(v) > 64 {
		return "", errmodel.InvalidArguments(field, fmt.Sprintf("%s length cannot exceed 64 characters", field))
	}
	if !identRe.MatchString(v) {
		return "", errmodel.InvalidArguments(field, fmt.Sprintf("%s contains invalid characters", field))
	}
	return v, nil
}

func checkIdentifiers(names []string, field string) error {
	for _, n := range names {
		if _, err := checkIdentifier(n, field); err != nil {
			return err
		}
	}
	return nil
}

// escapeString doubles single quotes for embedding in a SQL string literal.
func escapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// vectorLiteral renders an embedding as the '[v1,v2,...]' literal seekdb's
// vector functions accept.
func vectorLiteral(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func floatsLiteral(vec []float64) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
