package obsql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"go.uber.org/zap"

	"github.com/oceanbase/mcp-oceanbase/pkg/config"
	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
	"github.com/oceanbase/mcp-oceanbase/pkg/tool"
)

const timeLayout = "2006-01-02 15:04:05"

// Backend exposes one OceanBase SQL endpoint as the oceanbase-mcp catalog.
type Backend struct {
	client *Client
	user   string
	logger *zap.Logger
	clock  func() time.Time
}

// New opens the connection pool for cfg. The endpoint is dialed lazily.
func New(cfg config.OceanBase, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := Open("oceanbase", Params{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Database: cfg.Database,
	}, logger)
	if err != nil {
		return nil, err
	}
	return &Backend{client: client, user: cfg.User, logger: logger, clock: time.Now}, nil
}

func (b *Backend) Close() error { return b.client.Close() }

// Tools returns the catalog for registration.
func (b *Backend) Tools() []tool.Tool {
	return []tool.Tool{
		b.executeSQLTool(),
		b.currentTimeTool(),
		b.serverNodesTool(),
		b.resourceCapacityTool(),
	}
}

func (b *Backend) executeSQLTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "execute_sql",
			Description: "Execute a SQL statement against the OceanBase database. Row-returning statements yield columns and rows; DML yields the affected row count.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"sql": tool.String("The SQL statement to execute"),
			}, "sql"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			query, _ := tool.StringArg(args, "sql")
			if ReturnsRows(query) {
				res, err := b.client.Query(ctx, query)
				if err != nil {
					return nil, err
				}
				return map[string]any{"columns": res.Columns, "rows": res.Rows}, nil
			}
			n, err := b.client.Exec(ctx, query)
			if err != nil {
				return nil, err
			}
			return map[string]any{"rows_affected": n}, nil
		},
	}
}

func (b *Backend) currentTimeTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "get_current_time",
			Description: "Get the current time of the OceanBase server, falling back to the host clock when the database is unreachable.",
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

func (b *Backend) serverNodesTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "list_server_nodes",
			Description: "List the server nodes of the OceanBase cluster from DBA_OB_SERVERS. Requires a sys tenant connection.",
			InputSchema: tool.Object(nil),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			if err := b.requireSysTenant("list_server_nodes"); err != nil {
				return nil, err
			}
			res, err := b.client.Query(ctx, "SELECT * FROM oceanbase.DBA_OB_SERVERS")
			if err != nil {
				return nil, err
			}
			return map[string]any{"columns": res.Columns, "rows": res.Rows}, nil
		},
	}
}

func (b *Backend) resourceCapacityTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "list_resource_capacity",
			Description: "Show per-server resource capacity and usage of the OceanBase cluster from GV$OB_SERVERS. Requires a sys tenant connection.",
			InputSchema: tool.Object(nil),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			if err := b.requireSysTenant("list_resource_capacity"); err != nil {
				return nil, err
			}
			res, err := b.client.Query(ctx, "SELECT * FROM oceanbase.GV$OB_SERVERS")
			if err != nil {
				return nil, err
			}
			return map[string]any{"columns": res.Columns, "rows": res.Rows}, nil
		},
	}
}

func (b *Backend) requireSysTenant(name string) error {
	tenant := TenantOf(b.user)
	if tenant != "sys" {
		return errmodel.Execution(
			fmt.Sprintf("%s requires a sys tenant connection, current tenant is %q", name, tenant),
			map[string]any{"required_tenant": "sys", "tenant": tenant},
		)
	}
	return nil
}

// TenantOf extracts the tenant from a user string of the form
// user@tenant[#cluster]. A bare user name connects to the sys tenant.
func TenantOf(user string) string {
	_, after, found := strings.Cut(user, "@")
	if !found {
		return "sys"
	}
	tenant, _, _ := strings.Cut(after, "#")
	if tenant == "" {
		return "sys"
	}
	return tenant
}

// ReturnsRows reports whether the statement produces a result set rather
// than an affected-row count. Exported because the seekdb catalog routes
// its raw SQL through the same classifier.
func ReturnsRows(query string) bool {
	fields := strings.Fields(strings.TrimSpace(query))
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "WITH":
		return true
	default:
		return false
	}
}
