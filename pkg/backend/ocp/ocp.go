package ocp

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"
	"go.uber.org/zap"

	"github.com/oceanbase/mcp-oceanbase/pkg/config"
	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
	"github.com/oceanbase/mcp-oceanbase/pkg/tool"
)

// Backend serves the OCP management API tool catalog.
type Backend struct {
	client *Client
}

// New builds the backend from the OCP access configuration.
func New(cfg config.OCP, logger *zap.Logger) (*Backend, error) {
	client, err := NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Backend{client: client}, nil
}

// Tools returns the full OCP catalog: the table-driven read endpoints
// plus the parameter setters and the report download.
func (b *Backend) Tools() []tool.Tool {
	eps := endpoints()
	tools := make([]tool.Tool, 0, len(eps)+3)
	for _, ep := range eps {
		tools = append(tools, b.endpointTool(ep))
	}
	tools = append(tools,
		b.setClusterParametersTool(),
		b.setTenantParametersTool(),
		b.performanceReportTool(),
	)
	return tools
}

func parameterItemsSchema(desc string) *jsonschema.Schema {
	return tool.Array(desc, tool.Map("One parameter entry"))
}

// parameterItems validates the parameters argument of the two setters and
// normalizes each entry to the wire shape. fields lists the keys every
// entry must carry; name-like fields are stringified, value passes
// through untouched so numeric parameters keep their type.
func parameterItems(args map[string]any, fields ...string) ([]map[string]any, error) {
	raw, _ := tool.SliceArg(args, "parameters")
	if len(raw) == 0 {
		return nil, errmodel.InvalidArguments("parameters", "parameters list cannot be empty")
	}
	items := make([]map[string]any, 0, len(raw))
	for i, e := range raw {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, errmodel.InvalidArguments("parameters", fmt.Sprintf("parameters[%d] must be an object", i))
		}
		item := make(map[string]any, len(fields))
		for _, f := range fields {
			v, ok := m[f]
			if !ok || v == nil {
				return nil, errmodel.InvalidArguments("parameters", fmt.Sprintf("parameters[%d] is missing required field '%s'", i, f))
			}
			if f == "value" {
				item[f] = v
			} else {
				item[f] = fmt.Sprint(v)
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (b *Backend) setClusterParametersTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "set_oceanbase_cluster_parameters",
			Description: "Update parameters of an OceanBase cluster. Each entry needs name and value.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"cluster_id": tool.Integer("OceanBase cluster id"),
				"parameters": parameterItemsSchema("Parameter entries, each with name and value"),
			}, "cluster_id", "parameters"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			clusterID, ok := tool.IntArg(args, "cluster_id")
			if !ok {
				return nil, errmodel.InvalidArguments("cluster_id", "cluster_id is required")
			}
			items, err := parameterItems(args, "name", "value")
			if err != nil {
				return nil, err
			}
			path := fmt.Sprintf("/api/v2/ob/clusters/%d/parameters", clusterID)
			return b.client.Do(ctx, "PUT", path, nil, items)
		},
	}
}

func (b *Backend) setTenantParametersTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "set_oceanbase_tenant_parameters",
			Description: "Update parameters of one tenant. Each entry needs name, value and parameterType (OB_TENANT_PARAMETER or OB_SYSTEM_VARIABLE).",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"cluster_id": tool.Integer("OceanBase cluster id"),
				"tenant_id":  tool.Integer("Tenant id"),
				"parameters": parameterItemsSchema("Parameter entries, each with name, value and parameterType"),
			}, "cluster_id", "tenant_id", "parameters"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			clusterID, ok := tool.IntArg(args, "cluster_id")
			if !ok {
				return nil, errmodel.InvalidArguments("cluster_id", "cluster_id is required")
			}
			tenantID, ok := tool.IntArg(args, "tenant_id")
			if !ok {
				return nil, errmodel.InvalidArguments("tenant_id", "tenant_id is required")
			}
			items, err := parameterItems(args, "name", "value", "parameterType")
			if err != nil {
				return nil, err
			}
			path := fmt.Sprintf("/api/v2/ob/clusters/%d/tenants/%d/parameters", clusterID, tenantID)
			return b.client.Do(ctx, "PUT", path, nil, items)
		},
	}
}

func (b *Backend) performanceReportTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "get_oceanbase_performance_report",
			Description: "Download a generated performance report as an HTML file and return where it was saved.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"cluster_id": tool.Integer("OceanBase cluster id"),
				"report_id":  tool.Integer("Report id returned by create_oceanbase_performance_report"),
				"directory":  tool.String("Directory to save the report into, defaults to the system temp dir"),
			}, "cluster_id", "report_id"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			clusterID, ok := tool.IntArg(args, "cluster_id")
			if !ok {
				return nil, errmodel.InvalidArguments("cluster_id", "cluster_id is required")
			}
			reportID, ok := tool.IntArg(args, "report_id")
			if !ok {
				return nil, errmodel.InvalidArguments("report_id", "report_id is required")
			}
			dir := tool.StringOr(args, "directory", "")
			if dir == "" {
				dir = os.TempDir()
			}

			path := fmt.Sprintf("/api/v2/ob/clusters/%d/performance/workload/reports/%d", clusterID, reportID)
			query := url.Values{}
			query.Set("id", strconv.Itoa(clusterID))
			query.Set("reportId", strconv.Itoa(reportID))

			dest := filepath.Join(dir, fmt.Sprintf("performance_report_%d_%d.html", clusterID, reportID))
			if err := b.client.Download(ctx, path, query, dest); err != nil {
				return nil, err
			}
			return map[string]any{
				"success":     true,
				"cluster_id":  clusterID,
				"report_id":   reportID,
				"output_file": dest,
				"message":     "HTML report saved successfully to " + dest,
			}, nil
		},
	}
}
