package ocp

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
	"github.com/oceanbase/mcp-oceanbase/pkg/tool"
)

type paramKind int

const (
	paramString paramKind = iota
	paramInt
	paramBool
)

// param maps one tool argument onto the wire: into the path when the
// endpoint template carries a {name} placeholder, into the query otherwise.
type param struct {
	name     string // tool argument name
	wire     string // query parameter name, camelCase
	kind     paramKind
	required bool
	def      string   // value sent when the argument is absent
	enum     []string // allowed rendered values when non-empty
	desc     string
}

// endpoint declares one table-driven tool.
type endpoint struct {
	name   string
	desc   string
	method string
	path   string
	params []param
}

func (p param) schema() *jsonschema.Schema {
	switch p.kind {
	case paramInt:
		return tool.Integer(p.desc)
	case paramBool:
		return tool.Boolean(p.desc)
	default:
		if len(p.enum) > 0 {
			return tool.StringEnum(p.desc, p.enum...)
		}
		return tool.String(p.desc)
	}
}

// render resolves one argument to its wire form. ok reports whether a
// value, argument or default, is available. Booleans render lowered,
// matching what the API expects.
func (p param) render(args map[string]any) (string, bool, error) {
	var v string
	var ok bool
	switch p.kind {
	case paramInt:
		if n, has := tool.IntArg(args, p.name); has {
			v, ok = strconv.Itoa(n), true
		}
	case paramBool:
		if b, has := tool.BoolArg(args, p.name); has {
			v, ok = strconv.FormatBool(b), true
		}
	default:
		if s, has := tool.StringArg(args, p.name); has && s != "" {
			v, ok = s, true
		}
	}
	if !ok && p.def != "" {
		v, ok = p.def, true
	}
	if !ok {
		if p.required {
			return "", false, errmodel.InvalidArguments(p.name, p.name+" is required")
		}
		return "", false, nil
	}
	if len(p.enum) > 0 && !slices.Contains(p.enum, v) {
		return "", false, errmodel.InvalidArguments(p.name, fmt.Sprintf("%s must be one of %s", p.name, strings.Join(p.enum, ", ")))
	}
	return v, true, nil
}

func (ep endpoint) schema() *jsonschema.Schema {
	props := make(map[string]*jsonschema.Schema, len(ep.params))
	var required []string
	for _, p := range ep.params {
		props[p.name] = p.schema()
		if p.required {
			required = append(required, p.name)
		}
	}
	return tool.Object(props, required...)
}

func (b *Backend) endpointTool(ep endpoint) tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{Name: ep.name, Description: ep.desc, InputSchema: ep.schema()},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			path := ep.path
			query := url.Values{}
			for _, p := range ep.params {
				v, ok, err := p.render(args)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
				if ph := "{" + p.name + "}"; strings.Contains(path, ph) {
					path = strings.ReplaceAll(path, ph, v)
				} else {
					query.Set(p.wire, v)
				}
			}
			return b.client.Do(ctx, ep.method, path, query, nil)
		},
	}
}

var (
	pageParam = param{name: "page", wire: "page", kind: paramInt, def: "1", desc: "Page number, starting at 1"}
	sizeParam = param{name: "size", wire: "size", kind: paramInt, def: "10", desc: "Page size"}
	sortParam = param{name: "sort", wire: "sort", desc: "Sort expression, e.g. name,asc"}

	clusterIDParam = param{name: "cluster_id", kind: paramInt, required: true, desc: "OceanBase cluster id"}
	tenantIDParam  = param{name: "tenant_id", kind: paramInt, required: true, desc: "Tenant id"}

	inspectionObjectTypes = []string{"OB_CLUSTER", "OB_TENANT", "HOST", "OB_PROXY"}
	inspectionTags        = []string{"1", "2", "3", "4"}
)

// endpoints is the table behind the plain read/query catalog. The three
// tools with bespoke behavior, the two parameter setters and the binary
// report download, live in ocp.go.
func endpoints() []endpoint {
	return []endpoint{
		{
			name: "list_oceanbase_clusters", method: "GET", path: "/api/v2/ob/clusters",
			desc: "List the OceanBase clusters managed by OCP, filterable by name keyword and status.",
			params: []param{
				pageParam, sizeParam, sortParam,
				{name: "name", wire: "name", desc: "Cluster name keyword"},
				{name: "status", wire: "status", desc: "Cluster status filter, e.g. RUNNING"},
			},
		},
		{
			name: "get_oceanbase_cluster_zones", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/zones",
			desc:   "Get the zone list of an OceanBase cluster.",
			params: []param{clusterIDParam},
		},
		{
			name: "get_oceanbase_cluster_servers", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/servers",
			desc: "Get the OBServer list of an OceanBase cluster.",
			params: []param{
				clusterIDParam,
				{name: "region_name", wire: "regionName", desc: "Region to filter by"},
				{name: "idc_name", wire: "idcName", desc: "IDC to filter by"},
			},
		},
		{
			name: "get_oceanbase_zone_servers", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/zones/{zone_name}/servers",
			desc: "Get the OBServer list of one zone.",
			params: []param{
				clusterIDParam,
				{name: "zone_name", required: true, desc: "Zone name"},
			},
		},
		{
			name: "get_oceanbase_cluster_stats", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/stats",
			desc:   "Get usage statistics of an OceanBase cluster.",
			params: []param{clusterIDParam},
		},
		{
			name: "get_oceanbase_cluster_server_stats", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/serverStats",
			desc:   "Get per-server usage statistics of an OceanBase cluster.",
			params: []param{clusterIDParam},
		},
		{
			name: "get_oceanbase_cluster_units", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/units",
			desc:   "Get the resource units of an OceanBase cluster.",
			params: []param{clusterIDParam},
		},
		{
			name: "get_oceanbase_cluster_tenants", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/tenants",
			desc: "List the tenants of one OceanBase cluster.",
			params: []param{
				clusterIDParam, pageParam, sizeParam, sortParam,
				{name: "name", wire: "name", desc: "Tenant name keyword"},
				{name: "mode", wire: "mode", desc: "Tenant mode, MYSQL or ORACLE"},
				{name: "status", wire: "status", desc: "Tenant status filter"},
			},
		},
		{
			name: "get_all_oceanbase_tenants", method: "GET", path: "/api/v2/ob/tenants",
			desc: "List tenants across every cluster managed by OCP.",
			params: []param{
				pageParam, sizeParam, sortParam,
				{name: "name", wire: "name", desc: "Tenant name keyword"},
				{name: "mode", wire: "mode", desc: "Tenant mode, MYSQL or ORACLE"},
				{name: "status", wire: "status", desc: "Tenant status filter"},
			},
		},
		{
			name: "get_oceanbase_tenant_detail", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/tenants/{tenant_id}",
			desc:   "Get the detail of one tenant.",
			params: []param{clusterIDParam, tenantIDParam},
		},
		{
			name: "get_oceanbase_tenant_units", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/tenants/{tenant_id}/units",
			desc: "Get the resource units of one tenant.",
			params: []param{
				clusterIDParam, tenantIDParam,
				{name: "zone_name", wire: "zoneName", desc: "Zone to filter by"},
			},
		},
		{
			name: "get_oceanbase_tenant_parameters", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/tenants/{tenant_id}/parameters",
			desc:   "Get the parameters of one tenant.",
			params: []param{clusterIDParam, tenantIDParam},
		},
		{
			name: "get_oceanbase_cluster_parameters", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/parameters",
			desc:   "Get the parameters of an OceanBase cluster.",
			params: []param{clusterIDParam},
		},
		{
			name: "list_obproxy_clusters", method: "GET", path: "/api/v2/obproxy/clusters",
			desc:   "List the OBProxy clusters managed by OCP.",
			params: []param{pageParam, sizeParam},
		},
		{
			name: "get_oceanbase_obproxy_cluster_detail", method: "GET", path: "/api/v2/obproxy/clusters/{cluster_id}",
			desc:   "Get the detail of one OBProxy cluster.",
			params: []param{{name: "cluster_id", kind: paramInt, required: true, desc: "OBProxy cluster id"}},
		},
		{
			name: "get_oceanbase_obproxy_cluster_parameters", method: "GET", path: "/api/v2/obproxy/clusters/{cluster_id}/parameters",
			desc:   "Get the parameters of one OBProxy cluster.",
			params: []param{{name: "cluster_id", kind: paramInt, required: true, desc: "OBProxy cluster id"}},
		},
		{
			name: "get_oceanbase_tenant_databases", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/tenants/{tenant_id}/databases",
			desc:   "List the databases of one tenant.",
			params: []param{clusterIDParam, tenantIDParam},
		},
		{
			name: "get_oceanbase_tenant_users", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/tenants/{tenant_id}/users",
			desc:   "List the users of one tenant.",
			params: []param{clusterIDParam, tenantIDParam},
		},
		{
			name: "get_oceanbase_tenant_user_detail", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/tenants/{tenant_id}/users/{username}",
			desc: "Get one tenant user, including granted roles and privileges.",
			params: []param{
				clusterIDParam, tenantIDParam,
				{name: "username", required: true, desc: "User name"},
				{name: "host_name", wire: "hostName", desc: "Host the user connects from"},
			},
		},
		{
			name: "get_oceanbase_tenant_roles", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/tenants/{tenant_id}/roles",
			desc:   "List the roles of one tenant.",
			params: []param{clusterIDParam, tenantIDParam},
		},
		{
			name: "get_oceanbase_tenant_role_detail", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/tenants/{tenant_id}/roles/{role_name}",
			desc: "Get one tenant role, including granted privileges.",
			params: []param{
				clusterIDParam, tenantIDParam,
				{name: "role_name", required: true, desc: "Role name"},
			},
		},
		{
			name: "get_oceanbase_tenant_objects", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/tenants/{tenant_id}/objects",
			desc:   "List the schema objects of one tenant.",
			params: []param{clusterIDParam, tenantIDParam},
		},
		{
			name: "get_oceanbase_metric_groups", method: "GET", path: "/api/v2/monitor/metricGroups",
			desc: "List the metric groups OCP can chart, by type and scope.",
			params: []param{
				{name: "type", wire: "type", required: true, desc: "Metric type, TOP or NORMAL"},
				{name: "scope", wire: "scope", required: true, desc: "Metric scope, e.g. CLUSTER or TENANT"},
				pageParam, sizeParam, sortParam,
				{name: "target", wire: "target", desc: "Target to filter by"},
				{name: "target_id", wire: "targetId", kind: paramInt, desc: "Target id to filter by"},
			},
		},
		{
			name: "get_oceanbase_metric_data_with_label", method: "GET", path: "/api/v2/monitor/metricsWithLabel",
			desc: "Query metric series for the given labels over a time range.",
			params: []param{
				{name: "start_time", wire: "startTime", required: true, desc: "Start time, e.g. 2020-02-16T05:32:16+08:00"},
				{name: "end_time", wire: "endTime", required: true, desc: "End time"},
				{name: "metrics", wire: "metrics", required: true, desc: "Comma-separated metric names"},
				{name: "group_by", wire: "groupBy", required: true, desc: "Comma-separated grouping labels"},
				{name: "interval", wire: "interval", kind: paramInt, required: true, desc: "Sampling interval in seconds"},
				{name: "labels", wire: "labels", required: true, desc: "Label filter, e.g. app:OB,obregion=cluster1"},
				{name: "min_step", wire: "minStep", kind: paramInt, desc: "Minimum sampling step"},
				{name: "max_points", wire: "maxPoints", kind: paramInt, desc: "Maximum number of points"},
			},
		},
		{
			name: "get_oceanbase_alarms", method: "GET", path: "/api/v2/alarm/alarms",
			desc: "List alarm events, filterable by scope, level, status and time window.",
			params: []param{
				pageParam, sizeParam,
				{name: "app_type", wire: "appType", desc: "Application type, OB or OCP"},
				{name: "scope", wire: "scope", desc: "Alarm scope"},
				{name: "level", wire: "level", kind: paramInt, desc: "Alarm level, 1 to 5"},
				{name: "status", wire: "status", desc: "Alarm status filter"},
				{name: "active_at_start", wire: "activeAtStart", desc: "Active window start time"},
				{name: "active_at_end", wire: "activeAtEnd", desc: "Active window end time"},
				{name: "is_subscribed_by_me", wire: "isSubscribedByMe", kind: paramBool, desc: "Only alarms the caller subscribed to"},
				{name: "keyword", wire: "keyword", desc: "Keyword filter"},
			},
		},
		{
			name: "get_oceanbase_alarm_detail", method: "GET", path: "/api/v2/alarm/alarms/{alarm_id}",
			desc:   "Get one alarm event.",
			params: []param{{name: "alarm_id", kind: paramInt, required: true, desc: "Alarm id"}},
		},
		{
			name: "get_oceanbase_inspection_tasks", method: "GET", path: "/api/v2/inspection/task",
			desc: "List inspection tasks.",
			params: []param{
				{name: "inspection_object_types", wire: "inspectionObjectTypes", desc: "Comma-separated object types"},
				{name: "tags", wire: "tags", desc: "Comma-separated inspection tags"},
				{name: "task_states", wire: "taskStates", desc: "Comma-separated task states"},
				{name: "name", wire: "name", desc: "Task name keyword"},
			},
		},
		{
			name: "get_oceanbase_inspection_overview", method: "GET", path: "/api/v2/inspection/overview",
			desc: "Get the inspection overview of the managed objects.",
			params: []param{
				{name: "object_ids", wire: "objectIds", desc: "Comma-separated object ids"},
				{name: "inspection_object_type", wire: "inspectionObjectType", desc: "Object type to filter by"},
				{name: "schedule_states", wire: "scheduleStates", desc: "Comma-separated schedule states"},
				{name: "name", wire: "name", desc: "Object name keyword"},
				{name: "parent_name", wire: "parentName", desc: "Parent object name keyword"},
			},
		},
		{
			name: "get_oceanbase_inspection_report", method: "GET", path: "/api/v2/inspection/report/{report_id}",
			desc:   "Get one inspection report.",
			params: []param{{name: "report_id", kind: paramInt, required: true, desc: "Inspection report id"}},
		},
		{
			name: "run_oceanbase_inspection", method: "POST", path: "/api/v2/inspection/run",
			desc: "Trigger an inspection run for the given objects.",
			params: []param{
				{name: "inspection_object_type", wire: "inspectionObjectType", required: true, enum: inspectionObjectTypes, desc: "Object type to inspect"},
				{name: "object_ids", wire: "objectIds", required: true, desc: "Comma-separated object ids"},
				{name: "tag", wire: "tag", kind: paramInt, required: true, enum: inspectionTags, desc: "Inspection tag, 1 basic, 2 deep, 3 performance, 4 custom"},
			},
		},
		{
			name: "get_oceanbase_inspection_item_last_result", method: "GET", path: "/api/v2/inspection/report/info/item/{item_id}",
			desc: "Get the latest result of one inspection item.",
			params: []param{
				{name: "item_id", kind: paramInt, required: true, desc: "Inspection item id"},
				{name: "tag_id", wire: "tagId", kind: paramInt, required: true, enum: inspectionTags, desc: "Inspection tag id"},
				{name: "object_type", wire: "objectType", required: true, enum: inspectionObjectTypes, desc: "Object type"},
				{name: "object_id", wire: "objectId", kind: paramInt, desc: "Object id to filter by"},
			},
		},
		{
			name: "get_oceanbase_inspection_report_info", method: "GET", path: "/api/v2/inspection/report/info",
			desc: "Get inspection report summaries by tag and object type.",
			params: []param{
				{name: "tag_id", wire: "tagId", kind: paramInt, required: true, enum: inspectionTags, desc: "Inspection tag id"},
				{name: "object_type", wire: "objectType", required: true, enum: inspectionObjectTypes, desc: "Object type"},
				{name: "object_id", wire: "objectId", kind: paramInt, desc: "Object id to filter by"},
			},
		},
		{
			name: "get_oceanbase_tenant_top_sql", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/tenants/{tenant_id}/topSql",
			desc: "Query the top SQL statistics of one tenant over a time range.",
			params: []param{
				clusterIDParam, tenantIDParam,
				{name: "start_time", wire: "startTime", required: true, desc: "Start time, e.g. 2020-02-16T05:32:16+08:00"},
				{name: "end_time", wire: "endTime", required: true, desc: "End time"},
				{name: "server_id", wire: "serverId", kind: paramInt, desc: "Restrict to one OBServer"},
				{name: "inner", wire: "inner", kind: paramBool, desc: "Include inner SQL"},
				{name: "sql_text", wire: "sqlText", desc: "SQL text keyword"},
				{name: "search_attr", wire: "searchAttr", desc: "Attribute to search on"},
				{name: "search_op", wire: "searchOp", desc: "Search operator"},
				{name: "search_val", wire: "searchVal", desc: "Search value"},
			},
		},
		{
			name: "get_oceanbase_sql_trends", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/tenants/{tenant_id}/sqls/{sql_id}/trends",
			desc: "Query the performance trend of one SQL over a time range.",
			params: []param{
				clusterIDParam, tenantIDParam,
				{name: "sql_id", required: true, desc: "SQL id"},
				{name: "start_time", wire: "startTime", required: true, desc: "Start time"},
				{name: "end_time", wire: "endTime", required: true, desc: "End time"},
				{name: "server_id", wire: "serverId", kind: paramInt, desc: "Restrict to one OBServer"},
				{name: "db_name", wire: "dbName", desc: "Restrict to one database"},
			},
		},
		{
			name: "get_oceanbase_sql_text", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/tenants/{tenant_id}/sqls/{sql_id}/text",
			desc: "Query the full text of one SQL.",
			params: []param{
				clusterIDParam, tenantIDParam,
				{name: "sql_id", required: true, desc: "SQL id"},
				{name: "start_time", wire: "startTime", required: true, desc: "Start time"},
				{name: "end_time", wire: "endTime", required: true, desc: "End time"},
			},
		},
		{
			name: "get_oceanbase_tenant_slow_sql", method: "GET", path: "/api/v2/ob/clusters/{cluster_id}/tenants/{tenant_id}/slowSql",
			desc: "Query the slow SQL of one tenant over a time range.",
			params: []param{
				clusterIDParam, tenantIDParam,
				{name: "start_time", wire: "startTime", required: true, desc: "Start time"},
				{name: "end_time", wire: "endTime", required: true, desc: "End time"},
				{name: "server_id", wire: "serverId", kind: paramInt, desc: "Restrict to one OBServer"},
				{name: "inner", wire: "inner", kind: paramBool, desc: "Include inner SQL"},
				{name: "sql_text", wire: "sqlText", desc: "SQL text keyword"},
				{name: "filter_expression", wire: "filterExpression", desc: "Filter expression"},
				{name: "limit", wire: "limit", kind: paramInt, desc: "Maximum number of rows"},
				{name: "sql_text_length", wire: "sqlTextLength", kind: paramInt, desc: "Truncate SQL text to this length"},
			},
		},
		{
			name: "create_oceanbase_performance_report", method: "POST", path: "/api/v2/ob/clusters/{cluster_id}/performance/workload/reports",
			desc: "Generate a performance report between two workload snapshots.",
			params: []param{
				clusterIDParam,
				{name: "name", wire: "name", required: true, desc: "Report name"},
				{name: "start_snapshot_id", wire: "startSnapshotId", kind: paramInt, required: true, desc: "Start snapshot id"},
				{name: "end_snapshot_id", wire: "endSnapshotId", kind: paramInt, required: true, desc: "End snapshot id"},
			},
		},
	}
}
