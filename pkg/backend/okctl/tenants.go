package okctl

import (
	"context"
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
	"github.com/oceanbase/mcp-oceanbase/pkg/tool"
)

func (b *Backend) tenantTools() []tool.Tool {
	return []tool.Tool{
		b.listTenantsTool(),
		b.createTenantTool(),
		b.deleteTenantTool(),
		b.activateTenantTool(),
		b.changeTenantPasswordTool(),
		b.replayTenantLogTool(),
		b.scaleTenantTool(),
		b.showTenantTool(),
		b.switchoverTenantTool(),
		b.updateTenantTool(),
		b.upgradeTenantTool(),
	}
}

func (b *Backend) listTenantsTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "list_tenants",
			Description: "List the tenants in a namespace.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"namespace": tool.String("Namespace to list tenants from (default \"default\")"),
			}),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			ns, err := namespaceArg(args)
			if err != nil {
				return nil, err
			}
			out, err := b.runner.Run(ctx, "okctl", "tenant", "list", "-p", ns)
			if err != nil {
				return nil, err
			}
			if isBlank(out) {
				out = "no tenants found"
			}
			return map[string]any{"output": out}, nil
		},
	}
}

func (b *Backend) createTenantTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "create_tenant",
			Description: "Create a tenant in a cluster and wait until it reports running. This can take several minutes.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"tenant_name":             tool.String("Name for the new tenant"),
				"cluster":                 tool.String("Cluster to create the tenant in"),
				"namespace":               tool.String("Namespace the cluster lives in (default \"default\")"),
				"priority":                tool.String("Zone priority as zone=priority pairs, e.g. zone1=1,zone2=2"),
				"archive_source":          tool.String("Archive source for restores"),
				"bak_data_source":         tool.String("Backup data source for restores"),
				"bak_encryption_password": tool.String("Backup encryption password"),
				"charset":                 tool.String("Tenant charset (default utf8mb4)"),
				"connect_white_list":      tool.String("Connection whitelist (default %)"),
				"cpu_count":               tool.String("CPU count per unit (default 1)"),
				"from_tenant":             tool.String("Source tenant when creating a standby"),
				"iops_weight":             tool.Integer("IOPS weight per unit (default 1)"),
				"log_disk_size":           tool.String("Log disk size per unit (default 4Gi)"),
				"max_iops":                tool.Integer("Max IOPS per unit (default 1024)"),
				"memory_size":             tool.String("Memory size per unit (default 2Gi)"),
				"min_iops":                tool.Integer("Min IOPS per unit (default 1024)"),
				"oss_access_id":           tool.String("OSS access id for archives"),
				"oss_access_key":          tool.String("OSS access key for archives"),
				"restore":                 tool.Boolean("Restore the tenant from a backup"),
				"restore_type":            tool.String("Restore type, OSS or NFS (default OSS)"),
				"root_password":           tool.String("Tenant root password, generated when omitted"),
				"tenant_name_override":    tool.String("Tenant name inside OceanBase, defaults to the k8s name"),
				"unit_number":             tool.Integer("Unit count (default 1)"),
				"unlimited":               tool.Boolean("Replay logs without a time bound"),
				"until_timestamp":         tool.String("Replay logs up to this timestamp"),
			}, "tenant_name", "cluster", "priority"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "tenant_name", "Tenant name")
			if err != nil {
				return nil, err
			}
			cluster, err := requireIdentifier(args, "cluster", "Cluster name")
			if err != nil {
				return nil, err
			}
			ns, err := namespaceArg(args)
			if err != nil {
				return nil, err
			}
			priority, err := requireNonEmpty(args, "priority", ", e.g. zone1=1,zone2=2")
			if err != nil {
				return nil, err
			}
			from, _ := tool.StringArg(args, "from_tenant")
			rootPassword, _ := tool.StringArg(args, "root_password")
			if from != "" && rootPassword == "" {
				return nil, errmodel.InvalidArguments("root_password", "root_password is required when creating a standby tenant from from_tenant")
			}
			argv := []string{"tenant", "create", name, "--cluster=" + cluster, "-n", ns, "--priority", priority}
			argv = appendFlag(argv, args, "archive_source", "--archive-source")
			argv = appendFlag(argv, args, "bak_data_source", "--bak-data-source")
			argv = appendFlag(argv, args, "bak_encryption_password", "--bak-encryption-password")
			argv = appendFlag(argv, args, "charset", "--charset")
			argv = appendFlag(argv, args, "connect_white_list", "--connect-white-list")
			argv = appendFlag(argv, args, "cpu_count", "--cpu-count")
			argv = appendFlag(argv, args, "from_tenant", "--from")
			argv = appendIntFlag(argv, args, "iops_weight", "--iops-weight")
			argv = appendFlag(argv, args, "log_disk_size", "--log-disk-size")
			argv = appendIntFlag(argv, args, "max_iops", "--max-iops")
			argv = appendFlag(argv, args, "memory_size", "--memory-size")
			argv = appendIntFlag(argv, args, "min_iops", "--min-iops")
			argv = appendFlag(argv, args, "oss_access_id", "--oss-access-id")
			argv = appendFlag(argv, args, "oss_access_key", "--oss-access-key")
			if restore, _ := tool.BoolArg(args, "restore"); restore {
				argv = append(argv, "-r")
			}
			argv = appendFlag(argv, args, "restore_type", "--restore-type")
			argv = appendFlag(argv, args, "root_password", "--root-password")
			argv = appendFlag(argv, args, "tenant_name_override", "--tenant-name")
			argv = appendIntFlag(argv, args, "unit_number", "--unit-number")
			argv = appendBoolFlag(argv, args, "unlimited", "--unlimited")
			argv = appendFlag(argv, args, "until_timestamp", "--until-timestamp")
			out, err := b.runner.Run(ctx, "okctl", argv...)
			if err != nil {
				return nil, err
			}
			out += b.waitRunning(ctx, "tenant", name, "tenant", "list", "-p", ns)
			return map[string]any{"output": out}, nil
		},
	}
}

func (b *Backend) deleteTenantTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "delete_tenant",
			Description: "Delete a tenant.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"tenant_name": tool.String("Tenant to delete"),
				"namespace":   tool.String("Namespace the tenant lives in (default \"default\")"),
			}, "tenant_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "tenant_name", "Tenant name")
			if err != nil {
				return nil, err
			}
			ns, err := namespaceArg(args)
			if err != nil {
				return nil, err
			}
			return b.run(ctx, "tenant", "delete", name, "-n", ns)
		},
	}
}

func (b *Backend) activateTenantTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "activate_tenant",
			Description: "Activate a standby tenant.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"standby_tenant_name": tool.String("Standby tenant to activate"),
				"namespace":           tool.String("Namespace the tenant lives in (default \"default\")"),
				"force":               tool.Boolean("Force the activation"),
			}, "standby_tenant_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "standby_tenant_name", "Standby tenant name")
			if err != nil {
				return nil, err
			}
			ns, err := namespaceArg(args)
			if err != nil {
				return nil, err
			}
			argv := []string{"tenant", "activate", name, "-n", ns}
			argv = appendForce(argv, args)
			return b.run(ctx, argv...)
		},
	}
}

func (b *Backend) changeTenantPasswordTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "change_tenant_password",
			Description: "Change the root password of a tenant.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"tenant_name": tool.String("Tenant to change"),
				"password":    tool.String("New password"),
				"namespace":   tool.String("Namespace the tenant lives in (default \"default\")"),
				"force":       tool.Boolean("Force the change"),
			}, "tenant_name", "password"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "tenant_name", "Tenant name")
			if err != nil {
				return nil, err
			}
			ns, err := namespaceArg(args)
			if err != nil {
				return nil, err
			}
			password, _ := tool.StringArg(args, "password")
			argv := []string{"tenant", "changepwd", name, "--password=" + password, "-n", ns}
			argv = appendForce(argv, args)
			return b.run(ctx, argv...)
		},
	}
}

func (b *Backend) replayTenantLogTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "replay_tenant_log",
			Description: "Replay a standby tenant's logs, either unbounded or up to a timestamp.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"tenant_name":     tool.String("Tenant to replay"),
				"namespace":       tool.String("Namespace the tenant lives in (default \"default\")"),
				"force":           tool.Boolean("Force the replay"),
				"unlimited":       tool.Boolean("Replay without a time bound (default true)"),
				"until_timestamp": tool.String("Replay up to this timestamp, e.g. 2024-02-23 17:47:00"),
			}, "tenant_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "tenant_name", "Tenant name")
			if err != nil {
				return nil, err
			}
			ns, err := namespaceArg(args)
			if err != nil {
				return nil, err
			}
			argv := []string{"tenant", "replaylog", name, "-n", ns}
			argv = appendForce(argv, args)
			argv = append(argv, "--unlimited", strconv.FormatBool(tool.BoolOr(args, "unlimited", true)))
			argv = appendFlag(argv, args, "until_timestamp", "--until-timestamp")
			return b.run(ctx, argv...)
		},
	}
}

func (b *Backend) scaleTenantTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "scale_tenant",
			Description: "Scale a tenant's unit resources. Only one kind of scaling per call.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"tenant_name":   tool.String("Tenant to scale"),
				"namespace":     tool.String("Namespace the tenant lives in (default \"default\")"),
				"cpu_count":     tool.String("CPU count per unit"),
				"force":         tool.Boolean("Force the scaling"),
				"iops_weight":   tool.Integer("IOPS weight per unit"),
				"log_disk_size": tool.String("Log disk size per unit"),
				"max_iops":      tool.Integer("Max IOPS per unit"),
				"memory_size":   tool.String("Memory size per unit"),
				"min_iops":      tool.Integer("Min IOPS per unit"),
				"unit_number":   tool.Integer("Unit count"),
			}, "tenant_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "tenant_name", "Tenant name")
			if err != nil {
				return nil, err
			}
			ns, err := namespaceArg(args)
			if err != nil {
				return nil, err
			}
			argv := []string{"tenant", "scale", name, "-n", ns}
			argv = appendFlag(argv, args, "cpu_count", "--cpu-count")
			argv = appendForce(argv, args)
			argv = appendIntFlag(argv, args, "iops_weight", "--iops-weight")
			argv = appendFlag(argv, args, "log_disk_size", "--log-disk-size")
			argv = appendIntFlag(argv, args, "max_iops", "--max-iops")
			argv = appendFlag(argv, args, "memory_size", "--memory-size")
			argv = appendIntFlag(argv, args, "min_iops", "--min-iops")
			argv = appendIntFlag(argv, args, "unit_number", "--unit-number")
			return b.run(ctx, argv...)
		},
	}
}

func (b *Backend) showTenantTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "show_tenant",
			Description: "Show one tenant.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"tenant_name": tool.String("Tenant to show"),
				"namespace":   tool.String("Namespace the tenant lives in (default \"default\")"),
			}, "tenant_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "tenant_name", "Tenant name")
			if err != nil {
				return nil, err
			}
			ns, err := namespaceArg(args)
			if err != nil {
				return nil, err
			}
			return b.run(ctx, "tenant", "show", name, "-n", ns)
		},
	}
}

func (b *Backend) switchoverTenantTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "switchover_tenant",
			Description: "Switch the primary and standby roles between two tenants.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"primary_tenant_name": tool.String("Primary tenant"),
				"standby_tenant_name": tool.String("Standby tenant"),
				"namespace":           tool.String("Namespace the tenants live in (default \"default\")"),
				"force":               tool.Boolean("Force the switchover"),
			}, "primary_tenant_name", "standby_tenant_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			primary, err := requireIdentifier(args, "primary_tenant_name", "Primary tenant name")
			if err != nil {
				return nil, err
			}
			standby, err := requireIdentifier(args, "standby_tenant_name", "Standby tenant name")
			if err != nil {
				return nil, err
			}
			ns, err := namespaceArg(args)
			if err != nil {
				return nil, err
			}
			argv := []string{"tenant", "switchover", primary, standby, "-n", ns}
			argv = appendForce(argv, args)
			return b.run(ctx, argv...)
		},
	}
}

func (b *Backend) updateTenantTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "update_tenant",
			Description: "Update a tenant's connection whitelist or zone priority.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"tenant_name":        tool.String("Tenant to update"),
				"namespace":          tool.String("Namespace the tenant lives in (default \"default\")"),
				"connect_white_list": tool.String("Connection whitelist"),
				"force":              tool.Boolean("Force the update"),
				"priority":           tool.String("Zone priority as zone=priority pairs"),
			}, "tenant_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "tenant_name", "Tenant name")
			if err != nil {
				return nil, err
			}
			ns, err := namespaceArg(args)
			if err != nil {
				return nil, err
			}
			argv := []string{"tenant", "update", name, "-n", ns}
			argv = appendFlag(argv, args, "connect_white_list", "--connect-white-list")
			argv = appendForce(argv, args)
			argv = appendFlag(argv, args, "priority", "--priority")
			return b.run(ctx, argv...)
		},
	}
}

func (b *Backend) upgradeTenantTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "upgrade_tenant",
			Description: "Upgrade a tenant's compatible version to match the cluster.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"tenant_name": tool.String("Tenant to upgrade"),
				"namespace":   tool.String("Namespace the tenant lives in (default \"default\")"),
				"force":       tool.Boolean("Force the upgrade"),
			}, "tenant_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "tenant_name", "Tenant name")
			if err != nil {
				return nil, err
			}
			ns, err := namespaceArg(args)
			if err != nil {
				return nil, err
			}
			argv := []string{"tenant", "upgrade", name, "-n", ns}
			argv = appendForce(argv, args)
			return b.run(ctx, argv...)
		},
	}
}
