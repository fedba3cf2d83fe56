package okctl

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
	"github.com/oceanbase/mcp-oceanbase/pkg/tool"
)

func (b *Backend) clusterTools() []tool.Tool {
	return []tool.Tool{
		b.listClustersTool(),
		b.showClusterTool(),
		b.scaleClusterTool(),
		b.updateClusterTool(),
		b.upgradeClusterTool(),
		b.deleteClusterTool(),
		b.createClusterTool(),
	}
}

func (b *Backend) listClustersTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "list_all_clusters",
			Description: "List every OceanBase cluster the operator manages.",
			InputSchema: tool.Object(nil),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			out, err := b.runner.Run(ctx, "okctl", "cluster", "list")
			if err != nil {
				return nil, err
			}
			if isBlank(out) {
				out = "no clusters found"
			}
			return map[string]any{"output": out}, nil
		},
	}
}

func (b *Backend) showClusterTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "show_cluster",
			Description: "Show an overview of one OceanBase cluster.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"cluster_name": tool.String("Cluster to show"),
				"namespace":    tool.String("Namespace the cluster lives in (default \"default\")"),
			}, "cluster_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "cluster_name", "Cluster name")
			if err != nil {
				return nil, err
			}
			ns, err := namespaceArg(args)
			if err != nil {
				return nil, err
			}
			return b.run(ctx, "cluster", "show", name, "-n", ns)
		},
	}
}

func (b *Backend) scaleClusterTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "scale_cluster",
			Description: "Scale one zone of an OceanBase cluster, e.g. zones z1=2. Set the replica count to 0 to drop the zone.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"cluster_name": tool.String("Cluster to scale"),
				"zones":        tool.String("Zone and replica count as zone=replicas, one zone per call"),
				"namespace":    tool.String("Namespace the cluster lives in (default \"default\")"),
			}, "cluster_name", "zones"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "cluster_name", "Cluster name")
			if err != nil {
				return nil, err
			}
			ns, err := namespaceArg(args)
			if err != nil {
				return nil, err
			}
			zones, _ := tool.StringArg(args, "zones")
			if !zonesRe.MatchString(zones) {
				return nil, errmodel.InvalidArguments("zones", "invalid zones format, expected zone=replicas like z1=1")
			}
			return b.run(ctx, "cluster", "scale", name, "-n", ns, "--zones="+zones)
		},
	}
}

func (b *Backend) updateClusterTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "update_cluster",
			Description: "Update the resources of an OceanBase cluster: cpu, memory and storage.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"cluster_name":           tool.String("Cluster to update"),
				"namespace":              tool.String("Namespace the cluster lives in (default \"default\")"),
				"cpu":                    tool.String("CPU count per observer"),
				"memory":                 tool.String("Memory size per observer, e.g. 10Gi"),
				"data_storage_class":     tool.String("Storage class for data files"),
				"data_storage_size":      tool.String("Storage size for data files, e.g. 50Gi"),
				"log_storage_class":      tool.String("Storage class for logs"),
				"log_storage_size":       tool.String("Storage size for logs, e.g. 20Gi"),
				"redo_log_storage_class": tool.String("Storage class for redo logs"),
				"redo_log_storage_size":  tool.String("Storage size for redo logs, e.g. 50Gi"),
			}, "cluster_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "cluster_name", "Cluster name")
			if err != nil {
				return nil, err
			}
			ns, err := namespaceArg(args)
			if err != nil {
				return nil, err
			}
			argv := []string{"cluster", "update", name, "-n", ns}
			argv = appendFlag(argv, args, "cpu", "--cpu")
			argv = appendFlag(argv, args, "memory", "--memory")
			argv = appendFlag(argv, args, "data_storage_class", "--data-storage-class")
			argv = appendFlag(argv, args, "data_storage_size", "--data-storage-size")
			argv = appendFlag(argv, args, "log_storage_class", "--log-storage-class")
			argv = appendFlag(argv, args, "log_storage_size", "--log-storage-size")
			argv = appendFlag(argv, args, "redo_log_storage_class", "--redo-log-storage-class")
			argv = appendFlag(argv, args, "redo_log_storage_size", "--redo-log-storage-size")
			return b.run(ctx, argv...)
		},
	}
}

func (b *Backend) upgradeClusterTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "upgrade_cluster",
			Description: "Upgrade an OceanBase cluster to a new observer image.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"cluster_name": tool.String("Cluster to upgrade"),
				"image":        tool.String("Observer image to upgrade to"),
				"namespace":    tool.String("Namespace the cluster lives in (default \"default\")"),
			}, "cluster_name", "image"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "cluster_name", "Cluster name")
			if err != nil {
				return nil, err
			}
			image, err := requireNonEmpty(args, "image", "")
			if err != nil {
				return nil, err
			}
			ns, err := namespaceArg(args)
			if err != nil {
				return nil, err
			}
			return b.run(ctx, "cluster", "upgrade", name, "-n", ns, "--image", image)
		},
	}
}

func (b *Backend) deleteClusterTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "delete_cluster",
			Description: "Delete an OceanBase cluster from a namespace.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"cluster_name": tool.String("Cluster to delete"),
				"namespace":    tool.String("Namespace to delete the cluster from (default \"default\")"),
			}, "cluster_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "cluster_name", "Cluster name")
			if err != nil {
				return nil, err
			}
			ns, err := namespaceArg(args)
			if err != nil {
				return nil, err
			}
			return b.run(ctx, "cluster", "delete", name, "-n", ns)
		},
	}
}

func (b *Backend) createClusterTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "create_cluster",
			Description: "Create an OceanBase cluster and wait until it reports running. This can take several minutes.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"cluster_name":            tool.String("Name for the new cluster"),
				"namespace":               tool.String("Namespace to create the cluster in (default \"default\")"),
				"backup_storage_address":  tool.String("Backup storage address"),
				"backup_storage_path":     tool.String("Backup storage path"),
				"cpu":                     tool.String("CPU count per observer (default 2)"),
				"data_storage_class":      tool.String("Storage class for data files"),
				"data_storage_size":       tool.String("Storage size for data files"),
				"id":                      tool.String("Cluster id"),
				"image":                   tool.String("Observer image"),
				"log_storage_class":       tool.String("Storage class for logs"),
				"log_storage_size":        tool.String("Storage size for logs"),
				"memory":                  tool.String("Memory size per observer (default 10Gi)"),
				"mode":                    tool.String("Cluster mode, e.g. normal or standalone"),
				"parameters":              tool.String("Extra observer parameters as name=value pairs"),
				"redo_log_storage_class":  tool.String("Storage class for redo logs"),
				"redo_log_storage_size":   tool.String("Storage size for redo logs"),
				"root_password":           tool.String("Root password, generated when omitted"),
				"zones":                   tool.String("Zone topology as zone=replicas pairs (default z1=1)"),
			}, "cluster_name"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			name, err := requireIdentifier(args, "cluster_name", "Cluster name")
			if err != nil {
				return nil, err
			}
			ns, err := namespaceArg(args)
			if err != nil {
				return nil, err
			}
			argv := []string{"cluster", "create", name, "-n", ns}
			argv = appendFlag(argv, args, "backup_storage_address", "--backup-storage-address")
			argv = appendFlag(argv, args, "backup_storage_path", "--backup-storage-path")
			argv = appendFlag(argv, args, "cpu", "--cpu")
			argv = appendFlag(argv, args, "data_storage_class", "--data-storage-class")
			argv = appendFlag(argv, args, "data_storage_size", "--data-storage-size")
			argv = appendFlag(argv, args, "id", "--id")
			argv = appendFlag(argv, args, "image", "--image")
			argv = appendFlag(argv, args, "log_storage_class", "--log-storage-class")
			argv = appendFlag(argv, args, "log_storage_size", "--log-storage-size")
			argv = appendFlag(argv, args, "memory", "--memory")
			argv = appendFlag(argv, args, "mode", "--mode")
			argv = appendFlag(argv, args, "parameters", "--parameters")
			argv = appendFlag(argv, args, "redo_log_storage_class", "--redo-log-storage-class")
			argv = appendFlag(argv, args, "redo_log_storage_size", "--redo-log-storage-size")
			argv = appendFlag(argv, args, "root_password", "--root-password")
			argv = appendFlag(argv, args, "zones", "--zones")
			out, err := b.runner.Run(ctx, "okctl", argv...)
			if err != nil {
				return nil, err
			}
			out += b.waitRunning(ctx, "cluster", name, "cluster", "list")
			return map[string]any{"output": out}, nil
		},
	}
}
