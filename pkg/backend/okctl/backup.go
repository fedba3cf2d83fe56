package okctl

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/oceanbase/mcp-oceanbase/pkg/tool"
)

func (b *Backend) backupPolicyTools() []tool.Tool {
	return []tool.Tool{
		b.listBackupPoliciesTool(),
		b.createBackupPolicyTool(),
		b.deleteBackupPolicyTool(),
		b.showBackupPolicyTool(),
		b.pauseBackupPolicyTool(),
		b.resumeBackupPolicyTool(),
		b.updateBackupPolicyTool(),
	}
}

func (b *Backend) listBackupPoliciesTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "list_backup_policies",
			Description: "List the backup policies of a cluster.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"cluster_name": tool.String("Cluster to list policies from"),
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
			out, err := b.runner.Run(ctx, "okctl", "backup-policy", "list", name, "-n", ns)
			if err != nil {
				return nil, err
			}
			if isBlank(out) {
				out = "no backup policies found"
			}
			return map[string]any{"output": out}, nil
		},
	}
}

func (b *Backend) createBackupPolicyTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "create_backup_policy",
			Description: "Create a backup policy for a tenant.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"tenant_name":             tool.String("Tenant to back up"),
				"namespace":               tool.String("Namespace the tenant lives in (default \"default\")"),
				"archive_path":            tool.String("Archive destination path"),
				"bak_data_path":           tool.String("Backup data destination path"),
				"bak_encryption_password": tool.String("Backup encryption password"),
				"dest_type":               tool.String("Destination type, OSS or NFS (default NFS)"),
				"full":                    tool.String("Full backup schedule in crontab format, e.g. 0 0 * * 4,5"),
				"inc":                     tool.String("Incremental backup schedule in crontab format, e.g. 0 0 * * 1,2,3"),
				"job_keep_days":           tool.Integer("Days to keep backup jobs (default 7)"),
				"oss_access_id":           tool.String("OSS access id"),
				"oss_access_key":          tool.String("OSS access key"),
				"recovery_days":           tool.Integer("Days to keep recovery jobs (default 30)"),
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
			argv := []string{"backup-policy", "create", name, "-n", ns}
			argv = appendFlag(argv, args, "archive_path", "--archive-path")
			argv = appendFlag(argv, args, "bak_data_path", "--bak-data-path")
			argv = appendFlag(argv, args, "bak_encryption_password", "--bak-encryption-password")
			argv = appendFlag(argv, args, "dest_type", "--dest-type")
			argv = appendFlag(argv, args, "full", "--full")
			argv = appendFlag(argv, args, "inc", "--inc")
			argv = appendIntFlag(argv, args, "job_keep_days", "--job-keep-days")
			argv = appendFlag(argv, args, "oss_access_id", "--oss-access-id")
			argv = appendFlag(argv, args, "oss_access_key", "--oss-access-key")
			argv = appendIntFlag(argv, args, "recovery_days", "--recovery-days")
			return b.run(ctx, argv...)
		},
	}
}

func (b *Backend) deleteBackupPolicyTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "delete_backup_policy",
			Description: "Delete the backup policy of a tenant.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"tenant_name": tool.String("Tenant whose policy to delete"),
				"namespace":   tool.String("Namespace the tenant lives in (default \"default\")"),
				"force":       tool.Boolean("Force the deletion"),
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
			argv := []string{"backup-policy", "delete", name, "-n", ns}
			argv = appendForce(argv, args)
			return b.run(ctx, argv...)
		},
	}
}

func (b *Backend) showBackupPolicyTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "show_backup_policy",
			Description: "Show the backup policy of a tenant and its recent jobs.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"tenant_name": tool.String("Tenant whose policy to show"),
				"namespace":   tool.String("Namespace the tenant lives in (default \"default\")"),
				"job_type":    tool.StringEnum("Job type to show (default ALL)", "FULL", "INC", "CLEAN", "ARCHIVE", "ALL"),
				"limit":       tool.Integer("Number of jobs to show"),
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
			argv := []string{"backup-policy", "show", name, "-n", ns}
			if jobType := tool.StringOr(args, "job_type", "ALL"); jobType != "" && jobType != "ALL" {
				argv = append(argv, "-t", jobType)
			}
			argv = appendIntFlag(argv, args, "limit", "--limit")
			return b.run(ctx, argv...)
		},
	}
}

func (b *Backend) pauseBackupPolicyTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "pause_backup_policy",
			Description: "Pause the backup policy of a tenant.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"tenant_name": tool.String("Tenant whose policy to pause"),
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
			return b.run(ctx, "backup-policy", "pause", name, "-n", ns)
		},
	}
}

func (b *Backend) resumeBackupPolicyTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "resume_backup_policy",
			Description: "Resume a paused backup policy.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"tenant_name": tool.String("Tenant whose policy to resume"),
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
			return b.run(ctx, "backup-policy", "resume", name, "-n", ns)
		},
	}
}

func (b *Backend) updateBackupPolicyTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "update_backup_policy",
			Description: "Update the schedules or retention of a tenant's backup policy.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"tenant_name":         tool.String("Tenant whose policy to update"),
				"namespace":           tool.String("Namespace the tenant lives in (default \"default\")"),
				"full":                tool.String("Full backup schedule in crontab format"),
				"inc":                 tool.String("Incremental backup schedule in crontab format"),
				"job_keep_days":       tool.Integer("Days to keep backup jobs"),
				"piece_interval_days": tool.Integer("Days between archive pieces"),
				"recovery_days":       tool.Integer("Days to keep recovery jobs"),
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
			argv := []string{"backup-policy", "update", name, "-n", ns}
			argv = appendFlag(argv, args, "full", "--full")
			argv = appendFlag(argv, args, "inc", "--inc")
			argv = appendIntFlag(argv, args, "job_keep_days", "--job-keep-days")
			argv = appendIntFlag(argv, args, "piece_interval_days", "--piece-interval-days")
			argv = appendIntFlag(argv, args, "recovery_days", "--recovery-days")
			return b.run(ctx, argv...)
		},
	}
}
