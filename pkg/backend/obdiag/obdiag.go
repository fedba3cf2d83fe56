// Package obdiag exposes the obdiag diagnostic CLI as MCP tools. Every
// invocation is one obdiag run; caller-supplied values are validated before
// they reach argv.
package obdiag

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"go.uber.org/zap"

	"github.com/oceanbase/mcp-oceanbase/pkg/backend/cliexec"
	"github.com/oceanbase/mcp-oceanbase/pkg/config"
	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
	"github.com/oceanbase/mcp-oceanbase/pkg/tool"
)

var (
	// since accepts forms like 30m, 1h, 2d.
	sinceRe = regexp.MustCompile(`^\d+[mhd]$`)
	// check cases may carry dots (e.g. sysbench.run).
	casesRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
	pathRe  = regexp.MustCompile(`^[a-zA-Z0-9_./-]+$`)
)

// Backend wires the obdiag catalog over one whitelisted runner.
type Backend struct {
	runner   *cliexec.Runner
	baseArgs []string
}

// New builds the backend. When cfg.ConfigFile is set, every invocation
// carries `-c <file>`.
func New(cfg config.Obdiag, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Backend{
		runner: cliexec.New([]string{"obdiag"}, cfg.Timeout, logger),
	}
	if cfg.ConfigFile != "" {
		b.baseArgs = []string{"-c", cfg.ConfigFile}
	}
	return b
}

func (b *Backend) run(ctx context.Context, args ...string) (map[string]any, error) {
	argv := append(append([]string{}, args...), b.baseArgs...)
	out, err := b.runner.Run(ctx, "obdiag", argv...)
	if err != nil {
		return nil, err
	}
	return map[string]any{"output": out}, nil
}

// Tools returns the catalog for registration.
func (b *Backend) Tools() []tool.Tool {
	return []tool.Tool{
		b.checkRunTool(),
		b.gatherLogTool(),
		b.analyzeLogTool(),
		b.rcaListTool(),
		b.rcaRunTool(),
	}
}

func (b *Backend) checkRunTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "obdiag_check_run",
			Description: "Run obdiag health checks against the cluster, optionally restricted to specific check cases.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"cases": tool.String("Check cases to run, e.g. sysbench.run"),
			}),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			argv := []string{"check", "run"}
			if cases, ok := tool.StringArg(args, "cases"); ok && cases != "" {
				if !casesRe.MatchString(cases) || len(cases) > 100 {
					return nil, errmodel.InvalidArguments("cases", "cases contains invalid characters")
				}
				argv = append(argv, "--cases", cases)
			}
			return b.run(ctx, argv...)
		},
	}
}

func (b *Backend) gatherLogTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "obdiag_gather_log",
			Description: "Gather observer logs from the cluster nodes for offline inspection.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"since": tool.String("How far back to gather, e.g. 30m, 1h, 2d"),
				"scope": tool.StringEnum("Log scope to gather", "observer", "election", "rootservice", "all"),
			}),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			argv := []string{"gather", "log"}
			argv, err := appendSince(argv, args)
			if err != nil {
				return nil, err
			}
			if scope, ok := tool.StringArg(args, "scope"); ok && scope != "" {
				if err := cliexec.ValidateIdentifier(scope, "scope"); err != nil {
					return nil, err
				}
				argv = append(argv, "--scope", scope)
			}
			return b.run(ctx, argv...)
		},
	}
}

func (b *Backend) analyzeLogTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "obdiag_analyze_log",
			Description: "Analyze observer logs, either from the cluster nodes or from a previously gathered file.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"since": tool.String("How far back to analyze, e.g. 30m, 1h, 2d"),
				"files": tool.String("Path to a gathered log file or directory to analyze offline"),
			}),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			argv := []string{"analyze", "log"}
			argv, err := appendSince(argv, args)
			if err != nil {
				return nil, err
			}
			if files, ok := tool.StringArg(args, "files"); ok && files != "" {
				if err := validatePath(files, "files"); err != nil {
					return nil, err
				}
				argv = append(argv, "--files", files)
			}
			return b.run(ctx, argv...)
		},
	}
}

func (b *Backend) rcaListTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "obdiag_rca_list",
			Description: "List the root-cause-analysis scenes obdiag knows about.",
			InputSchema: tool.Object(nil),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return b.run(ctx, "rca", "list")
		},
	}
}

func (b *Backend) rcaRunTool() tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "obdiag_rca_run",
			Description: "Run root-cause analysis for one scene reported by obdiag_rca_list.",
			InputSchema: tool.Object(map[string]*jsonschema.Schema{
				"scene": tool.String("RCA scene name, e.g. major_hold"),
			}, "scene"),
		},
		Fn: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			scene, _ := tool.StringArg(args, "scene")
			if err := cliexec.ValidateIdentifier(scene, "scene"); err != nil {
				return nil, err
			}
			return b.run(ctx, "rca", "run", "--scene", scene)
		},
	}
}

func appendSince(argv []string, args map[string]any) ([]string, error) {
	since, ok := tool.StringArg(args, "since")
	if !ok || since == "" {
		return argv, nil
	}
	if !sinceRe.MatchString(since) {
		return nil, errmodel.InvalidArguments("since", fmt.Sprintf("since must look like 30m, 1h or 2d, got %q", since))
	}
	return append(argv, "--since", since), nil
}

func validatePath(value, field string) error {
	if strings.HasPrefix(value, "-") {
		return errmodel.InvalidArguments(field, fmt.Sprintf("%s must not start with a dash", field))
	}
	if len(value) > 200 || !pathRe.MatchString(value) {
		return errmodel.InvalidArguments(field, fmt.Sprintf("%s contains invalid characters", field))
	}
	return nil
}
