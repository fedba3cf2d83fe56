// Package okctl exposes the okctl Kubernetes operator CLI as MCP tools:
// cluster and tenant lifecycle, backup policies, and component install
// helpers. Caller-supplied resource names are validated before they reach
// argv, and create operations poll until the new resource reports running.
package okctl

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oceanbase/mcp-oceanbase/pkg/backend/cliexec"
	"github.com/oceanbase/mcp-oceanbase/pkg/config"
	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
	"github.com/oceanbase/mcp-oceanbase/pkg/tool"
)

const (
	defaultPollAttempts = 30
	defaultPollInterval = 10 * time.Second
)

// zones values look like z1=1; one zone per scale call.
var zonesRe = regexp.MustCompile(`^[a-zA-Z0-9_=-]+$`)

// Backend wires the okctl catalog over one whitelisted runner.
type Backend struct {
	runner *cliexec.Runner
	logger *zap.Logger

	// PollAttempts and PollInterval bound the readiness wait after
	// create_cluster and create_tenant. New sets 30 attempts 10s apart.
	PollAttempts int
	PollInterval time.Duration
}

// New builds the backend. The runner whitelist covers okctl itself plus
// the binaries the install tools shell out to.
func New(cfg config.Okctl, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		runner:       cliexec.New([]string{"okctl", "kubectl", "curl", "bash", "chmod", "mv"}, 0, logger),
		logger:       logger.Named("okctl"),
		PollAttempts: defaultPollAttempts,
		PollInterval: defaultPollInterval,
	}
}

// Tools returns the catalog for registration.
func (b *Backend) Tools() []tool.Tool {
	var tools []tool.Tool
	tools = append(tools, b.clusterTools()...)
	tools = append(tools, b.tenantTools()...)
	tools = append(tools, b.backupPolicyTools()...)
	tools = append(tools, b.componentTools()...)
	tools = append(tools, b.installTools()...)
	return tools
}

func (b *Backend) run(ctx context.Context, args ...string) (map[string]any, error) {
	out, err := b.runner.Run(ctx, "okctl", args...)
	if err != nil {
		return nil, err
	}
	return map[string]any{"output": out}, nil
}

// waitRunning polls listArgs until the output names the resource together
// with a running state, then reports readiness. Creation already succeeded
// by the time this runs, so exhausting the attempts degrades to a warning
// rather than an error.
func (b *Backend) waitRunning(ctx context.Context, kind, name string, listArgs ...string) string {
	for attempt := 0; attempt < b.PollAttempts; attempt++ {
		out, err := b.runner.Run(ctx, "okctl", listArgs...)
		if err == nil && strings.Contains(out, name) && strings.Contains(strings.ToLower(out), "running") {
			return fmt.Sprintf("\n%s %s is created and ready", kind, name)
		}
		if attempt == b.PollAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Sprintf("\nwarning: %s %s was created but the readiness wait was interrupted, check its state manually", kind, name)
		case <-time.After(b.PollInterval):
		}
	}
	b.logger.Warn("resource did not report running before the poll deadline",
		zap.String("kind", kind), zap.String("name", name))
	return fmt.Sprintf("\nwarning: %s %s was created but did not report running in time, check its state manually", kind, name)
}

// requireIdentifier reads a mandatory argv-bound argument and vets it.
// The field name surfaces in validation errors, e.g. "Cluster name".
func requireIdentifier(args map[string]any, key, field string) (string, error) {
	v, _ := tool.StringArg(args, key)
	if err := cliexec.ValidateIdentifier(v, field); err != nil {
		return "", err
	}
	return v, nil
}

// namespaceArg reads the namespace argument, defaulting to "default".
func namespaceArg(args map[string]any) (string, error) {
	ns := tool.StringOr(args, "namespace", "default")
	if err := cliexec.ValidateIdentifier(ns, "Namespace"); err != nil {
		return "", err
	}
	return ns, nil
}

// appendFlag appends "flag value" when the argument is a non-empty string.
func appendFlag(argv []string, args map[string]any, key, flag string) []string {
	if v, ok := tool.StringArg(args, key); ok && v != "" {
		argv = append(argv, flag, v)
	}
	return argv
}

// appendIntFlag appends "flag n" when the argument is present.
func appendIntFlag(argv []string, args map[string]any, key, flag string) []string {
	if n, ok := tool.IntArg(args, key); ok {
		argv = append(argv, flag, strconv.Itoa(n))
	}
	return argv
}

// appendBoolFlag appends "flag true|false" when the argument is present.
func appendBoolFlag(argv []string, args map[string]any, key, flag string) []string {
	if v, ok := tool.BoolArg(args, key); ok {
		argv = append(argv, flag, strconv.FormatBool(v))
	}
	return argv
}

// appendForce appends "-f" when the force argument is set.
func appendForce(argv []string, args map[string]any) []string {
	if v, _ := tool.BoolArg(args, "force"); v {
		argv = append(argv, "-f")
	}
	return argv
}

func requireNonEmpty(args map[string]any, key, hint string) (string, error) {
	v, _ := tool.StringArg(args, key)
	if v == "" {
		return "", errmodel.InvalidArguments(key, fmt.Sprintf("%s cannot be empty%s", key, hint))
	}
	return v, nil
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
