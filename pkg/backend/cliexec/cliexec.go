// Package cliexec runs whitelisted external commands with a bounded
// wall-clock. It backs the obdiag and okctl servers: argv only, no shell,
// and the whole process group is killed when the bound expires.
package cliexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
)

const defaultTimeout = 30 * time.Second

var identifierRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Runner executes commands from a fixed whitelist.
type Runner struct {
	allowed map[string]struct{}
	timeout time.Duration
	logger  *zap.Logger
}

// New builds a runner. timeout <= 0 selects the 30s default.
func New(allowed []string, timeout time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	set := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		set[name] = struct{}{}
	}
	return &Runner{allowed: set, timeout: timeout, logger: logger.Named("cliexec")}
}

// Timeout reports the wall-clock bound applied to every Run.
func (r *Runner) Timeout() time.Duration { return r.timeout }

// Run executes name with args and returns stdout. The error carries the
// taxonomy kind: timeout when the bound expires, backend_unavailable when
// the binary is missing, backend_execution_error otherwise.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if _, ok := r.allowed[name]; !ok {
		return "", errmodel.Execution(fmt.Sprintf("Command not allowed: %s", name), map[string]any{"command": name})
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	// Own process group so cancellation reaps the command's children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Info("executing command", zap.String("command", name), zap.Strings("args", args))
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			r.logger.Warn("command timed out", zap.String("command", name), zap.Duration("elapsed", elapsed))
			return "", errmodel.Timeout(name, r.timeout)
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return "", errmodel.Unavailable(name, err)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = strings.TrimSpace(stdout.String())
			}
			if msg == "" {
				msg = err.Error()
			}
			r.logger.Warn("command failed",
				zap.String("command", name),
				zap.Int("exit_code", exitErr.ExitCode()),
				zap.Duration("elapsed", elapsed),
			)
			return "", errmodel.Execution("Command failed: "+msg, map[string]any{
				"command":   name,
				"exit_code": exitErr.ExitCode(),
			})
		}
		return "", errmodel.Execution("Execution error: "+err.Error(), map[string]any{"command": name})
	}

	r.logger.Info("command succeeded", zap.String("command", name), zap.Duration("elapsed", elapsed))
	return stdout.String(), nil
}

// ValidateIdentifier vets a caller-supplied value destined for argv:
// non-empty, at most 100 characters, only letters, digits, underscore and
// hyphen.
func ValidateIdentifier(value, field string) error {
	if value == "" {
		return errmodel.InvalidArguments(field, fmt.Sprintf("%s cannot be empty", field))
	}
	if len(value) > 100 {
		return errmodel.InvalidArguments(field, fmt.Sprintf("%s length cannot exceed 100 characters", field))
	}
	if !identifierRe.MatchString(value) {
		return errmodel.InvalidArguments(field, fmt.Sprintf("%s contains invalid characters", field))
	}
	return nil
}
