package cliexec

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
)

func TestRunCapturesStdout(t *testing.T) {
	r := New([]string{"echo"}, 0, nil)
	out, err := r.Run(context.Background(), "echo", "hello")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestRunRejectsUnlistedCommand(t *testing.T) {
	r := New([]string{"okctl"}, 0, nil)
	_, err := r.Run(context.Background(), "rm", "-rf", "/tmp/x")
	if !errmodel.IsKind(err, errmodel.KindBackendExecutionError) {
		t.Fatalf("expected backend_execution_error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Command not allowed: rm") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestRunTimeoutKillsCommand(t *testing.T) {
	r := New([]string{"sleep"}, 200*time.Millisecond, nil)
	start := time.Now()
	_, err := r.Run(context.Background(), "sleep", "30")
	elapsed := time.Since(start)

	if !errmodel.IsKind(err, errmodel.KindTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if elapsed > 5*time.Second {
		t.Fatalf("command not reaped promptly, took %v", elapsed)
	}
}

func TestRunMissingBinary(t *testing.T) {
	r := New([]string{"no-such-binary-for-this-test"}, 0, nil)
	_, err := r.Run(context.Background(), "no-such-binary-for-this-test")
	if !errmodel.IsKind(err, errmodel.KindBackendUnavailable) {
		t.Fatalf("expected backend_unavailable, got %v", err)
	}
}

func TestRunNonZeroExitCarriesStderr(t *testing.T) {
	r := New([]string{"sh"}, 0, nil)
	_, err := r.Run(context.Background(), "sh", "-c", "echo oops >&2; exit 3")
	if !errmodel.IsKind(err, errmodel.KindBackendExecutionError) {
		t.Fatalf("expected backend_execution_error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Command failed: oops") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	var ce *errmodel.Error
	if !errors.As(err, &ce) {
		t.Fatalf("not a tagged error: %v", err)
	}
	if ce.Context["exit_code"] != 3 {
		t.Fatalf("exit_code = %v", ce.Context["exit_code"])
	}
}

func TestValidateIdentifier(t *testing.T) {
	if err := ValidateIdentifier("cluster-1_a", "cluster_name"); err != nil {
		t.Fatalf("valid identifier rejected: %v", err)
	}

	cases := []struct {
		value   string
		msgPart string
	}{
		{"", "cannot be empty"},
		{strings.Repeat("a", 101), "cannot exceed 100 characters"},
		{"bad name", "invalid characters"},
		{"x;rm -rf", "invalid characters"},
		{"semi;colon", "invalid characters"},
	}
	for _, tc := range cases {
		err := ValidateIdentifier(tc.value, "cluster_name")
		if !errmodel.IsKind(err, errmodel.KindInvalidArguments) {
			t.Fatalf("ValidateIdentifier(%q): expected invalid_arguments, got %v", tc.value, err)
		}
		if !strings.Contains(err.Error(), tc.msgPart) {
			t.Fatalf("ValidateIdentifier(%q): message %q missing %q", tc.value, err.Error(), tc.msgPart)
		}
	}
}
