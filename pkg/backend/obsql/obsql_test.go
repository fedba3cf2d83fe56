package obsql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oceanbase/mcp-oceanbase/pkg/config"
	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
)

func TestTenantOf(t *testing.T) {
	cases := []struct {
		user string
		want string
	}{
		{"root", "sys"},
		{"root@sys", "sys"},
		{"app@biz", "biz"},
		{"app@biz#cluster1", "biz"},
		{"root@", "sys"},
	}
	for _, tc := range cases {
		if got := TenantOf(tc.user); got != tc.want {
			t.Fatalf("TenantOf(%q) = %q, want %q", tc.user, got, tc.want)
		}
	}
}

func TestReturnsRows(t *testing.T) {
	rowy := []string{
		"SELECT 1",
		"  select * from t",
		"SHOW TABLES",
		"DESCRIBE t",
		"desc t",
		"EXPLAIN SELECT 1",
		"WITH x AS (SELECT 1) SELECT * FROM x",
	}
	for _, q := range rowy {
		if !ReturnsRows(q) {
			t.Fatalf("ReturnsRows(%q) = false", q)
		}
	}
	dml := []string{
		"INSERT INTO t VALUES (1)",
		"UPDATE t SET a = 1",
		"DELETE FROM t",
		"CREATE TABLE t (id INT)",
		"",
	}
	for _, q := range dml {
		if ReturnsRows(q) {
			t.Fatalf("ReturnsRows(%q) = true", q)
		}
	}
}

// unreachableBackend opens a pool against a closed local port. sql.Open
// never dials, so construction succeeds offline.
func unreachableBackend(t *testing.T, user string) *Backend {
	t.Helper()
	b, err := New(config.OceanBase{
		Host:     "127.0.0.1",
		Port:     1,
		User:     user,
		Database: "test",
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func findTool(t *testing.T, b *Backend, name string) interface {
	Invoke(ctx context.Context, args map[string]any) (map[string]any, error)
} {
	t.Helper()
	for _, tl := range b.Tools() {
		if tl.Describe().Name == name {
			return tl
		}
	}
	t.Fatalf("tool %q not in catalog", name)
	return nil
}

func TestPrivilegedToolsRequireSysTenant(t *testing.T) {
	b := unreachableBackend(t, "app@biz")
	for _, name := range []string{"list_server_nodes", "list_resource_capacity"} {
		_, err := findTool(t, b, name).Invoke(context.Background(), map[string]any{})
		var ce *errmodel.Error
		if !errors.As(err, &ce) || ce.Kind != errmodel.KindBackendExecutionError {
			t.Fatalf("%s: expected backend_execution_error, got %v", name, err)
		}
		if ce.Context["tenant"] != "biz" {
			t.Fatalf("%s: error context missing tenant, got %+v", name, ce.Context)
		}
	}
}

func TestExecuteSQLUnreachableMapsToUnavailable(t *testing.T) {
	b := unreachableBackend(t, "root@sys")
	_, err := findTool(t, b, "execute_sql").Invoke(context.Background(), map[string]any{"sql": "SELECT 1"})
	if !errmodel.IsKind(err, errmodel.KindBackendUnavailable) {
		t.Fatalf("expected backend_unavailable, got %v", err)
	}
}

func TestCurrentTimeFallsBackToHostClock(t *testing.T) {
	b := unreachableBackend(t, "root@sys")
	fixed := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	b.clock = func() time.Time { return fixed }

	out, err := findTool(t, b, "get_current_time").Invoke(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out["current_time"] != "2026-03-14 15:09:26" {
		t.Fatalf("unexpected fallback time %v", out["current_time"])
	}
}

func TestCatalogNames(t *testing.T) {
	b := unreachableBackend(t, "root@sys")
	want := map[string]bool{
		"execute_sql":            false,
		"get_current_time":       false,
		"list_server_nodes":      false,
		"list_resource_capacity": false,
	}
	for _, tl := range b.Tools() {
		name := tl.Describe().Name
		if _, ok := want[name]; !ok {
			t.Fatalf("unexpected tool %q", name)
		}
		want[name] = true
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("tool %q missing from catalog", name)
		}
	}
}
