//go:build integration

package seekdb

import (
	"context"
	"strings"
	"testing"

	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	_ "github.com/oceanbase/mcp-oceanbase/pkg/adapters/embedding/fake"
	"github.com/oceanbase/mcp-oceanbase/pkg/config"
)

// The vector and AI surface needs a real seekdb instance; a stock MySQL
// container still exercises the raw SQL envelope end to end.
func TestExecuteSQLEnvelopeRoundTrip(t *testing.T) {
	ctx := context.Background()
	mysqlC, err := tcmysql.Run(ctx, "mysql:8.4",
		tcmysql.WithDatabase("test"),
		tcmysql.WithUsername("tester"),
		tcmysql.WithPassword("tester"),
	)
	if err != nil {
		t.Skipf("skip: cannot start mysql: %v", err)
	}
	t.Cleanup(func() { _ = mysqlC.Terminate(ctx) })

	host, err := mysqlC.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := mysqlC.MappedPort(ctx, "3306/tcp")
	if err != nil {
		t.Fatal(err)
	}

	b, err := New(ctx, config.SeekDB{
		Host:      host,
		Port:      port.Int(),
		User:      "tester",
		Password:  "tester",
		Database:  "test",
		Embedding: config.Embedding{Provider: "fake"},
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	out, err := callTool(t, b, "execute_sql", map[string]any{
		"sql": "CREATE TABLE notes (id INT PRIMARY KEY, body TEXT)",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ok, _ := out["success"].(bool); !ok {
		t.Fatalf("create failed: %v", out["error"])
	}

	out, err = callTool(t, b, "execute_sql", map[string]any{
		"sql": "INSERT INTO notes VALUES (1, 'anchor'), (2, NULL)",
	})
	if err != nil || !envelopeOK(out) {
		t.Fatalf("insert: err=%v out=%v", err, out)
	}

	out, err = callTool(t, b, "execute_sql", map[string]any{
		"sql": "SELECT id, body FROM notes ORDER BY id",
	})
	if err != nil || !envelopeOK(out) {
		t.Fatalf("select: err=%v out=%v", err, out)
	}
	rows, ok := out["data"].([][]string)
	if !ok || len(rows) != 2 {
		t.Fatalf("data = %v", out["data"])
	}
	if rows[0][0] != "1" || rows[0][1] != "anchor" {
		t.Fatalf("row 0 = %v", rows[0])
	}
	if rows[1][1] != "NULL" {
		t.Fatalf("row 1 = %v", rows[1])
	}

	out, err = callTool(t, b, "execute_sql", map[string]any{
		"sql": "SELECT FROM broken",
	})
	if err != nil {
		t.Fatalf("broken select returned tool error: %v", err)
	}
	if envelopeOK(out) {
		t.Fatal("broken select reported success")
	}
	msg, _ := out["error"].(string)
	if !strings.HasPrefix(msg, "[Error]: ") {
		t.Fatalf("error = %q", msg)
	}

	out, err = callTool(t, b, "get_current_time", nil)
	if err != nil {
		t.Fatalf("get_current_time: %v", err)
	}
	now, _ := out["current_time"].(string)
	if len(now) < len("2006-01-02 15:04:05") {
		t.Fatalf("current_time = %q", now)
	}
}
