// Package obsql adapts an OceanBase SQL endpoint (MySQL wire) to MCP tools.
// The exported Client is the shared query core; the vector-enabled seekdb
// server reuses it for its own catalog.
package obsql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
)

const defaultQueryTimeout = 30 * time.Second

// Params describes one MySQL-wire endpoint.
type Params struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// Timeout bounds every call; zero selects the 30s default.
	Timeout time.Duration
}

// Client is a pooled connection to one endpoint with result normalization.
// It is safe for concurrent use.
type Client struct {
	db      *sql.DB
	backend string
	timeout time.Duration
	logger  *zap.Logger
}

// Open builds the pool. The endpoint is not contacted until the first call,
// so a wrong address surfaces as backend_unavailable at invoke time, not
// here. backend names the system in error envelopes ("oceanbase", "seekdb").
func Open(backend string, p Params, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.DBName = p.Database
	cfg.Timeout = timeout

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Client{db: db, backend: backend, timeout: timeout, logger: logger.Named("obsql")}, nil
}

// QueryResult is one result set with values rendered JSON-friendly: driver
// byte slices become strings, NULL stays nil.
type QueryResult struct {
	Columns []string
	Rows    [][]any
}

// Query runs a row-returning statement under the client timeout.
func (c *Client) Query(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, c.mapErr(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, c.mapErr(err)
	}
	out := &QueryResult{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, c.mapErr(err)
		}
		row := make([]any, len(cols))
		for i, v := range vals {
			row[i] = renderValue(v)
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, c.mapErr(err)
	}
	return out, nil
}

// Exec runs a non-row statement and reports rows affected.
func (c *Client) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, c.mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (c *Client) Close() error { return c.db.Close() }

// mapErr tags connection-level failures as backend_unavailable and leaves
// everything else (server errors, deadline expiry) for errmodel.From.
func (c *Client) mapErr(err error) error {
	var netErr *net.OpError
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, mysql.ErrInvalidConn):
		return errmodel.Unavailable(c.backend, err)
	default:
		return err
	}
}

func renderValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(timeLayout)
	default:
		return v
	}
}
