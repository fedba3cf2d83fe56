package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
	"github.com/oceanbase/mcp-oceanbase/pkg/mcpclient"
	"github.com/oceanbase/mcp-oceanbase/pkg/metrics"
	"github.com/oceanbase/mcp-oceanbase/pkg/tool"
)

func testDispatcher(t *testing.T, opts ...tool.DispatcherOption) *tool.Dispatcher {
	t.Helper()
	reg := tool.NewRegistry()
	reg.MustRegister(
		tool.Func{
			Desc: tool.Descriptor{
				Name:        "echo",
				Description: "Echo the given text back",
				InputSchema: tool.Object(map[string]*jsonschema.Schema{
					"text": tool.String("Text to echo"),
				}, "text"),
			},
			Fn: func(_ context.Context, args map[string]any) (map[string]any, error) {
				return map[string]any{"echoed": args["text"]}, nil
			},
		},
		tool.Func{
			Desc: tool.Descriptor{
				Name:        "boom",
				Description: "Always fails",
				InputSchema: tool.Object(map[string]*jsonschema.Schema{}),
			},
			Fn: func(context.Context, map[string]any) (map[string]any, error) {
				return nil, errmodel.Unavailable("test backend", errors.New("connection refused"))
			},
		},
	)
	disp, err := tool.NewDispatcher(reg, opts...)
	require.NoError(t, err)
	return disp
}

func testServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "test-mcp"
	}
	cfg.Logger = zap.NewNop()
	s, err := New(cfg, testDispatcher(t))
	require.NoError(t, err)
	return s
}

func TestParseTransport(t *testing.T) {
	for _, valid := range []string{"", "stdio", "sse", "streamable-http"} {
		got, err := ParseTransport(valid)
		if err != nil {
			t.Fatalf("ParseTransport(%q): %v", valid, err)
		}
		if valid != "" && got != valid {
			t.Errorf("ParseTransport(%q) = %q", valid, got)
		}
	}
	if got, err := ParseTransport(""); err != nil || got != TransportStdio {
		t.Errorf("empty transport = %q, %v, want stdio default", got, err)
	}
	_, err := ParseTransport("websocket")
	if err == nil || !strings.Contains(err.Error(), "stdio, sse, streamable-http") {
		t.Errorf("err = %v, want enumerated transports", err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	disp := testDispatcher(t)
	if _, err := New(Config{}, disp); err == nil {
		t.Error("expected error for missing name")
	}
	if _, err := New(Config{Name: "x", Transport: "carrier-pigeon"}, disp); err == nil {
		t.Error("expected error for unknown transport")
	}
	if _, err := New(Config{Name: "x"}, nil); err == nil {
		t.Error("expected error for nil dispatcher")
	}
}

func TestHealthz(t *testing.T) {
	ts := httptest.NewServer(testServer(t, Config{}).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPrometheusMetrics(reg)
	m.ObserveToolCall("echo", "success", 5*time.Millisecond)

	ts := httptest.NewServer(testServer(t, Config{Metrics: reg}).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "mcp_tool_calls_total")
}

func TestAuthGate(t *testing.T) {
	ts := httptest.NewServer(testServer(t, Config{AllowedTokens: []string{"tok1", "tok2"}}).Handler())
	defer ts.Close()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic tok1", want: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "prefixed token", header: "Bearer tok11", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, ts.URL+"/mcp", strings.NewReader("{}"))
			require.NoError(t, err)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tt.want, resp.StatusCode)

			var body struct {
				Error *errmodel.Error `json:"error"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.NotNil(t, body.Error)
			require.Equal(t, errmodel.KindAuthenticationFailed, body.Error.Kind)
		})
	}

	t.Run("valid token passes the gate", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/mcp", strings.NewReader("{}"))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer tok2")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.NotEqual(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("health and metrics stay open", func(t *testing.T) {
		for _, path := range []string{"/healthz", "/metrics"} {
			resp, err := http.Get(ts.URL + path)
			require.NoError(t, err)
			resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode, path)
		}
	})
}

func TestAuthGateDisabledWhenNoTokens(t *testing.T) {
	ts := httptest.NewServer(testServer(t, Config{}).Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/mcp", strings.NewReader("{}"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.NotEqual(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testServer(t, Config{})

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	_, err := s.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	c, err := mcpclient.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer c.Close()

	tools, err := c.ListTools(ctx)
	require.NoError(t, err)
	names := make([]string, len(tools))
	for i, tl := range tools {
		names[i] = tl.Name
	}
	require.ElementsMatch(t, []string{"echo", "boom"}, names)

	out, err := c.CallTool(ctx, "echo", map[string]any{"text": "hello"})
	require.NoError(t, err)
	require.Equal(t, "hello", out["echoed"])

	again, err := c.CallTool(ctx, "echo", map[string]any{"text": "hello"})
	require.NoError(t, err)
	require.Equal(t, out, again)

	_, err = c.CallTool(ctx, "boom", nil)
	require.Error(t, err)
	require.True(t, errmodel.IsKind(err, errmodel.KindBackendUnavailable), "err = %v", err)
}

func TestStreamableHTTPRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := testServer(t, Config{AllowedTokens: []string{"tok1"}})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	c, err := mcpclient.ConnectStreamable(ctx, ts.URL+"/mcp", &mcpclient.Options{Token: "tok1"})
	require.NoError(t, err)
	defer c.Close()

	tools, err := c.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 2)

	out, err := c.CallTool(ctx, "echo", map[string]any{"text": "over the wire"})
	require.NoError(t, err)
	require.Equal(t, "over the wire", out["echoed"])

	_, err = c.CallTool(ctx, "echo", map[string]any{"wrong": true})
	require.Error(t, err)
	require.True(t, errmodel.IsKind(err, errmodel.KindInvalidArguments), "err = %v", err)

	// Names the server never advertised still come back as the structured
	// unknown_tool error, not a protocol failure.
	_, err = c.CallTool(ctx, "no_such_tool", nil)
	require.Error(t, err)
	require.True(t, errmodel.IsKind(err, errmodel.KindUnknownTool), "err = %v", err)

	_, err = c.CallTool(ctx, "boom", nil)
	require.Error(t, err)
	require.True(t, errmodel.IsKind(err, errmodel.KindBackendUnavailable), "err = %v", err)

	results := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		out, err := c.CallTool(ctx, "echo", map[string]any{"text": fmt.Sprintf("call-%d", i)})
		require.NoError(t, err)
		results = append(results, out["echoed"].(string))
	}
	for i, got := range results {
		require.Equal(t, fmt.Sprintf("call-%d", i), got)
	}
}

func TestStreamableHTTPRejectsBadToken(t *testing.T) {
	s := testServer(t, Config{AllowedTokens: []string{"tok1"}})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := mcpclient.ConnectStreamable(ctx, ts.URL+"/mcp", &mcpclient.Options{Token: "wrong"})
	require.Error(t, err)
}
