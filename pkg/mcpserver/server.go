// Package mcpserver binds a tool dispatcher to the MCP transports: stdio,
// SSE, and streamable HTTP. The HTTP transports share one router carrying
// the auth gate, request logging, tracing, and the health and metrics
// endpoints; stdio serves a single session on the process pipes.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
	"github.com/oceanbase/mcp-oceanbase/pkg/tool"
)

// Transport modes. stdio is the default; the HTTP modes differ only in
// which endpoint the client speaks to.
const (
	TransportStdio          = "stdio"
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable-http"
)

// ParseTransport validates a transport name, accepting the empty string as
// the stdio default.
func ParseTransport(s string) (string, error) {
	switch s {
	case "":
		return TransportStdio, nil
	case TransportStdio, TransportSSE, TransportStreamableHTTP:
		return s, nil
	default:
		return "", fmt.Errorf("unknown transport %q (valid: stdio, sse, streamable-http)", s)
	}
}

// Config assembles a Server. Name is required; everything else has a
// serving default.
type Config struct {
	// Name and Version identify the server in the MCP handshake.
	Name    string
	Version string
	// Transport is one of the Transport constants. Defaults to stdio.
	Transport string
	// Host and Port bind the HTTP transports. Default 127.0.0.1:8000.
	Host string
	Port int
	// AllowedTokens enables the bearer-token gate on /mcp and /sse when
	// non-empty. /healthz and /metrics stay open.
	AllowedTokens []string
	// Metrics is the registry behind /metrics. Nil serves the default
	// registry.
	Metrics prometheus.Gatherer
	// DrainTimeout bounds graceful HTTP shutdown. Default 10s.
	DrainTimeout time.Duration
	Logger       *zap.Logger
}

// Server owns one SDK server wired to the dispatcher and serves it over
// the configured transport. The SDK manages sessions; Server itself holds
// no per-call state.
type Server struct {
	cfg  Config
	disp *tool.Dispatcher
	mcp  *mcp.Server
}

// New builds the Server and registers every dispatcher tool with the SDK.
func New(cfg Config, disp *tool.Dispatcher) (*Server, error) {
	if cfg.Name == "" {
		return nil, errors.New("mcpserver: server name is required")
	}
	if disp == nil {
		return nil, errors.New("mcpserver: dispatcher is required")
	}
	transport, err := ParseTransport(cfg.Transport)
	if err != nil {
		return nil, err
	}
	cfg.Transport = transport
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Server{cfg: cfg, disp: disp}
	s.mcp = s.buildMCP()
	return s, nil
}

// MCPServer exposes the underlying SDK server for in-process connections.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

func (s *Server) buildMCP() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    s.cfg.Name,
		Version: s.cfg.Version,
	}, &mcp.ServerOptions{HasTools: true})
	srv.AddReceivingMiddleware(s.unknownToolMiddleware())

	s.disp.Registry().Range(func(t tool.Tool) {
		desc := t.Describe()
		mt := &mcp.Tool{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: desc.InputSchema,
		}
		if desc.OutputSchema != nil {
			mt.OutputSchema = desc.OutputSchema
		}
		srv.AddTool(mt, s.toolHandler(desc.Name))
	})
	return srv
}

// unknownToolMiddleware turns calls naming an unregistered tool into the
// structured unknown_tool result on every transport; the SDK would
// otherwise reject them at the protocol layer.
func (s *Server) unknownToolMiddleware() mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if method == "tools/call" {
				if call, ok := req.(*mcp.CallToolRequest); ok {
					if _, found := s.disp.Registry().Resolve(call.Params.Name); !found {
						return errorResult(errmodel.UnknownTool(call.Params.Name)), nil
					}
				}
			}
			return next(ctx, method, req)
		}
	}
}

// toolHandler adapts one dispatcher tool to the SDK handler contract.
// Dispatch failures become IsError results carrying the structured error,
// never protocol errors, so a failing backend cannot tear down a session.
func (s *Server) toolHandler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args map[string]any
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult(errmodel.InvalidArguments("arguments", "arguments must be a JSON object")), nil
			}
		}
		out, err := s.disp.Dispatch(ctx, name, args)
		if err != nil {
			return errorResult(errmodel.From(err)), nil
		}
		return successResult(out), nil
	}
}

func successResult(out map[string]any) *mcp.CallToolResult {
	text, err := json.Marshal(out)
	if err != nil {
		return errorResult(errmodel.Execution("encode tool result: "+err.Error(), nil))
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(text)}},
		StructuredContent: out,
	}
}

func errorResult(e *errmodel.Error) *mcp.CallToolResult {
	body := map[string]any{"error": e}
	text, _ := json.Marshal(body)
	return &mcp.CallToolResult{
		IsError:           true,
		Content:           []mcp.Content{&mcp.TextContent{Text: string(text)}},
		StructuredContent: body,
	}
}

// Run serves until ctx is canceled. stdio runs the single session inline;
// the HTTP modes start the shared HTTP server and drain it on cancel.
func (s *Server) Run(ctx context.Context) error {
	switch s.cfg.Transport {
	case TransportStdio:
		s.cfg.Logger.Info("serving mcp",
			zap.String("server", s.cfg.Name),
			zap.String("transport", TransportStdio))
		return s.mcp.Run(ctx, &mcp.StdioTransport{})
	case TransportSSE, TransportStreamableHTTP:
		return s.serveHTTP(ctx)
	default:
		return fmt.Errorf("unknown transport %q (valid: stdio, sse, streamable-http)", s.cfg.Transport)
	}
}

func (s *Server) serveHTTP(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.cfg.Logger.Info("serving mcp",
			zap.String("server", s.cfg.Name),
			zap.String("transport", s.cfg.Transport),
			zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.cfg.Logger.Info("draining http server", zap.Duration("timeout", s.cfg.DrainTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.DrainTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// healthBody is the fixed /healthz payload.
var healthBody = []byte(`{"status":"ok"}` + "\n")

func (s *Server) metricsHandler() http.Handler {
	if s.cfg.Metrics != nil {
		return promhttp.HandlerFor(s.cfg.Metrics, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}
