// okctl-mcp serves the OceanBase-on-Kubernetes tool catalog over MCP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oceanbase/mcp-oceanbase/pkg/backend/okctl"
	"github.com/oceanbase/mcp-oceanbase/pkg/config"
	"github.com/oceanbase/mcp-oceanbase/pkg/mcpserver"
	"github.com/oceanbase/mcp-oceanbase/pkg/metrics"
	"github.com/oceanbase/mcp-oceanbase/pkg/otel"
	"github.com/oceanbase/mcp-oceanbase/pkg/tool"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		transport string
		host      string
		port      int
	)
	cmd := &cobra.Command{
		Use:          "okctl-mcp [stdio|sse|streamable-http] [port]",
		Short:        "MCP server for OceanBase clusters on Kubernetes",
		Args:         cobra.MaximumNArgs(2),
		Version:      fmt.Sprintf("%s (commit=%s, date=%s)", version, commit, date),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				transport = args[0]
			}
			if len(args) > 1 {
				p, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid port %q", args[1])
				}
				port = p
			}
			return serve(cmd.Context(), transport, host, port)
		},
	}
	cmd.Flags().StringVar(&transport, "transport", mcpserver.TransportStdio, "transport mode (stdio, sse, streamable-http)")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "bind address for HTTP transports")
	cmd.Flags().IntVar(&port, "port", 8000, "listen port for HTTP transports")
	return cmd
}

func serve(ctx context.Context, transport, host string, port int) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.LoadOkctl()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := otel.Init(ctx, otel.Config{
		ServiceName:    "okctl-mcp",
		ServiceVersion: version,
		UseStdout:      cfg.TraceStdout,
	})
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	backend := okctl.New(cfg, logger)

	reg := tool.NewRegistry()
	reg.MustRegister(backend.Tools()...)

	disp, err := tool.NewDispatcher(reg,
		tool.WithLogger(logger),
		tool.WithObserver(metrics.NewPrometheusMetrics(nil)),
	)
	if err != nil {
		return err
	}

	srv, err := mcpserver.New(mcpserver.Config{
		Name:          "okctl-mcp",
		Version:       version,
		Transport:     transport,
		Host:          host,
		Port:          port,
		AllowedTokens: cfg.AllowedTokens,
		Logger:        logger,
	}, disp)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
