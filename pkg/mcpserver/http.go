package mcpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
)

// Handler returns the shared HTTP surface: the streamable transport on
// /mcp, the SSE transport on /sse, and the open /healthz and /metrics
// endpoints. Both MCP paths sit behind the auth gate and are always
// mounted, so a client may speak either HTTP dialect to one process.
func (s *Server) Handler() http.Handler {
	getServer := func(*http.Request) *mcp.Server { return s.mcp }
	streamable := mcp.NewStreamableHTTPHandler(getServer, &mcp.StreamableHTTPOptions{
		JSONResponse: true,
	})
	sse := mcp.NewSSEHandler(getServer, nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(healthBody)
	})
	r.Method(http.MethodGet, "/metrics", s.metricsHandler())

	r.Group(func(gr chi.Router) {
		gr.Use(bearerAuth(s.cfg.AllowedTokens))
		gr.Handle("/mcp", otelhttp.NewHandler(streamable, "mcp.streamable"))
		gr.Handle("/sse", otelhttp.NewHandler(sse, "mcp.sse"))
	})

	return r
}

// bearerAuth rejects requests without a configured bearer token. An empty
// token set disables the gate. Matching is exact; the tokens keep their
// bytes as configured.
func bearerAuth(tokens []string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(set) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			const prefix = "Bearer "
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, prefix) {
				errmodel.WriteHTTP(w, r, errmodel.AuthFailed("missing bearer token"))
				return
			}
			if _, ok := set[header[len(prefix):]]; !ok {
				errmodel.WriteHTTP(w, r, errmodel.AuthFailed("invalid bearer token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
