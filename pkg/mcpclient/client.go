// Package mcpclient is a thin client for the MCP servers in this repo. It
// wraps an SDK session, adds the bearer header the auth gate expects, and
// decodes tool results back into the map form the dispatcher produced.
package mcpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"os/exec"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
)

// Options configures a connection. The zero value works.
type Options struct {
	// Name and Version identify the client in the MCP handshake.
	Name    string
	Version string
	// Token is sent as Authorization: Bearer on HTTP transports.
	Token string
	// HTTPClient overrides the transport for ConnectStreamable.
	HTTPClient *http.Client
}

func (o *Options) implementation() *mcp.Implementation {
	name, version := "mcp-oceanbase-client", "dev"
	if o != nil && o.Name != "" {
		name = o.Name
	}
	if o != nil && o.Version != "" {
		version = o.Version
	}
	return &mcp.Implementation{Name: name, Version: version}
}

// Client is a connected MCP session.
type Client struct {
	session *mcp.ClientSession
}

// Connect performs the MCP handshake over an already-built transport.
func Connect(ctx context.Context, transport mcp.Transport, opts *Options) (*Client, error) {
	client := mcp.NewClient(opts.implementation(), nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, errmodel.Unavailable("mcp server", err)
	}
	return &Client{session: session}, nil
}

// ConnectCommand launches cmd as a stdio MCP server and connects to it.
// The subprocess lives for the life of the session.
func ConnectCommand(ctx context.Context, cmd *exec.Cmd, opts *Options) (*Client, error) {
	return Connect(ctx, &mcp.CommandTransport{Command: cmd}, opts)
}

// ConnectStreamable connects to a streamable HTTP endpoint, typically
// http://host:port/mcp.
func ConnectStreamable(ctx context.Context, endpoint string, opts *Options) (*Client, error) {
	httpClient := http.DefaultClient
	if opts != nil && opts.HTTPClient != nil {
		httpClient = opts.HTTPClient
	}
	if opts != nil && opts.Token != "" {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		clone := *httpClient
		clone.Transport = &bearerRoundTripper{base: base, token: opts.Token}
		httpClient = &clone
	}
	return Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint:   endpoint,
		HTTPClient: httpClient,
	}, opts)
}

// ListTools returns the server's advertised tools.
func (c *Client) ListTools(ctx context.Context) ([]*mcp.Tool, error) {
	res, err := c.session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, errmodel.From(err)
	}
	return res.Tools, nil
}

// CallTool invokes one tool. IsError results come back as the structured
// *errmodel.Error the server embedded, so callers branch on Kind exactly
// as they would in-process.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	if args == nil {
		args = map[string]any{}
	}
	res, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, errmodel.From(err)
	}
	if res.IsError {
		return nil, resultError(res)
	}
	return resultPayload(res), nil
}

// Ping checks session liveness.
func (c *Client) Ping(ctx context.Context) error {
	return c.session.Ping(ctx, nil)
}

// Close tears down the session and, for command transports, the
// subprocess.
func (c *Client) Close() error { return c.session.Close() }

func resultError(res *mcp.CallToolResult) *errmodel.Error {
	var env struct {
		Error *errmodel.Error `json:"error"`
	}
	if sc, ok := res.StructuredContent.(map[string]any); ok {
		if raw, err := json.Marshal(sc); err == nil {
			if json.Unmarshal(raw, &env) == nil && env.Error != nil && env.Error.Kind != "" {
				return env.Error
			}
		}
	}
	for _, content := range res.Content {
		text, ok := content.(*mcp.TextContent)
		if !ok {
			continue
		}
		if json.Unmarshal([]byte(text.Text), &env) == nil && env.Error != nil && env.Error.Kind != "" {
			return env.Error
		}
		return errmodel.Execution(text.Text, nil)
	}
	return errmodel.Execution("tool call failed", nil)
}

func resultPayload(res *mcp.CallToolResult) map[string]any {
	if m, ok := res.StructuredContent.(map[string]any); ok {
		return m
	}
	for _, content := range res.Content {
		text, ok := content.(*mcp.TextContent)
		if !ok {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(text.Text), &m); err == nil {
			return m
		}
		return map[string]any{"text": text.Text}
	}
	return map[string]any{}
}

type bearerRoundTripper struct {
	base  http.RoundTripper
	token string
}

func (b *bearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+b.token)
	return b.base.RoundTrip(req)
}
