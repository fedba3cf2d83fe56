// Package ocp exposes the OCP management API as MCP tools. Every request
// is signed with the access key pair; the catalog itself is table-driven.
package ocp

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oceanbase/mcp-oceanbase/pkg/config"
	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
)

// ocpOrigin identifies this client to OCP; it participates in signing.
const ocpOrigin = "mcp-server"

// Client signs and sends OCP API requests.
type Client struct {
	baseURL string
	host    string
	keyID   string
	secret  string
	timeout time.Duration
	http    *http.Client
	logger  *zap.Logger
	now     func() time.Time
}

// NewClient builds a signing client from validated configuration.
func NewClient(cfg config.OCP, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse OCP base url: %w", err)
	}
	return &Client{
		baseURL: cfg.BaseURL,
		host:    u.Host,
		keyID:   cfg.AccessKeyID,
		secret:  cfg.AccessKeySecret,
		timeout: cfg.Timeout,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger.Named("ocp"),
		now:     time.Now,
	}, nil
}

// Do sends a signed request and decodes the JSON response. body, when not
// nil, is marshaled as the JSON payload.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (map[string]any, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errmodel.Execution("encode request body: "+err.Error(), map[string]any{"path": path})
		}
		payload = b
	}
	resp, err := c.send(ctx, method, path, query, payload, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errmodel.Unavailable("ocp", err)
	}
	if resp.StatusCode >= 400 {
		return nil, statusError(resp.StatusCode, path, data)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errmodel.Execution("decode ocp response: "+err.Error(), map[string]any{"path": path})
	}
	return out, nil
}

// Download sends a signed GET accepting any content type and streams the
// body into dest. Performance reports come back as HTML this way.
func (c *Client) Download(ctx context.Context, path string, query url.Values, dest string) error {
	resp, err := c.send(ctx, http.MethodGet, path, query, nil, map[string]string{"Accept": "*/*"})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return statusError(resp.StatusCode, path, data)
	}
	// Stream into a uniquely named sibling and rename into place once the
	// body is fully written, so dest is never a partial report.
	tmp := dest + "." + uuid.NewString() + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return errmodel.Execution("create report file: "+err.Error(), map[string]any{"path": tmp})
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return errmodel.Execution("write report file: "+err.Error(), map[string]any{"path": dest})
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errmodel.Execution("write report file: "+err.Error(), map[string]any{"path": dest})
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return errmodel.Execution("move report file: "+err.Error(), map[string]any{"path": dest})
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, extra map[string]string) (*http.Response, error) {
	date := c.now().UTC().Format(http.TimeFormat)
	contentType := ""
	if payload != nil {
		contentType = "application/json"
	}
	sig := c.sign(method, path, query, contentType, date, payload)

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, errmodel.Execution("build request: "+err.Error(), map[string]any{"path": path})
	}
	req.Header.Set("Authorization", fmt.Sprintf("OCP-ACCESS-KEY-HMACSHA1 %s:%s", c.keyID, sig))
	req.Header.Set("Date", date)
	req.Header.Set("x-ocp-origin", ocpOrigin)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	c.logger.Debug("sending request", zap.String("method", method), zap.String("path", path))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.mapTransportErr(err)
	}
	return resp, nil
}

func (c *Client) mapTransportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errmodel.Timeout("ocp request", c.timeout)
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return errmodel.Timeout("ocp request", c.timeout)
	}
	return errmodel.Unavailable("ocp", err)
}

func statusError(status int, path string, body []byte) error {
	return errmodel.Execution(
		fmt.Sprintf("ocp api returned status %d: %s", status, strings.TrimSpace(string(body))),
		map[string]any{"status": status, "path": path},
	)
}

// sign computes the request signature: base64(hmac-sha1(secret, stringToSign)).
func (c *Client) sign(method, path string, query url.Values, contentType, date string, payload []byte) string {
	mac := hmac.New(sha1.New, []byte(c.secret))
	mac.Write([]byte(c.stringToSign(method, path, query, contentType, date, payload)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// stringToSign assembles the canonical request form both sides agree on:
// method, body MD5, content type, date, host, the x-ocp-* headers, and the
// path with its sorted query.
func (c *Client) stringToSign(method, path string, query url.Values, contentType, date string, payload []byte) string {
	parts := []string{
		strings.ToUpper(method),
		bodyMD5(payload),
		contentType,
		date,
		c.host,
		// x-ocp-* headers, lowercase names sorted; this client always
		// sends exactly one.
		"x-ocp-origin:" + ocpOrigin,
		signedPath(path, query),
	}
	return strings.Join(parts, "\n")
}

// bodyMD5 renders the payload digest as uppercase hex, or "" for an empty
// body.
func bodyMD5(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	sum := md5.Sum(payload)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// signedPath is the path alone, or path?query with the keys sorted and
// both keys and values fully percent-encoded.
func signedPath(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, percentEncode(k)+"="+percentEncode(query.Get(k)))
	}
	return path + "?" + strings.Join(pairs, "&")
}

// percentEncode escapes every byte outside the RFC 3986 unreserved set.
// url.QueryEscape is close but spaces become "+", which the server does
// not accept inside the signed form.
func percentEncode(s string) string {
	const unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(unreserved, s[i]) >= 0 {
			b.WriteByte(s[i])
		} else {
			fmt.Fprintf(&b, "%%%02X", s[i])
		}
	}
	return b.String()
}
