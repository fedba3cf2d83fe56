package config

import (
	"errors"
	"strings"
	"time"
)

// OCP is the signed-HTTP client context for ocp-mcp. URL and both access
// key halves are mandatory.
type OCP struct {
	Server
	BaseURL         string
	AccessKeyID     string
	AccessKeySecret string
	Timeout         time.Duration
}

// LoadOCP reads OCP_URL, OCP_ACCESS_KEY_ID, OCP_ACCESS_KEY_SECRET and the
// optional OCP_TIMEOUT (seconds, default 30).
func LoadOCP() (OCP, error) {
	v := newBoundViper(map[string]string{
		"url":               "OCP_URL",
		"access_key_id":     "OCP_ACCESS_KEY_ID",
		"access_key_secret": "OCP_ACCESS_KEY_SECRET",
		"timeout_seconds":   "OCP_TIMEOUT",
	})
	v.SetDefault("timeout_seconds", 30)

	cfg := OCP{
		Server:          loadServer(),
		BaseURL:         normalizeBaseURL(v.GetString("url")),
		AccessKeyID:     v.GetString("access_key_id"),
		AccessKeySecret: v.GetString("access_key_secret"),
		Timeout:         time.Duration(v.GetInt("timeout_seconds")) * time.Second,
	}

	var errs []string
	if cfg.BaseURL == "" {
		errs = append(errs, "OCP_URL environment variable is required")
	}
	if cfg.AccessKeyID == "" {
		errs = append(errs, "OCP_ACCESS_KEY_ID environment variable is required")
	}
	if cfg.AccessKeySecret == "" {
		errs = append(errs, "OCP_ACCESS_KEY_SECRET environment variable is required")
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, "OCP_TIMEOUT must be > 0")
	}
	if len(errs) > 0 {
		return OCP{}, errors.New(strings.Join(errs, "; "))
	}
	return cfg, nil
}

// normalizeBaseURL prefixes bare hosts with http:// and strips a trailing
// slash so path joining stays predictable.
func normalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http") {
		raw = "http://" + raw
	}
	return strings.TrimRight(raw, "/")
}
