package config

import (
	"errors"
	"strings"
)

// OceanBase is the connection context for oceanbase-mcp.
type OceanBase struct {
	Server
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// LoadOceanBase reads OB_HOST, OB_PORT, OB_USER, OB_PASSWORD and
// OB_DATABASE, applying the documented defaults.
func LoadOceanBase() (OceanBase, error) {
	v := newBoundViper(map[string]string{
		"host":     "OB_HOST",
		"port":     "OB_PORT",
		"user":     "OB_USER",
		"password": "OB_PASSWORD",
		"database": "OB_DATABASE",
	})
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 2881)
	v.SetDefault("user", "root@sys")
	v.SetDefault("database", "test")

	cfg := OceanBase{
		Server:   loadServer(),
		Host:     strings.TrimSpace(v.GetString("host")),
		Port:     v.GetInt("port"),
		User:     v.GetString("user"),
		Password: v.GetString("password"),
		Database: v.GetString("database"),
	}

	var errs []string
	if cfg.Host == "" {
		errs = append(errs, "OB_HOST must not be empty")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, "OB_PORT must be in 1..65535")
	}
	if cfg.User == "" {
		errs = append(errs, "OB_USER must not be empty")
	}
	if cfg.Database == "" {
		errs = append(errs, "OB_DATABASE must not be empty")
	}
	if len(errs) > 0 {
		return OceanBase{}, errors.New(strings.Join(errs, "; "))
	}
	return cfg, nil
}
