package config

import (
	"errors"
	"strings"
	"time"
)

// Obdiag is the runner context for obdiag-mcp. Gathers can take a while, so
// the default command timeout is ten minutes.
type Obdiag struct {
	Server
	ConfigFile string
	Timeout    time.Duration
}

// LoadObdiag reads the optional OBDIAG_CONFIG_FILE and OBDIAG_TIMEOUT
// (seconds, default 600).
func LoadObdiag() (Obdiag, error) {
	v := newBoundViper(map[string]string{
		"config_file":     "OBDIAG_CONFIG_FILE",
		"timeout_seconds": "OBDIAG_TIMEOUT",
	})
	v.SetDefault("timeout_seconds", 600)

	cfg := Obdiag{
		Server:     loadServer(),
		ConfigFile: strings.TrimSpace(v.GetString("config_file")),
		Timeout:    time.Duration(v.GetInt("timeout_seconds")) * time.Second,
	}

	var errs []string
	if cfg.Timeout <= 0 {
		errs = append(errs, "OBDIAG_TIMEOUT must be > 0")
	}
	if len(errs) > 0 {
		return Obdiag{}, errors.New(strings.Join(errs, "; "))
	}
	return cfg, nil
}
