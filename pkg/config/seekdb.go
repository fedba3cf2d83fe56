package config

import (
	"errors"
	"fmt"
	"strings"
)

// SeekDB is the connection context for seekdb-mcp: a MySQL-wire endpoint
// plus the embedding provider used for collection text.
type SeekDB struct {
	Server
	Host      string
	Port      int
	User      string
	Password  string
	Database  string
	Embedding Embedding
}

// LoadSeekDB reads SEEKDB_HOST, SEEKDB_PORT, SEEKDB_USER, SEEKDB_PASSWORD,
// SEEKDB_DATABASE and the EMBEDDING_* variables.
func LoadSeekDB() (SeekDB, error) {
	v := newBoundViper(map[string]string{
		"host":     "SEEKDB_HOST",
		"port":     "SEEKDB_PORT",
		"user":     "SEEKDB_USER",
		"password": "SEEKDB_PASSWORD",
		"database": "SEEKDB_DATABASE",
	})
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 2881)
	v.SetDefault("user", "root")
	v.SetDefault("database", "test")

	cfg := SeekDB{
		Server:    loadServer(),
		Host:      strings.TrimSpace(v.GetString("host")),
		Port:      v.GetInt("port"),
		User:      v.GetString("user"),
		Password:  v.GetString("password"),
		Database:  v.GetString("database"),
		Embedding: loadEmbedding(),
	}

	var errs []string
	if cfg.Host == "" {
		errs = append(errs, "SEEKDB_HOST must not be empty")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, "SEEKDB_PORT must be in 1..65535")
	}
	if cfg.User == "" {
		errs = append(errs, "SEEKDB_USER must not be empty")
	}
	if cfg.Database == "" {
		errs = append(errs, "SEEKDB_DATABASE must not be empty")
	}
	if !validEmbeddingProvider(cfg.Embedding.Provider) {
		errs = append(errs, fmt.Sprintf("EMBEDDING_PROVIDER must be openai, gemini or fake, got %q", cfg.Embedding.Provider))
	}
	if len(errs) > 0 {
		return SeekDB{}, errors.New(strings.Join(errs, "; "))
	}
	return cfg, nil
}
