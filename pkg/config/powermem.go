package config

import (
	"errors"
	"fmt"
	"strings"
)

// PowerMem is the store context for powermem-mcp.
type PowerMem struct {
	Server
	DBPath    string
	Embedding Embedding
}

// LoadPowerMem reads POWERMEM_DB_PATH (default powermem.db) and the
// EMBEDDING_* variables.
func LoadPowerMem() (PowerMem, error) {
	v := newBoundViper(map[string]string{
		"db_path": "POWERMEM_DB_PATH",
	})
	v.SetDefault("db_path", "powermem.db")

	cfg := PowerMem{
		Server:    loadServer(),
		DBPath:    strings.TrimSpace(v.GetString("db_path")),
		Embedding: loadEmbedding(),
	}

	var errs []string
	if cfg.DBPath == "" {
		errs = append(errs, "POWERMEM_DB_PATH must not be empty")
	}
	if !validEmbeddingProvider(cfg.Embedding.Provider) {
		errs = append(errs, fmt.Sprintf("EMBEDDING_PROVIDER must be openai, gemini or fake, got %q", cfg.Embedding.Provider))
	}
	if len(errs) > 0 {
		return PowerMem{}, errors.New(strings.Join(errs, "; "))
	}
	return cfg, nil
}
