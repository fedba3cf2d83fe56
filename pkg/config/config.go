// Package config loads the per-binary credential context from the
// environment. Each Load* function reads its variables once and returns an
// immutable struct; nothing in the process mutates configuration after main
// has constructed it.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Server holds the settings shared by every binary.
type Server struct {
	// AllowedTokens is the bearer-token set for the HTTP transports.
	// Empty disables the auth gate.
	AllowedTokens []string
	// TraceStdout enables the stdout span exporter.
	TraceStdout bool
}

// Embedding selects the embedding provider for the vector-capable servers.
type Embedding struct {
	Provider  string
	Model     string
	OpenAIKey string
	GeminiKey string
}

func loadServer() Server {
	v := newBoundViper(map[string]string{
		"allowed_tokens": "ALLOWED_TOKENS",
		"trace_stdout":   "MCP_TRACE_STDOUT",
	})
	v.SetDefault("allowed_tokens", "")
	v.SetDefault("trace_stdout", false)
	return Server{
		AllowedTokens: SplitTokens(v.GetString("allowed_tokens")),
		TraceStdout:   v.GetBool("trace_stdout"),
	}
}

func loadEmbedding() Embedding {
	v := newBoundViper(map[string]string{
		"provider":   "EMBEDDING_PROVIDER",
		"model":      "EMBEDDING_MODEL",
		"openai_key": "OPENAI_API_KEY",
		"gemini_key": "GEMINI_API_KEY",
	})
	v.SetDefault("provider", "fake")
	return Embedding{
		Provider:  strings.ToLower(strings.TrimSpace(v.GetString("provider"))),
		Model:     v.GetString("model"),
		OpenAIKey: v.GetString("openai_key"),
		GeminiKey: v.GetString("gemini_key"),
	}
}

func validEmbeddingProvider(provider string) bool {
	switch provider {
	case "openai", "gemini", "fake":
		return true
	default:
		return false
	}
}

// SplitTokens splits a comma-separated token list, dropping empty entries.
// Tokens keep their bytes as written; the auth gate matches them exactly.
func SplitTokens(raw string) []string {
	if raw == "" {
		return nil
	}
	var tokens []string
	for _, tok := range strings.Split(raw, ",") {
		if tok == "" {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// newBoundViper returns a fresh viper instance with each config key bound
// to its environment variable. Defaults are set by the caller.
func newBoundViper(vars map[string]string) *viper.Viper {
	v := viper.New()
	for key, env := range vars {
		_ = v.BindEnv(key, env)
	}
	return v
}
