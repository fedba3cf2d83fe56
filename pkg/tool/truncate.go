package tool

import (
	"encoding/json"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// TokenEstimator estimates token usage of text content.
type TokenEstimator func(text string) int

// NewTikTokenEstimator returns a TokenEstimator backed by tiktoken-go for
// the given model. If the model is unknown, EncodingForModel returns an
// error.
func NewTikTokenEstimator(model string) (TokenEstimator, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, err
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}, nil
}

// truncator bounds the token size of successful payloads. Oversized
// results are replaced by a marker carrying a prefix of the JSON text, so
// a runaway SELECT or log gather cannot blow out the client's context
// window.
type truncator struct {
	estimate  TokenEstimator
	maxTokens int
}

func (tr *truncator) apply(payload map[string]any) map[string]any {
	if tr == nil || tr.maxTokens <= 0 || payload == nil {
		return payload
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return payload
	}
	text := string(b)
	total := tr.estimate(text)
	if total <= tr.maxTokens {
		return payload
	}
	runes := []rune(text)
	keep := len(runes) * tr.maxTokens / total
	for keep > 0 && tr.estimate(string(runes[:keep])) > tr.maxTokens {
		keep = keep * 9 / 10
	}
	return map[string]any{
		"truncated":   true,
		"token_limit": tr.maxTokens,
		"content":     string(runes[:keep]),
	}
}
