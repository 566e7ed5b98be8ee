package llm

import (
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter bounds prompt size before a model call so a ticket with a
// pathological description cannot blow the per-call token budget.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter loads the cl100k_base encoding used by the supported chat
// models.
func NewTokenCounter() (*TokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &TokenCounter{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (t *TokenCounter) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// Truncate cuts text down to at most maxTokens tokens, decoding back through
// the tokenizer so the cut lands on a token boundary.
func (t *TokenCounter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	ids := t.enc.Encode(text, nil, nil)
	if len(ids) <= maxTokens {
		return text
	}
	return t.enc.Decode(ids[:maxTokens])
}
