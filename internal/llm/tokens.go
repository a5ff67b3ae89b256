package llm

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenCounter implements TokenCounter on a tiktoken encoding. Claude and
// Gemini tokenizers are approximated with cl100k_base, which is close enough
// for budget checks.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
	mu       sync.Mutex
}

var (
	encodingCache   = make(map[string]*tiktoken.Tiktoken)
	encodingCacheMu sync.Mutex
)

// NewTokenCounter creates a counter for the model, falling back to
// cl100k_base when the model has no registered encoding.
func NewTokenCounter(model string) (*TiktokenCounter, error) {
	encodingCacheMu.Lock()
	defer encodingCacheMu.Unlock()

	if cached, ok := encodingCache[model]; ok {
		return &TiktokenCounter{encoding: cached}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get encoding: %w", err)
		}
	}

	encodingCache[model] = encoding

	return &TiktokenCounter{encoding: encoding}, nil
}

// CountTokens returns the token count of text.
func (c *TiktokenCounter) CountTokens(text string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.encoding.Encode(text, nil, nil)), nil
}
