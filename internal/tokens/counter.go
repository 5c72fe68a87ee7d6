// Package tokens provides prompt token counting for the analysis oracle.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts the tokens a prompt will consume for a model.
type Counter interface {
	// Count returns the token count and whether it is an estimate.
	Count(model, text string) (int, bool)
}

// TiktokenCounter counts tokens with tiktoken encodings. The self-hosted chat
// models the oracle talks to have no published tokenizer, so their counts are
// a close approximation with the nearest BPE encoding rather than an exact figure.
type TiktokenCounter struct {
	// codecCache caches tokenizer codecs by encoding name
	codecCache map[tokenizer.Encoding]tokenizer.Codec
	cacheMu    sync.RWMutex
	fallback   *Estimator
}

// NewTiktokenCounter creates a new tiktoken-backed counter.
func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{
		codecCache: make(map[tokenizer.Encoding]tokenizer.Codec),
		fallback:   NewEstimator(),
	}
}

// Count implements Counter. If no codec can be loaded it falls back to the
// character estimator.
func (c *TiktokenCounter) Count(model, text string) (int, bool) {
	codec, err := c.getCodec(model)
	if err != nil {
		return c.fallback.Count(model, text)
	}

	ids, _, err := codec.Encode(text)
	if err != nil {
		return c.fallback.Count(model, text)
	}
	return len(ids), !hasPublishedEncoding(model)
}

// getCodec returns the tokenizer codec for a model.
func (c *TiktokenCounter) getCodec(model string) (tokenizer.Codec, error) {
	encoding := modelToEncoding(model)

	// Check cache
	c.cacheMu.RLock()
	if cached, ok := c.codecCache[encoding]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	c.cacheMu.Lock()
	c.codecCache[encoding] = codec
	c.cacheMu.Unlock()

	return codec, nil
}

// hasPublishedEncoding reports whether tiktoken counts for model are exact.
func hasPublishedEncoding(model string) bool {
	model = strings.ToLower(model)
	return strings.HasPrefix(model, "gpt-") || strings.HasPrefix(model, "o1") ||
		strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4")
}

// modelToEncoding maps model names to encoding names.
//
// Encoding reference:
// - O200kBase: GPT-4o, GPT-4.1, GPT-5, o-series, and everything unknown
// - Cl100kBase: GPT-4, GPT-3.5-turbo, and the Qwen/Llama chat models served by Ollama
func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4.1"), strings.HasPrefix(model, "gpt-5"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	case strings.HasPrefix(model, "qwen"), strings.HasPrefix(model, "gwen"), strings.HasPrefix(model, "llama"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}

// Estimator provides rough token estimates based on character count.
type Estimator struct {
	CharsPerToken float64
}

// NewEstimator creates a new token estimator.
func NewEstimator() *Estimator {
	return &Estimator{
		CharsPerToken: 4.0, // Reasonable default for most models
	}
}

// Count implements Counter. The result is always an estimate.
func (e *Estimator) Count(_ string, text string) (int, bool) {
	if text == "" {
		return 0, true
	}
	n := int(float64(len(text)) / e.CharsPerToken)
	if n == 0 {
		n = 1
	}
	return n, true
}
