package tokens

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tiktoken-go/tokenizer"
)

// DefaultEncoding matches the BPE vocabulary of the embedding stage.
const DefaultEncoding = "cl100k_base"

// Counter maps text to a token count. Implementations must be deterministic.
type Counter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with a local BPE codec and memoises results.
// It is safe for concurrent use.
type TiktokenCounter struct {
	codec tokenizer.Codec
	cache *lru.Cache[string, int]
}

// NewTiktokenCounter loads the named encoding. cacheSize <= 0 disables memoisation.
func NewTiktokenCounter(encoding string, cacheSize int) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	codec, err := tokenizer.Get(tokenizer.Encoding(encoding))
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer %s: %w", encoding, err)
	}

	c := &TiktokenCounter{codec: codec}
	if cacheSize > 0 {
		cache, err := lru.New[string, int](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create token cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// Count returns the number of tokens text encodes to.
func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.cache != nil {
		if n, ok := c.cache.Get(text); ok {
			return n
		}
	}
	ids, _, err := c.codec.Encode(text)
	n := len(ids)
	if err != nil {
		// Never undercount: fall back to one token per byte.
		n = len(text)
	}
	if c.cache != nil {
		c.cache.Add(text, n)
	}
	return n
}
