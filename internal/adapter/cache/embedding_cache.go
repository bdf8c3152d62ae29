package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"incidentkb/internal/port"
)

// EmbeddingCache is a bounded LRU of text -> vector with a TTL. Keys are
// hashes of the model name and text, so raw incident text is not retained.
type EmbeddingCache struct {
	lru *expirable.LRU[string, []float32]
}

func NewEmbeddingCache(maxSize int, ttl time.Duration) *EmbeddingCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &EmbeddingCache{
		lru: expirable.NewLRU[string, []float32](maxSize, nil, ttl),
	}
}

func cacheKey(model, text string) string {
	hash := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(hash[:16])
}

func (c *EmbeddingCache) Get(model, text string) ([]float32, bool) {
	vec, ok := c.lru.Get(cacheKey(model, text))
	if !ok {
		return nil, false
	}
	return cloneVector(vec), true
}

func (c *EmbeddingCache) Put(model, text string, vector []float32) {
	c.lru.Add(cacheKey(model, text), cloneVector(vector))
}

func (c *EmbeddingCache) Size() int {
	return c.lru.Len()
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

// CachedEmbedder serves repeated texts from an EmbeddingCache. Failed calls
// are never cached.
type CachedEmbedder struct {
	embedder port.Embedder
	cache    *EmbeddingCache
}

func NewCachedEmbedder(embedder port.Embedder, cache *EmbeddingCache) *CachedEmbedder {
	return &CachedEmbedder{
		embedder: embedder,
		cache:    cache,
	}
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	model := e.embedder.ModelName()
	if vec, hit := e.cache.Get(model, text); hit {
		return vec, nil
	}

	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.cache.Put(model, text, vec)
	return vec, nil
}

func (e *CachedEmbedder) Dimension() int {
	return e.embedder.Dimension()
}

func (e *CachedEmbedder) ModelName() string {
	return e.embedder.ModelName()
}
