package service

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// CachedEmbedder memoises embeddings by a hash of model name and text, so a
// changed text or model always misses. Eviction is least-recently-used.
type CachedEmbedder struct {
	inner   EmbeddingProvider
	maxSize int

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is most recently used

	hits   int64
	misses int64
}

type cachedEmbedding struct {
	key    string
	vector []float32
}

// NewCachedEmbedder wraps inner with an LRU of at most maxSize vectors.
// A non-positive maxSize returns inner unchanged.
func NewCachedEmbedder(inner EmbeddingProvider, maxSize int) EmbeddingProvider {
	if maxSize <= 0 {
		return inner
	}
	return &CachedEmbedder{
		inner:   inner,
		maxSize: maxSize,
		entries: make(map[string]*list.Element, maxSize),
		order:   list.New(),
	}
}

// Model returns the wrapped provider's model.
func (c *CachedEmbedder) Model() string { return c.inner.Model() }

// Dimensions returns the wrapped provider's dimension.
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// Embed returns the cached vector for text or asks the wrapped provider.
// Errors are not cached.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	if vector, ok := c.get(key); ok {
		return vector, nil
	}

	vector, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.set(key, vector)
	return copyVector(vector), nil
}

// Stats returns the hit and miss counters.
func (c *CachedEmbedder) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.inner.Model() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return copyVector(el.Value.(*cachedEmbedding).vector), true
}

func (c *CachedEmbedder) set(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cachedEmbedding).vector = copyVector(vector)
		c.order.MoveToFront(el)
		return
	}

	for c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cachedEmbedding).key)
	}

	c.entries[key] = c.order.PushFront(&cachedEmbedding{key: key, vector: copyVector(vector)})
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
