package embeddings

import (
	"container/list"
	"context"
	"crypto/sha256"
	"sync"
)

// CachedEmbedder remembers recent vectors. Customers ask the same few
// questions over and over; cached questions skip the embedding call.
type CachedEmbedder struct {
	Embedder

	mu       sync.Mutex
	capacity int
	order    *list.List // front is most recently used
	entries  map[[32]byte]*list.Element
}

type cacheEntry struct {
	key [32]byte
	vec []float32
}

// NewCached wraps e with an LRU cache of the given capacity. A capacity
// of 0 or less returns e unchanged.
func NewCached(e Embedder, capacity int) Embedder {
	if capacity <= 0 {
		return e
	}
	return &CachedEmbedder{
		Embedder: e,
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[[32]byte]*list.Element, capacity),
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([][32]byte, len(texts))
	var missing []string
	var missingAt []int

	c.mu.Lock()
	for i, t := range texts {
		keys[i] = sha256.Sum256([]byte(t))
		if el, ok := c.entries[keys[i]]; ok {
			c.order.MoveToFront(el)
			out[i] = el.Value.(*cacheEntry).vec
			continue
		}
		missing = append(missing, t)
		missingAt = append(missingAt, i)
	}
	c.mu.Unlock()

	if len(missing) == 0 {
		return out, nil
	}
	vecs, err := c.Embedder.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for j, i := range missingAt {
		if j >= len(vecs) {
			break
		}
		out[i] = vecs[j]
		c.put(keys[i], vecs[j])
	}
	return out, nil
}

// Len returns the number of cached vectors.
func (c *CachedEmbedder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *CachedEmbedder) put(key [32]byte, vec []float32) {
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		el.Value.(*cacheEntry).vec = vec
		return
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, vec: vec})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}
