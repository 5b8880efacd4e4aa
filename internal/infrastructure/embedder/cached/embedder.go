// Package cached wraps an Embedder with a content-addressed cache.
// Embeddings are deterministic for a given (model, text) pair, so a hash of
// both is a stable cache key across restarts and providers.
package cached

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/rememo/rememo/internal/domain/ports"
)

// DefaultCapacity is the cache size used when none is configured.
const DefaultCapacity = 2048

// Embedder decorates another Embedder with an LRU cache keyed by
// SHA-256(model, text).
type Embedder struct {
	inner    ports.Embedder
	model    string
	capacity int

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List

	hits   uint64
	misses uint64
}

type cacheEntry struct {
	key    string
	vector []float32
}

// NewEmbedder wraps inner with a cache of the given capacity. A capacity of
// zero or less uses DefaultCapacity.
func NewEmbedder(inner ports.Embedder, model string, capacity int) *Embedder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Embedder{
		inner:    inner,
		model:    model,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Embed returns the cached embedding for text, or delegates to the inner
// embedder and caches the result.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := e.key(text)
	if vec, ok := e.get(key); ok {
		return vec, nil
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.put(key, vec)
	return vec, nil
}

// EmbedBatch embeds texts, serving cached entries and delegating only the
// misses to the inner embedder in one call.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	result := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if vec, ok := e.get(e.key(text)); ok {
			result[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		vecs, err := e.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, vec := range vecs {
			i := missIdx[j]
			result[i] = vec
			e.put(e.key(texts[i]), vec)
		}
	}
	return result, nil
}

// Dimension returns the inner embedder's dimension.
func (e *Embedder) Dimension() int {
	return e.inner.Dimension()
}

// Stats returns cache hit and miss counts.
func (e *Embedder) Stats() (hits, misses uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hits, e.misses
}

func (e *Embedder) key(text string) string {
	sum := sha256.Sum256([]byte(e.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func (e *Embedder) get(key string) ([]float32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	elem, ok := e.entries[key]
	if !ok {
		e.misses++
		return nil, false
	}
	e.hits++
	e.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).vector, true
}

func (e *Embedder) put(key string, vector []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if elem, ok := e.entries[key]; ok {
		e.order.MoveToFront(elem)
		elem.Value.(*cacheEntry).vector = vector
		return
	}
	elem := e.order.PushFront(&cacheEntry{key: key, vector: vector})
	e.entries[key] = elem

	if e.order.Len() > e.capacity {
		oldest := e.order.Back()
		e.order.Remove(oldest)
		delete(e.entries, oldest.Value.(*cacheEntry).key)
	}
}
