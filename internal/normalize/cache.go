package normalize

import (
	"sync"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
)

// Cache memoizes normalized values for one matching session. It is safe for
// concurrent use by the engine's workers and is discarded when the session
// ends; nothing is cached across sessions.
type Cache struct {
	mu     sync.Mutex
	values map[cacheKey]model.NormalizedIdentifier
	hits   int
	misses int
}

type cacheKey struct {
	kind   model.Kind
	region string
	raw    string
}

// NewCache returns an empty session cache.
func NewCache() *Cache {
	return &Cache{values: make(map[cacheKey]model.NormalizedIdentifier)}
}

// Value returns the normalized form of raw, computing it on first use. A nil
// Cache normalizes without memoizing.
func (c *Cache) Value(kind model.Kind, raw, region string) model.NormalizedIdentifier {
	if c == nil {
		return Value(kind, raw, region)
	}
	if kind != model.KindPhone {
		region = ""
	}
	key := cacheKey{kind: kind, region: region, raw: raw}

	c.mu.Lock()
	if n, ok := c.values[key]; ok {
		c.hits++
		c.mu.Unlock()
		return n
	}
	c.mu.Unlock()

	n := Value(kind, raw, region)

	c.mu.Lock()
	c.misses++
	c.values[key] = n
	c.mu.Unlock()
	return n
}

// Identifier normalizes id through the cache. Binary hash identifiers are
// digested directly since their content is not a usable key.
func (c *Cache) Identifier(id model.Identifier) model.NormalizedIdentifier {
	if id.Kind == model.KindHash && id.Content != nil {
		return HashContent(id.Value, id.Content)
	}
	return c.Value(id.Kind, id.Value, id.Region)
}

// Stats returns the hit and miss counts.
func (c *Cache) Stats() (hits, misses int) {
	if c == nil {
		return 0, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the number of cached values.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}
