package embed

import (
	"context"
	"strings"
	"sync"
)

// DefaultCacheSize bounds the interest-vector cache. Interest vocabularies
// are small, so a few hundred entries covers the working set.
const DefaultCacheSize = 512

// Cache memoizes embedding lookups in front of a Provider, evicting the
// oldest entry once full. Lookups for texts the provider returned nothing
// for are cached too, so repeated misses stay cheap.
type Cache struct {
	provider Provider
	maxSize  int

	mu      sync.Mutex
	entries map[string][]float32
	order   []string
}

// NewCache wraps a provider with a bounded cache. maxSize <= 0 uses
// DefaultCacheSize.
func NewCache(provider Provider, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &Cache{
		provider: provider,
		maxSize:  maxSize,
		entries:  make(map[string][]float32),
	}
}

// Embed returns a cached vector or consults the provider. Provider errors
// are returned without being cached, so transient failures retry.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := strings.ToLower(strings.TrimSpace(text))
	if key == "" {
		return nil, nil
	}

	c.mu.Lock()
	if vec, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return vec, nil
	}
	c.mu.Unlock()

	vec, err := c.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		if len(c.order) >= c.maxSize {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.entries[key] = vec
		c.order = append(c.order, key)
	}
	return vec, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
