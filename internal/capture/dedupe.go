package capture

import (
	"strings"
	"sync"
)

// DefaultKeyCacheSize bounds the process-wide dedup key set.
const DefaultKeyCacheSize = 20000

const maxContentKeyLen = 240

// KeyCache is a bounded set of dedup keys with FIFO eviction. It suppresses
// re-inserting the same DOM-observed message across repeated polling cycles.
type KeyCache struct {
	mu    sync.Mutex
	limit int
	seen  map[string]struct{}
	order []string
	head  int
}

// NewKeyCache creates a cache holding at most limit keys.
func NewKeyCache(limit int) *KeyCache {
	if limit <= 0 {
		limit = DefaultKeyCacheSize
	}
	return &KeyCache{
		limit: limit,
		seen:  make(map[string]struct{}),
	}
}

// Add records a key and reports whether it was first-seen. When the cache is
// full the oldest key is evicted.
func (c *KeyCache) Add(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.seen[key]; dup {
		return false
	}
	if len(c.seen) >= c.limit {
		oldest := c.order[c.head]
		delete(c.seen, oldest)
		c.head++
		if c.head > c.limit {
			// Compact the slack left behind by evictions.
			c.order = append([]string(nil), c.order[c.head:]...)
			c.head = 0
		}
	}
	c.seen[key] = struct{}{}
	c.order = append(c.order, key)
	return true
}

// Len returns the number of keys currently held.
func (c *KeyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// DedupKey builds the composite capture dedup key: tab id, source tag and a
// normalized content key.
func DedupKey(tabID, source, contentKey string) string {
	return tabID + "|" + source + "|" + NormalizeContentKey(contentKey)
}

// NormalizeContentKey lowercases, collapses whitespace and caps a raw
// candidate key so cosmetically different re-renders dedup to the same key.
func NormalizeContentKey(key string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(key), " "))
	return truncate(normalized, maxContentKeyLen)
}
