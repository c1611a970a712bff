// Package respcache is a small in-memory response cache keyed by a request
// fingerprint, with time-based expiry. Entries are only ever added or lazily
// evicted; last write wins.
package respcache

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/zeebo/blake3"
)

// Fingerprint derives a stable cache key from the request parts.
func Fingerprint(parts ...string) string {
	h := blake3.New()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0}) // separator so ("ab","c") != ("a","bc")
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

type entry struct {
	value   string
	expires time.Time
}

// Cache maps fingerprints to response text with a fixed TTL.
type Cache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]entry

	now func() time.Time
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{
		ttl:     ttl,
		entries: map[string]entry{},
		now:     time.Now,
	}
}

// Get returns the cached value for key when present and unexpired. Expired
// entries are evicted on the way out.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return "", false
	}
	return e.value, true
}

func (c *Cache) Put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expires: c.now().Add(c.ttl)}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
