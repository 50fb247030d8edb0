package store

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

const defaultCacheTTL = time.Hour

// memoryCache keeps the last saved artifact in memory with a content hash
// and a freshness window. It survives tier-file loss entirely in RAM, which
// is what makes the static-fallback path work when every disk tier is gone.
type memoryCache struct {
	mu       sync.RWMutex
	content  []byte
	hash     string
	storedAt time.Time
	ttl      time.Duration
}

func newMemoryCache(ttl time.Duration) *memoryCache {
	return &memoryCache{ttl: ttl}
}

// Put stores a copy of data and stamps it with the current time.
func (c *memoryCache) Put(data []byte) {
	sum := sha256.Sum256(data)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = append([]byte(nil), data...)
	c.hash = hex.EncodeToString(sum[:])
	c.storedAt = time.Now()
}

// Get returns a copy of the cached content when it is within the TTL and
// its hash still matches. A hash mismatch means the bytes were corrupted
// after Put; the copy is treated as a miss so Load falls through to the
// tiers.
func (c *memoryCache) Get() ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.content == nil || time.Since(c.storedAt) > c.ttl {
		return nil, false
	}
	sum := sha256.Sum256(c.content)
	if hex.EncodeToString(sum[:]) != c.hash {
		return nil, false
	}
	return append([]byte(nil), c.content...), true
}

// Invalidate drops the cached copy.
func (c *memoryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = nil
	c.hash = ""
}

// Info returns the content hash and age in seconds of the cached copy.
func (c *memoryCache) Info() (hash string, ageSeconds int64, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.content == nil {
		return "", 0, false
	}
	return c.hash, int64(time.Since(c.storedAt).Seconds()), true
}
