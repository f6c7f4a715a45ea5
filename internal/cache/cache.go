package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache stores encoded assay results by request key
type Cache interface {
	Get(key string) ([]byte, bool)
	// Set stores value; ttl <= 0 uses the cache's own default
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
}

// Key builds a cache key from request parts. Parts are case-folded and
// trimmed so that "Japan" and " japan" share an entry.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strings.ToLower(strings.TrimSpace(p))))
		h.Write([]byte{0})
	}
	return "factgate:v1:" + hex.EncodeToString(h.Sum(nil))
}

// MemoryCache holds results for the life of the process. Values are
// copied in and out so callers cannot mutate a cached entry.
type MemoryCache struct {
	items *gocache.Cache
}

// NewMemoryCache creates a memory cache expiring entries after ttl
func NewMemoryCache(ttl, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{items: gocache.New(ttl, cleanupInterval)}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	v, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	return bytes.Clone(v.([]byte)), true
}

func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.items.Set(key, bytes.Clone(value), ttl)
	return nil
}

func (c *MemoryCache) Delete(key string) error {
	c.items.Delete(key)
	return nil
}

// LayeredCache reads memory before disk. Disk hits are copied into memory
// so a restarted process warms up from earlier runs.
type LayeredCache struct {
	memory *MemoryCache
	disk   *DiskCache
}

// NewLayeredCache puts a memory cache in front of a disk cache under diskDir
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:   NewDiskCache(diskDir, diskTTL),
	}
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if v, ok := c.memory.Get(key); ok {
		return v, true
	}
	v, ok := c.disk.Get(key)
	if ok {
		_ = c.memory.Set(key, v, 0)
	}
	return v, ok
}

// Set keeps the memory entry even when the disk write fails
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	_ = c.memory.Set(key, value, ttl)
	return c.disk.Set(key, value, ttl)
}

func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	return c.disk.Delete(key)
}
