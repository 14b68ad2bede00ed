package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Metrics is the subset of monitoring.Metrics the cache reports to
type Metrics interface {
	IncrementCacheHit()
	IncrementCacheMiss()
}

// Logger is the subset of monitoring.Logger the cache logs through
type Logger interface {
	CacheLogger(operation, key string, hit bool, itemCount int)
}

// CacheItem represents a cached response with expiration
type CacheItem struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *CacheItem) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// Cache stores classifier responses keyed by route and request body.
// Classification is deterministic for a given tuning, so entries stay valid
// until the tuning changes and Clear is called.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*CacheItem
	ttl   time.Duration
	paths map[string]bool
	// generation counts calls to Clear. A response computed before a Clear
	// is never stored after it.
	generation uint64

	stop chan struct{}
	once sync.Once
}

// NewCache creates a cache for POST requests to the given paths
func NewCache(ttl time.Duration, paths ...string) *Cache {
	c := &Cache{
		items: make(map[string]*CacheItem),
		ttl:   ttl,
		paths: make(map[string]bool, len(paths)),
		stop:  make(chan struct{}),
	}
	for _, p := range paths {
		c.paths[p] = true
	}

	go c.cleanup(5 * time.Minute)
	return c
}

// Close stops the cleanup goroutine
func (c *Cache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

func (c *Cache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, item := range c.items {
		if item.IsExpired() {
			delete(c.items, key)
		}
	}
}

// Key derives the cache key for a request
func Key(path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if item.IsExpired() {
		c.evict(key, item)
		return nil, false
	}
	return item.Data, true
}

// evict removes key if it still holds item, so a concurrent store is kept
func (c *Cache) evict(key string, item *CacheItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items[key] == item {
		delete(c.items, key)
	}
}

// Clear drops every entry. Called whenever the active tuning changes.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*CacheItem)
	c.generation++
}

func (c *Cache) currentGeneration() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// set stores data only when no Clear has happened since gen was read. It
// reports whether the entry was stored.
func (c *Cache) set(key string, data []byte, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	c.items[key] = &CacheItem{
		Data:      data,
		ExpiresAt: time.Now().Add(c.ttl),
	}
	return true
}

func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	expired := 0
	for _, item := range c.items {
		if item.IsExpired() {
			expired++
		}
	}

	return map[string]interface{}{
		"total_items":   len(c.items),
		"expired_items": expired,
		"active_items":  len(c.items) - expired,
		"ttl_seconds":   c.ttl.Seconds(),
	}
}

// Middleware serves cached responses for the configured paths and stores
// successful ones. A cached response carries X-Cache: HIT. A response whose
// handler ran across a Clear is not stored.
func (c *Cache) Middleware(metrics Metrics, logger Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodPost || !c.paths[ctx.Request.URL.Path] {
			ctx.Next()
			return
		}

		body, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			ctx.Next()
			return
		}
		ctx.Request.Body = io.NopCloser(bytes.NewReader(body))

		key := Key(ctx.Request.URL.Path, body)
		gen := c.currentGeneration()
		if data, found := c.Get(key); found {
			metrics.IncrementCacheHit()
			logger.CacheLogger("get", key, true, c.Size())
			ctx.Set("cache_hit", true)
			ctx.Header("X-Cache", "HIT")
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", data)
			ctx.Abort()
			return
		}

		metrics.IncrementCacheMiss()
		logger.CacheLogger("get", key, false, c.Size())
		ctx.Header("X-Cache", "MISS")

		wrapper := &responseWriter{ResponseWriter: ctx.Writer, body: &bytes.Buffer{}}
		ctx.Writer = wrapper
		ctx.Next()

		// Errors are rendered by an outer middleware, so nothing has been
		// written for them yet
		if wrapper.Written() && wrapper.Status() == http.StatusOK && len(ctx.Errors) == 0 && !ctx.GetBool("no_cache") {
			if c.set(key, wrapper.body.Bytes(), gen) {
				logger.CacheLogger("set", key, false, c.Size())
			} else {
				logger.CacheLogger("discard_stale", key, false, c.Size())
			}
		}
	}
}

// responseWriter captures the response body while writing it through
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
