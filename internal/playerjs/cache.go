package playerjs

import (
	"sync"
	"time"

	"github.com/samber/mo"
)

// Cache stores fetched client script bodies by script id.
type Cache interface {
	Get(scriptID string) (string, bool)
	Set(scriptID string, body string)
}

type memoryCache struct {
	mu    sync.RWMutex
	items map[string]cacheItem
}

type cacheItem struct {
	body      string
	createdAt time.Time
}

func NewMemoryCache() Cache {
	return &memoryCache{
		items: make(map[string]cacheItem),
	}
}

func (c *memoryCache) Get(scriptID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[scriptID]
	if !ok {
		return "", false
	}
	return item.body, true
}

func (c *memoryCache) Set(scriptID string, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[scriptID] = cacheItem{
		body:      body,
		createdAt: time.Now(),
	}
}

// ProgramCache stores derived programs by CacheKey. Implementations are safe
// for concurrent use. Two callers missing the same key may both derive and
// store it; the results are identical.
type ProgramCache interface {
	Get(key string) mo.Option[Program]
	Set(key string, p Program)
	Clear()
}

type memoryProgramCache struct {
	mu    sync.RWMutex
	items map[string]programItem
	ttl   time.Duration
	now   func() time.Time
}

type programItem struct {
	program   Program
	createdAt time.Time
}

// NewMemoryProgramCache returns a process-local cache. A ttl of zero keeps
// entries until Clear.
func NewMemoryProgramCache(ttl time.Duration) ProgramCache {
	return &memoryProgramCache{
		items: make(map[string]programItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *memoryProgramCache) Get(key string) mo.Option[Program] {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return mo.None[Program]()
	}
	if c.ttl > 0 && c.now().Sub(item.createdAt) > c.ttl {
		c.mu.Lock()
		if cur, still := c.items[key]; still && cur.createdAt.Equal(item.createdAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return mo.None[Program]()
	}
	return mo.Some(item.program)
}

func (c *memoryProgramCache) Set(key string, p Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = programItem{program: p, createdAt: c.now()}
}

func (c *memoryProgramCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]programItem)
}

type layeredProgramCache struct {
	layers []ProgramCache
}

// NewLayeredProgramCache reads layers in order and back-fills the faster
// layers on a hit in a slower one. Writes go to every layer.
func NewLayeredProgramCache(layers ...ProgramCache) ProgramCache {
	return &layeredProgramCache{layers: layers}
}

func (c *layeredProgramCache) Get(key string) mo.Option[Program] {
	for i, layer := range c.layers {
		if p, ok := layer.Get(key).Get(); ok {
			for _, faster := range c.layers[:i] {
				faster.Set(key, p)
			}
			return mo.Some(p)
		}
	}
	return mo.None[Program]()
}

func (c *layeredProgramCache) Set(key string, p Program) {
	for _, layer := range c.layers {
		layer.Set(key, p)
	}
}

func (c *layeredProgramCache) Clear() {
	for _, layer := range c.layers {
		layer.Clear()
	}
}
