// Package cache keeps simulation results keyed by request fingerprint so that
// identical requests are answered without re-simulating.
package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iwvelando/goal-probability/internal/analyzer"
	"github.com/iwvelando/goal-probability/pkg/constants"
	"go.uber.org/zap"
)

// Store is a second-level tier behind the in-memory LRU. Store failures are
// logged by the Cache and never returned to callers.
type Store interface {
	Load(ctx context.Context, key string) (*analyzer.Result, bool, error)
	Save(ctx context.Context, key string, res *analyzer.Result, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Flush(ctx context.Context) error
}

// Options configures a Cache.
type Options struct {
	MaxEntries int
	TTL        time.Duration
	Store      Store
	Now        func() time.Time
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries     int     `json:"entries"`
	MaxEntries  int     `json:"max_entries"`
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	StoreHits   uint64  `json:"store_hits"`
	Evictions   uint64  `json:"evictions"`
	Expirations uint64  `json:"expirations"`
	StoreErrors uint64  `json:"store_errors"`
	HitRate     float64 `json:"hit_rate"`
}

type entry struct {
	key       string
	result    *analyzer.Result
	expiresAt time.Time
}

// Cache is a bounded LRU with per-entry expiry. It is safe for concurrent use.
type Cache struct {
	logger *zap.Logger
	opts   Options

	mu    sync.Mutex
	ll    *list.List
	items map[string]*list.Element
	stats Stats
}

// New creates a Cache. Zero options take the package defaults.
func New(logger *zap.Logger, opts Options) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = constants.DefaultCacheEntries
	}
	if opts.TTL <= 0 {
		opts.TTL = constants.DefaultCacheTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		logger: logger,
		opts:   opts,
		ll:     list.New(),
		items:  make(map[string]*list.Element),
	}
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.opts.TTL
}

// Get returns a copy of the cached result for key.
func (c *Cache) Get(ctx context.Context, key string) (*analyzer.Result, bool) {
	now := c.opts.Now()

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		if now.Before(e.expiresAt) {
			c.ll.MoveToFront(el)
			c.stats.Hits++
			res := e.result.Clone()
			c.mu.Unlock()
			return res, true
		}
		c.removeElement(el)
		c.stats.Expirations++
	}
	c.mu.Unlock()

	if c.opts.Store != nil {
		res, ok, err := c.opts.Store.Load(ctx, key)
		if err != nil {
			c.storeFailed("load", key, err)
		} else if ok {
			c.mu.Lock()
			c.insert(key, res.Clone(), now)
			c.stats.Hits++
			c.stats.StoreHits++
			c.mu.Unlock()
			return res, true
		}
	}

	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
	return nil, false
}

// Set stores a copy of res under key, evicting the least recently used entry
// when full.
func (c *Cache) Set(ctx context.Context, key string, res *analyzer.Result) {
	if res == nil {
		return
	}
	c.mu.Lock()
	c.insert(key, res.Clone(), c.opts.Now())
	c.mu.Unlock()

	if c.opts.Store != nil {
		if err := c.opts.Store.Save(ctx, key, res, c.opts.TTL); err != nil {
			c.storeFailed("save", key, err)
		}
	}
}

// insert must be called with mu held.
func (c *Cache) insert(key string, res *analyzer.Result, now time.Time) {
	expires := now.Add(c.opts.TTL)
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.result = res
		e.expiresAt = expires
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(&entry{key: key, result: res, expiresAt: expires})
	for c.ll.Len() > c.opts.MaxEntries {
		c.removeElement(c.ll.Back())
		c.stats.Evictions++
	}
}

func (c *Cache) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}

// Invalidate drops key. It reports whether the in-memory tier held it.
func (c *Cache) Invalidate(ctx context.Context, key string) bool {
	c.mu.Lock()
	el, ok := c.items[key]
	if ok {
		c.removeElement(el)
	}
	c.mu.Unlock()

	if c.opts.Store != nil {
		if err := c.opts.Store.Delete(ctx, key); err != nil {
			c.storeFailed("delete", key, err)
		}
	}
	return ok
}

// InvalidatePrefix drops every key starting with prefix, such as all results
// for one goal, and returns how many in-memory entries were removed.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) int {
	c.mu.Lock()
	removed := 0
	for key, el := range c.items {
		if strings.HasPrefix(key, prefix) {
			c.removeElement(el)
			removed++
		}
	}
	c.mu.Unlock()

	if c.opts.Store != nil {
		if _, err := c.opts.Store.DeletePrefix(ctx, prefix); err != nil {
			c.storeFailed("delete-prefix", prefix, err)
		}
	}
	c.logger.Debug("invalidated cache prefix",
		zap.String("op", "cache.InvalidatePrefix"),
		zap.String("prefix", prefix),
		zap.Int("removed", removed),
	)
	return removed
}

// Clear drops every entry. Counters are kept.
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.ll.Init()
	c.items = make(map[string]*list.Element)
	c.mu.Unlock()

	if c.opts.Store != nil {
		if err := c.opts.Store.Flush(ctx); err != nil {
			c.storeFailed("flush", "", err)
		}
	}
}

// PurgeExpired removes expired in-memory entries and returns how many.
func (c *Cache) PurgeExpired() int {
	now := c.opts.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	purged := 0
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*entry).expiresAt) {
			c.removeElement(el)
			purged++
		}
		el = prev
	}
	c.stats.Expirations += uint64(purged)
	return purged
}

// Len returns the number of in-memory entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.ll.Len()
	s.MaxEntries = c.opts.MaxEntries
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *Cache) storeFailed(action, key string, err error) {
	c.mu.Lock()
	c.stats.StoreErrors++
	c.mu.Unlock()
	c.logger.Warn("cache store failed",
		zap.String("op", "cache."+action),
		zap.String("key", key),
		zap.Error(err),
	)
}
