package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const listTablesKey = "\x00tables"

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// Cached memoizes ListTables and GetSchema for a fixed TTL. Concurrent misses
// for the same key share one backend call. RunQuery is never cached.
type Cached struct {
	next Backend
	ttl  time.Duration
	now  func() time.Time

	mu    sync.RWMutex
	store map[string]cacheEntry
	sf    singleflight.Group
}

func NewCached(next Backend, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		ttl:   ttl,
		now:   time.Now,
		store: make(map[string]cacheEntry),
	}
}

func (c *Cached) get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.store[key]
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (c *Cached) set(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = cacheEntry{value: v, expiresAt: c.now().Add(c.ttl)}
}

// Invalidate drops every cached entry.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = make(map[string]cacheEntry)
}

// load returns the cached value for key or calls fetch once per key.
// Errors are not cached.
func (c *Cached) load(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error) {
	if v, ok := c.get(key); ok {
		log.Debug().Str("key", key).Msg("catalog cache hit")
		return v, nil
	}
	v, err, _ := c.sf.Do(key, func() (any, error) {
		if v, ok := c.get(key); ok {
			return v, nil
		}
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.set(key, v)
		return v, nil
	})
	return v, err
}

func (c *Cached) ListTables(ctx context.Context) ([]string, error) {
	v, err := c.load(ctx, listTablesKey, func(ctx context.Context) (any, error) {
		return c.next.ListTables(ctx)
	})
	if err != nil {
		return nil, err
	}
	tables := v.([]string)
	out := make([]string, len(tables))
	copy(out, tables)
	return out, nil
}

func (c *Cached) GetSchema(ctx context.Context, table string) (*Entry, error) {
	key := bareTable(table)
	v, err := c.load(ctx, key, func(ctx context.Context) (any, error) {
		return c.next.GetSchema(ctx, table)
	})
	if err != nil {
		return nil, err
	}
	e := *v.(*Entry)
	e.Columns = append([]Column(nil), e.Columns...)
	return &e, nil
}

func (c *Cached) RunQuery(ctx context.Context, sql string, maxRows int) (*RowSet, error) {
	return c.next.RunQuery(ctx, sql, maxRows)
}

func (c *Cached) Close() error {
	return c.next.Close()
}
