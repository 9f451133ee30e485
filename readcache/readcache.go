// Package readcache is an optional read-through cache for Get
// results, keyed by entry path and data version so a cached value is
// never served once the entry it came from has changed underneath it.
// It is not imported by the core ensemble package: a caller wires it
// in at the call site, the way the corpus keeps its in-memory
// CacheConfig/Cache pair outside the packages whose results it caches.
package readcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/r3e-network/ensemble"
)

// Config tunes the cache's TTL and key namespace.
type Config struct {
	TTL       time.Duration
	KeyPrefix string
}

// DefaultConfig mirrors a short, frequently-refreshed read cache: data
// that is wrong for five minutes is a correctness bug for a
// coordination client, so the default TTL is deliberately short and
// exists mainly to absorb bursts of repeated reads of the same entry.
func DefaultConfig() Config {
	return Config{
		TTL:       30 * time.Second,
		KeyPrefix: "ensemble:get",
	}
}

type cachedGet struct {
	Data []byte        `json:"data"`
	Stat ensemble.Stat `json:"stat"`
}

// Cache wraps a redis client with Get/Put for entry-read results.
type Cache struct {
	rdb *redis.Client
	cfg Config
}

// New constructs a Cache over an already-configured redis client.
func New(rdb *redis.Client, cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	return &Cache{rdb: rdb, cfg: cfg}
}

func (c *Cache) key(path ensemble.Path, version ensemble.DataVersion) string {
	return fmt.Sprintf("%s:%s:%d", c.cfg.KeyPrefix, string(path), version)
}

// Get returns the cached result for path at version, if present.
func (c *Cache) Get(ctx context.Context, path ensemble.Path, version ensemble.DataVersion) (data []byte, stat ensemble.Stat, ok bool) {
	raw, err := c.rdb.Get(ctx, c.key(path, version)).Bytes()
	if err != nil {
		return nil, ensemble.Stat{}, false
	}
	var cg cachedGet
	if err := json.Unmarshal(raw, &cg); err != nil {
		return nil, ensemble.Stat{}, false
	}
	return cg.Data, cg.Stat, true
}

// Put stores a read result under its path and the data version it was
// observed at.
func (c *Cache) Put(ctx context.Context, path ensemble.Path, data []byte, stat ensemble.Stat) {
	raw, err := json.Marshal(cachedGet{Data: data, Stat: stat})
	if err != nil {
		return
	}
	c.rdb.Set(ctx, c.key(path, stat.DataVersion), raw, c.cfg.TTL)
}

// Invalidate drops every cached version for path. Callers reach for
// this on a data watch firing, rather than waiting for version-keyed
// entries to simply age out of relevance.
func (c *Cache) Invalidate(ctx context.Context, path ensemble.Path) {
	iter := c.rdb.Scan(ctx, 0, c.cfg.KeyPrefix+":"+string(path)+":*", 100).Iterator()
	for iter.Next(ctx) {
		c.rdb.Del(ctx, iter.Val())
	}
}
