package file

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gostash_metadata_cache_hits_total",
		Help: "Metadata cache hits.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gostash_metadata_cache_misses_total",
		Help: "Metadata cache misses.",
	})
)

// Cache is an in-memory LRU over file metadata with per-entry TTL.
// Entries are invalidated on every successful mutation.
type Cache struct {
	lru *expirable.LRU[uuid.UUID, Record]
}

// NewCache builds a metadata cache holding at most maxSize entries.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	return &Cache{lru: expirable.NewLRU[uuid.UUID, Record](maxSize, nil, ttl)}
}

func (c *Cache) Get(id uuid.UUID) (Record, bool) {
	rec, ok := c.lru.Get(id)
	if ok {
		cacheHitsTotal.Inc()
		return rec, true
	}
	cacheMissesTotal.Inc()
	return Record{}, false
}

func (c *Cache) Set(rec Record) {
	c.lru.Add(rec.ID, rec)
}

func (c *Cache) Invalidate(id uuid.UUID) {
	c.lru.Remove(id)
}
